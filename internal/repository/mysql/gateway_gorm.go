package mysql

import (
	"context"
	"errors"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	mysqldriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const errDupEntry = 1062

type gateway struct {
	db  *gorm.DB
	bus repository.ChangeBus
	log *zap.Logger
	now func() time.Time
}

// NewGateway returns a MySQL-backed gateway that announces committed writes on bus.
func NewGateway(db *gorm.DB, bus repository.ChangeBus, logger *zap.Logger) repository.Gateway {
	return &gateway{db: db, bus: bus, log: logger.Named("gateway"), now: time.Now}
}

func (g *gateway) Fetch(ctx context.Context, table domain.Table, q repository.Query) ([]domain.Record, error) {
	if err := repository.CheckQuery(table, q.Filters, q.OrderBy); err != nil {
		return nil, err
	}
	tx := applyFilters(g.db.WithContext(ctx), q.Filters)
	if q.OrderBy != nil {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.OrderBy.Column}, Desc: q.OrderBy.Desc})
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var (
		recs []domain.Record
		err  error
	)
	switch table {
	case domain.TableOrders:
		recs, err = collect[domain.Order](tx)
	case domain.TableReservations:
		recs, err = collect[domain.Reservation](tx)
	case domain.TableReviews:
		recs, err = collect[domain.Review](tx)
	case domain.TableContacts:
		recs, err = collect[domain.ContactMessage](tx)
	default:
		return nil, domain.ErrUnknownTable
	}
	if err != nil {
		g.log.Error("fetch failed", zap.String("table", string(table)), zap.Error(err))
		return nil, err
	}
	return recs, nil
}

func (g *gateway) Get(ctx context.Context, table domain.Table, id uint64) (domain.Record, error) {
	rec, err := table.New()
	if err != nil {
		return nil, err
	}
	if err := g.db.WithContext(ctx).First(rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (g *gateway) Insert(ctx context.Context, rec domain.Record) error {
	result := g.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return errors.Join(repository.ErrDuplicateKey, result.Error)
		}
		g.log.Error("insert failed", zap.String("table", string(rec.RecordTable())), zap.Error(result.Error))
		return result.Error
	}
	if rec.RecordID() == 0 {
		return errors.New("insert did not assign an id")
	}

	evt, err := domain.NewInsertEvent(rec, g.now())
	if err != nil {
		return err
	}
	g.announce(ctx, evt)
	return nil
}

func (g *gateway) Update(ctx context.Context, table domain.Table, id uint64, patch domain.Patch) error {
	if err := table.CheckPatch(patch); err != nil {
		return err
	}
	model, err := table.New()
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows for a no-op update, so existence is
	// decided by the re-read below.
	if err := g.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]any(patch)).Error; err != nil {
		g.log.Error("update failed", zap.String("table", string(table)), zap.Uint64("id", id), zap.Error(err))
		return err
	}
	rec, err := g.Get(ctx, table, id)
	if err != nil {
		return err
	}

	evt, err := domain.NewUpdateEvent(rec, g.now())
	if err != nil {
		return err
	}
	g.announce(ctx, evt)
	return nil
}

func (g *gateway) Delete(ctx context.Context, table domain.Table, id uint64) error {
	model, err := table.New()
	if err != nil {
		return err
	}
	result := g.db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		g.log.Error("delete failed", zap.String("table", string(table)), zap.Uint64("id", id), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	g.announce(ctx, domain.NewDeleteEvent(table, id, g.now()))
	return nil
}

func (g *gateway) Count(ctx context.Context, table domain.Table, filters ...repository.Filter) (int64, error) {
	if err := repository.CheckQuery(table, filters, nil); err != nil {
		return 0, err
	}
	model, err := table.New()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := applyFilters(g.db.WithContext(ctx).Model(model), filters).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (g *gateway) Subscribe(ctx context.Context, table domain.Table) (repository.Subscription, error) {
	return g.bus.Subscribe(ctx, table)
}

// announce publishes after commit. A lost announcement is logged, never
// surfaced: the row is durable and feeds recover with a refresh.
func (g *gateway) announce(ctx context.Context, evt domain.ChangeEvent) {
	if err := g.bus.Publish(ctx, evt); err != nil {
		g.log.Warn("change event not published",
			zap.String("routing_key", evt.RoutingKey()),
			zap.Error(err),
		)
	}
}

func applyFilters(tx *gorm.DB, filters []repository.Filter) *gorm.DB {
	for _, f := range filters {
		col := clause.Column{Name: f.Column}
		switch f.Op {
		case repository.OpEq:
			tx = tx.Where(clause.Eq{Column: col, Value: f.Value})
		case repository.OpNeq:
			tx = tx.Where(clause.Neq{Column: col, Value: f.Value})
		case repository.OpIn:
			tx = tx.Where(clause.Expr{SQL: "? IN ?", Vars: []any{col, f.Value}})
		case repository.OpGte:
			tx = tx.Where(clause.Gte{Column: col, Value: f.Value})
		}
	}
	return tx
}

func collect[T any, P interface {
	*T
	domain.Record
}](tx *gorm.DB) ([]domain.Record, error) {
	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Record, len(rows))
	for i := range rows {
		out[i] = P(&rows[i])
	}
	return out, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}
