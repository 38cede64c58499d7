package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"
)

// Gateway keeps rows in process memory. It enforces the same unique
// payment_reference constraint as the MySQL schema.
type Gateway struct {
	mu     sync.RWMutex
	rows   map[domain.Table]map[uint64]domain.Record
	nextID map[domain.Table]uint64
	bus    repository.ChangeBus
	now    func() time.Time
}

var _ repository.Gateway = (*Gateway)(nil)

func NewGateway(bus repository.ChangeBus) *Gateway {
	if bus == nil {
		bus = NewBus()
	}
	g := &Gateway{
		rows:   map[domain.Table]map[uint64]domain.Record{},
		nextID: map[domain.Table]uint64{},
		bus:    bus,
		now:    time.Now,
	}
	for _, t := range domain.WatchedTables {
		g.rows[t] = map[uint64]domain.Record{}
	}
	return g
}

// SetClock replaces the source of created_at timestamps.
func (g *Gateway) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Gateway) Fetch(_ context.Context, table domain.Table, q repository.Query) ([]domain.Record, error) {
	if err := repository.CheckQuery(table, q.Filters, q.OrderBy); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Record
	for _, id := range g.sortedIDs(table) {
		rec := g.rows[table][id]
		ok, err := matchAll(rec, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			c, err := clone(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	if q.OrderBy != nil {
		sortRecords(out, *q.OrderBy)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (g *Gateway) Get(_ context.Context, table domain.Table, id uint64) (domain.Record, error) {
	if !table.Valid() {
		return nil, domain.ErrUnknownTable
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.rows[table][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(rec)
}

func (g *Gateway) Insert(ctx context.Context, rec domain.Record) error {
	table := rec.RecordTable()
	g.mu.Lock()
	if o, ok := rec.(*domain.Order); ok {
		for _, existing := range g.rows[domain.TableOrders] {
			if existing.(*domain.Order).PaymentReference == o.PaymentReference {
				g.mu.Unlock()
				return fmt.Errorf("%w: payment_reference %q", repository.ErrDuplicateKey, o.PaymentReference)
			}
		}
	}
	g.nextID[table]++
	if err := stamp(rec, g.nextID[table], g.now()); err != nil {
		g.mu.Unlock()
		return err
	}
	stored, err := clone(rec)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	g.rows[table][rec.RecordID()] = stored
	g.mu.Unlock()

	evt, err := domain.NewInsertEvent(stored, g.now())
	if err != nil {
		return err
	}
	return g.bus.Publish(ctx, evt)
}

func (g *Gateway) Update(ctx context.Context, table domain.Table, id uint64, patch domain.Patch) error {
	if err := table.CheckPatch(patch); err != nil {
		return err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}

	g.mu.Lock()
	current, ok := g.rows[table][id]
	if !ok {
		g.mu.Unlock()
		return repository.ErrNotFound
	}
	merged, err := domain.Merge(current, raw)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	g.rows[table][id] = merged
	g.mu.Unlock()

	evt, err := domain.NewUpdateEvent(merged, g.now())
	if err != nil {
		return err
	}
	return g.bus.Publish(ctx, evt)
}

func (g *Gateway) Delete(ctx context.Context, table domain.Table, id uint64) error {
	if !table.Valid() {
		return domain.ErrUnknownTable
	}
	g.mu.Lock()
	if _, ok := g.rows[table][id]; !ok {
		g.mu.Unlock()
		return repository.ErrNotFound
	}
	delete(g.rows[table], id)
	g.mu.Unlock()

	return g.bus.Publish(ctx, domain.NewDeleteEvent(table, id, g.now()))
}

func (g *Gateway) Count(_ context.Context, table domain.Table, filters ...repository.Filter) (int64, error) {
	if err := repository.CheckQuery(table, filters, nil); err != nil {
		return 0, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int64
	for _, rec := range g.rows[table] {
		ok, err := matchAll(rec, filters)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) Subscribe(ctx context.Context, table domain.Table) (repository.Subscription, error) {
	return g.bus.Subscribe(ctx, table)
}

func (g *Gateway) sortedIDs(table domain.Table) []uint64 {
	ids := make([]uint64, 0, len(g.rows[table]))
	for id := range g.rows[table] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func stamp(rec domain.Record, id uint64, now time.Time) error {
	switch r := rec.(type) {
	case *domain.Order:
		r.ID = id
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	case *domain.Reservation:
		r.ID = id
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.Status == "" {
			r.Status = domain.ReservationPending
		}
	case *domain.Review:
		r.ID = id
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
	case *domain.ContactMessage:
		r.ID = id
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.Status == "" {
			r.Status = domain.ContactPending
		}
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownTable, rec)
	}
	return nil
}

func clone(rec domain.Record) (domain.Record, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return rec.RecordTable().Decode(raw)
}

func fields(rec domain.Record) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	return out, json.Unmarshal(raw, &out)
}

func matchAll(rec domain.Record, filters []repository.Filter) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}
	row, err := fields(rec)
	if err != nil {
		return false, err
	}
	for _, f := range filters {
		if !match(row[f.Column], f) {
			return false, nil
		}
	}
	return true, nil
}

func match(got any, f repository.Filter) bool {
	switch f.Op {
	case repository.OpEq:
		return text(got) == text(f.Value)
	case repository.OpNeq:
		return text(got) != text(f.Value)
	case repository.OpIn:
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return false
		}
		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			return false
		}
		for _, v := range values {
			if text(got) == text(v) {
				return true
			}
		}
		return false
	case repository.OpGte:
		return compare(got, f.Value) >= 0
	}
	return false
}

// text renders scalars the way they appear after a JSON round trip.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func compare(got, want any) int {
	if t, ok := want.(time.Time); ok {
		s, _ := got.(string)
		g, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return -1
		}
		return g.Compare(t)
	}
	gf, gerr := strconv.ParseFloat(text(got), 64)
	wf, werr := strconv.ParseFloat(text(want), 64)
	if gerr == nil && werr == nil {
		switch {
		case gf < wf:
			return -1
		case gf > wf:
			return 1
		}
		return 0
	}
	switch a, b := text(got), text(want); {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sortRecords(recs []domain.Record, by repository.OrderBy) {
	key := func(r domain.Record) any {
		switch by.Column {
		case "created_at":
			return r.Timestamp()
		case "id":
			return float64(r.RecordID())
		}
		row, _ := fields(r)
		return row[by.Column]
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := key(recs[i]), key(recs[j])
		var c int
		if ta, ok := a.(time.Time); ok {
			c = ta.Compare(b.(time.Time))
		} else {
			c = compare(a, b)
		}
		if by.Desc {
			return c > 0
		}
		return c < 0
	})
}
