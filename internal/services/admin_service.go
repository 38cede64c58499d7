package services

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const chartDays = 30

type NotificationCounts struct {
	Tables map[domain.Table]int64 `json:"tables"`
	Total  int64                  `json:"total"`
	Badge  string                 `json:"badge"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Dashboard struct {
	TotalOrders       int        `json:"total_orders"`
	TotalReservations int        `json:"total_reservations"`
	TotalReviews      int        `json:"total_reviews"`
	AverageRating     float64    `json:"average_rating"`
	OrdersPerDay      []DayCount `json:"orders_per_day"`
}

// AdminService serves back-office reads and housekeeping writes.
type AdminService struct {
	gateway  repository.Gateway
	badgeCap int
	now      func() time.Time
	log      *zap.Logger
}

func NewAdminService(g repository.Gateway, badgeCap int, logger *zap.Logger) *AdminService {
	if badgeCap <= 0 {
		badgeCap = 9
	}
	return &AdminService{gateway: g, badgeCap: badgeCap, now: time.Now, log: logger.Named("admin")}
}

// UnseenCounts counts unseen rows per table in parallel. A table whose count
// fails contributes zero.
func (s *AdminService) UnseenCounts(ctx context.Context) *NotificationCounts {
	counts := make([]int64, len(domain.WatchedTables))
	g, gctx := errgroup.WithContext(ctx)
	for i, table := range domain.WatchedTables {
		i, table := i, table
		g.Go(func() error {
			n, err := s.gateway.Count(gctx, table, repository.Eq("seen", false))
			if err != nil {
				s.log.Error("unseen count failed", zap.String("table", string(table)), zap.Error(err))
				return nil
			}
			counts[i] = n
			return nil
		})
	}
	_ = g.Wait()

	out := &NotificationCounts{Tables: make(map[domain.Table]int64, len(counts))}
	for i, table := range domain.WatchedTables {
		out.Tables[table] = counts[i]
		out.Total += counts[i]
	}
	out.Badge = Badge(out.Total, s.badgeCap)
	return out
}

// MarkSeen flags ids of table as seen. Every id is attempted.
func (s *AdminService) MarkSeen(ctx context.Context, table domain.Table, ids []uint64) error {
	if !table.Valid() {
		return domain.ErrUnknownTable
	}
	var errs []error
	for _, id := range ids {
		if err := s.gateway.Update(ctx, table, id, domain.Patch{"seen": true}); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *AdminService) Delete(ctx context.Context, table domain.Table, id uint64) error {
	err := s.gateway.Delete(ctx, table, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRecordNotFound
	}
	if err != nil {
		s.log.Error("delete failed", zap.String("table", string(table)), zap.Uint64("id", id), zap.Error(err))
	}
	return err
}

// Dashboard loads the KPI cards and the 30 day order chart. Failed reads
// leave their figures at zero.
func (s *AdminService) Dashboard(ctx context.Context) (*Dashboard, error) {
	var orders, reservations, reviews []domain.Record
	now := s.now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	load := func(table domain.Table, dst *[]domain.Record) {
		g.Go(func() error {
			recs, err := s.gateway.Fetch(gctx, table, repository.Query{})
			if err != nil {
				s.log.Error("dashboard load failed", zap.String("table", string(table)), zap.Error(err))
				return nil
			}
			*dst = recs
			return nil
		})
	}
	load(domain.TableOrders, &orders)
	load(domain.TableReservations, &reservations)
	load(domain.TableReviews, &reviews)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := &Dashboard{
		TotalOrders:       len(orders),
		TotalReservations: len(reservations),
		TotalReviews:      len(reviews),
		OrdersPerDay:      ordersPerDay(orders, now),
	}
	var sum int
	for _, r := range reviews {
		if rev, ok := r.(*domain.Review); ok {
			sum += rev.Rating
		}
	}
	if len(reviews) > 0 {
		d.AverageRating = math.Round(float64(sum)/float64(len(reviews))*10) / 10
	}
	return d, nil
}

func ordersPerDay(orders []domain.Record, now time.Time) []DayCount {
	byDay := map[string]int{}
	cutoff := now.AddDate(0, 0, -chartDays)
	for _, o := range orders {
		ts := o.Timestamp().UTC()
		if ts.Before(cutoff) {
			continue
		}
		byDay[ts.Format(time.DateOnly)]++
	}
	out := make([]DayCount, 0, chartDays)
	for i := chartDays - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i).Format(time.DateOnly)
		out = append(out, DayCount{Date: day, Count: byDay[day]})
	}
	return out
}

// Badge renders a notification count, capped as "<cap>+".
func Badge(total int64, limit int) string {
	switch {
	case total <= 0:
		return ""
	case total > int64(limit):
		return strconv.Itoa(limit) + "+"
	}
	return strconv.FormatInt(total, 10)
}
