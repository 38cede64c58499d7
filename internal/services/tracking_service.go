package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/repository"

	"go.uber.org/zap"
)

type TimelineStep struct {
	Status domain.OrderStatus `json:"status"`
	Active bool               `json:"active"`
}

// TrackingView is what a customer sees for one order. Exactly one timeline
// step is active when the stored status resolves, none otherwise.
type TrackingView struct {
	OrderNumber       string             `json:"order_number"`
	Name              string             `json:"name"`
	Status            domain.OrderStatus `json:"status"`
	StatusResolved    bool               `json:"status_resolved"`
	Timeline          []TimelineStep     `json:"timeline"`
	Items             []domain.OrderItem `json:"items"`
	Total             float64            `json:"total"`
	Currency          string             `json:"currency"`
	CreatedAt         time.Time          `json:"created_at"`
	EstimatedDelivery time.Time          `json:"estimated_delivery"`
}

type TrackingService struct {
	gateway  repository.Gateway
	cache    infra.CacheInterface
	ttl      time.Duration
	estimate time.Duration
	log      *zap.Logger
}

func NewTrackingService(g repository.Gateway, estimate time.Duration, logger *zap.Logger) *TrackingService {
	if estimate <= 0 {
		estimate = 30 * time.Minute
	}
	return &TrackingService{gateway: g, estimate: estimate, log: logger.Named("tracking")}
}

func (s *TrackingService) SetCache(c infra.CacheInterface, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

func TrackingKey(orderNumber, phone string) string {
	return fmt.Sprintf("tracking:%s:%s", strings.ToUpper(strings.TrimSpace(orderNumber)), strings.TrimSpace(phone))
}

// Track looks an order up by its number and the phone it was placed with.
func (s *TrackingService) Track(ctx context.Context, orderNumber, phone string) (*TrackingView, error) {
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	phone = strings.TrimSpace(phone)
	if orderNumber == "" || phone == "" {
		return nil, fmt.Errorf("%w: order number and phone are required", ErrValidation)
	}

	key := TrackingKey(orderNumber, phone)
	if s.cache != nil {
		var cached TrackingView
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, infra.ErrCacheMiss) {
			s.log.Warn("tracking cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	recs, err := s.gateway.Fetch(ctx, domain.TableOrders, repository.Query{
		Filters: []repository.Filter{
			repository.Eq("order_number", orderNumber),
			repository.Eq("phone", phone),
		},
		OrderBy: &repository.OrderBy{Column: "created_at", Desc: true},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrOrderNotFound
	}
	order, ok := recs[0].(*domain.Order)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", recs[0])
	}

	view := s.build(order)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, view, s.ttl); err != nil {
			s.log.Warn("tracking cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return view, nil
}

func (s *TrackingService) build(o *domain.Order) *TrackingView {
	status, resolved := domain.NormalizeStatus(string(o.Status))
	label := status
	if !resolved {
		label = domain.StatusReceived
	}
	return &TrackingView{
		OrderNumber:       o.OrderNumber,
		Name:              o.Name,
		Status:            label,
		StatusResolved:    resolved,
		Timeline:          Timeline(status),
		Items:             o.Items,
		Total:             o.Total,
		Currency:          o.Currency,
		CreatedAt:         o.CreatedAt,
		EstimatedDelivery: o.CreatedAt.Add(s.estimate),
	}
}

// Timeline lists every lifecycle step with only current marked active.
func Timeline(current domain.OrderStatus) []TimelineStep {
	steps := make([]TimelineStep, len(domain.OrderLifecycle))
	for i, st := range domain.OrderLifecycle {
		steps[i] = TimelineStep{Status: st, Active: st == current}
	}
	return steps
}
