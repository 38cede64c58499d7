package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/repository"

	"go.uber.org/zap"
)

// LocalView is an in-memory read model that reflects a write before the
// change feed confirms it. The returned func undoes the local change.
type LocalView interface {
	Optimistic(table domain.Table, id uint64, patch domain.Patch) (revert func())
}

type StatusService struct {
	gateway repository.Gateway
	policy  domain.TransitionPolicy
	view    LocalView
	cache   infra.CacheInterface
	audit   infra.AuditInterface
	log     *zap.Logger
}

func NewStatusService(g repository.Gateway, policy domain.TransitionPolicy, logger *zap.Logger) *StatusService {
	return &StatusService{gateway: g, policy: policy, log: logger.Named("status")}
}

func (s *StatusService) SetView(v LocalView) {
	s.view = v
}

func (s *StatusService) SetCache(c infra.CacheInterface) {
	s.cache = c
}

func (s *StatusService) SetAudit(a infra.AuditInterface) {
	s.audit = a
}

// UpdateOrderStatus normalizes raw, checks the transition policy and writes
// the canonical value. Unresolvable input is rejected before any write.
func (s *StatusService) UpdateOrderStatus(ctx context.Context, id uint64, raw string) (*domain.Order, error) {
	next, ok := domain.NormalizeStatus(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}

	rec, err := s.gateway.Get(ctx, domain.TableOrders, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	current, ok := rec.(*domain.Order)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", rec)
	}
	if err := s.policy.Check(current.Status, next); err != nil {
		return nil, fmt.Errorf("%w: %s to %s", err, current.Status, next)
	}

	patch := domain.Patch{"status": next}
	if err := s.write(ctx, domain.TableOrders, id, patch); err != nil {
		return nil, err
	}

	updated := *current
	updated.Status = next
	s.invalidateTracking(ctx, &updated)
	s.recordTransition(ctx, id, current.Status, next)
	s.log.Info("order status updated",
		zap.Uint64("order_id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next)))
	return &updated, nil
}

// UpdateStatus changes the status of a reservation or contact message.
// Orders go through UpdateOrderStatus; reviews have no status.
func (s *StatusService) UpdateStatus(ctx context.Context, table domain.Table, id uint64, raw string) error {
	status := strings.ToLower(strings.TrimSpace(raw))
	switch table {
	case domain.TableOrders:
		_, err := s.UpdateOrderStatus(ctx, id, raw)
		return err
	case domain.TableReservations:
		if !domain.ValidReservationStatus(status) {
			return fmt.Errorf("%w: reservation status %q", ErrInvalidStatus, raw)
		}
	case domain.TableContacts:
		if !domain.ValidContactStatus(status) {
			return fmt.Errorf("%w: contact status %q", ErrInvalidStatus, raw)
		}
	case domain.TableReviews:
		return fmt.Errorf("%w: reviews have no status", ErrValidation)
	default:
		return domain.ErrUnknownTable
	}
	return s.write(ctx, table, id, domain.Patch{"status": status})
}

// write applies patch locally first and reverts it when the store refuses.
func (s *StatusService) write(ctx context.Context, table domain.Table, id uint64, patch domain.Patch) error {
	revert := func() {}
	if s.view != nil {
		revert = s.view.Optimistic(table, id, patch)
	}
	if err := s.gateway.Update(ctx, table, id, patch); err != nil {
		revert()
		s.log.Error("status update failed",
			zap.String("table", string(table)),
			zap.Uint64("id", id),
			zap.Error(err))
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

func (s *StatusService) invalidateTracking(ctx context.Context, o *domain.Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, TrackingKey(o.OrderNumber, o.Phone)); err != nil {
		s.log.Warn("tracking cache invalidation failed", zap.String("order_number", o.OrderNumber), zap.Error(err))
	}
}

func (s *StatusService) recordTransition(ctx context.Context, id uint64, from, to domain.OrderStatus) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &infra.AuditEntry{
		Action:    infra.AuditStatusChanged,
		EntityID:  strconv.FormatUint(id, 10),
		Severity:  "info",
		Data:      map[string]any{"from": string(from), "to": string(to)},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("audit write failed", zap.Uint64("order_id", id), zap.Error(err))
	}
}
