package mocks

import (
	"context"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

type MockPaymentGateway struct {
	mock.Mock
}

type MockAudit struct {
	mock.Mock
}

type MockCache struct {
	mock.Mock
}

var (
	_ repository.Gateway            = (*MockGateway)(nil)
	_ infra.PaymentGatewayInterface = (*MockPaymentGateway)(nil)
	_ infra.AuditInterface          = (*MockAudit)(nil)
	_ infra.CacheInterface          = (*MockCache)(nil)
)

func (m *MockGateway) Fetch(ctx context.Context, table domain.Table, q repository.Query) ([]domain.Record, error) {
	args := m.Called(ctx, table, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Record), args.Error(1)
}

func (m *MockGateway) Get(ctx context.Context, table domain.Table, id uint64) (domain.Record, error) {
	args := m.Called(ctx, table, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Record), args.Error(1)
}

func (m *MockGateway) Insert(ctx context.Context, rec domain.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockGateway) Update(ctx context.Context, table domain.Table, id uint64, patch domain.Patch) error {
	args := m.Called(ctx, table, id, patch)
	return args.Error(0)
}

func (m *MockGateway) Delete(ctx context.Context, table domain.Table, id uint64) error {
	args := m.Called(ctx, table, id)
	return args.Error(0)
}

func (m *MockGateway) Count(ctx context.Context, table domain.Table, filters ...repository.Filter) (int64, error) {
	args := m.Called(ctx, table, filters)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) Subscribe(ctx context.Context, table domain.Table) (repository.Subscription, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Subscription), args.Error(1)
}

func (m *MockPaymentGateway) VerifyTransaction(ctx context.Context, reference string) (*infra.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.Verification), args.Error(1)
}

func (m *MockPaymentGateway) InitializeTransaction(ctx context.Context, charge infra.ChargeRequest) (*infra.Charge, error) {
	args := m.Called(ctx, charge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.Charge), args.Error(1)
}

func (m *MockAudit) Record(ctx context.Context, entry *infra.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAudit) List(ctx context.Context, entityID string, limit int64) ([]*infra.AuditEntry, error) {
	args := m.Called(ctx, entityID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*infra.AuditEntry), args.Error(1)
}

func (m *MockCache) GetJSON(ctx context.Context, key string, dest any) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}
