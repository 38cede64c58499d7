package infra

import (
	"context"
	"errors"
	"time"
)

type PaymentGatewayInterface interface {
	VerifyTransaction(ctx context.Context, reference string) (*Verification, error)
	InitializeTransaction(ctx context.Context, charge ChargeRequest) (*Charge, error)
}

var _ PaymentGatewayInterface = (*PaystackClient)(nil)

// CacheInterface is a JSON value cache. GetJSON returns ErrCacheMiss when
// the key is absent.
type CacheInterface interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

var ErrCacheMiss = errors.New("cache miss")

// AuditEntry is a durable note for manual follow-up.
type AuditEntry struct {
	Action    string         `bson:"action" json:"action"`
	EntityID  string         `bson:"entity_id" json:"entity_id"`
	Severity  string         `bson:"severity" json:"severity"`
	Data      map[string]any `bson:"data" json:"data"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
}

const (
	AuditPaymentNotSaved = "payment_not_saved"
	AuditStatusChanged   = "order_status_changed"
)

type AuditInterface interface {
	Record(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, entityID string, limit int64) ([]*AuditEntry, error)
}
