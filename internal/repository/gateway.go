package repository

import (
	"context"
	"errors"
	"fmt"

	"restaurant-service/internal/domain"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrUnknownColumn    = errors.New("unknown column")
	ErrSubscriptionDone = errors.New("subscription closed")
)

type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
	OpGte Op = "gte"
)

// Filter restricts a query to rows where Column compares to Value.
// For OpIn Value must be a slice.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

func In(column string, values any) Filter { return Filter{Column: column, Op: OpIn, Value: values} }

func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

type OrderBy struct {
	Column string
	Desc   bool
}

type Query struct {
	Filters []Filter
	OrderBy *OrderBy
	Limit   int
}

// Newest orders by created_at descending.
func Newest(filters ...Filter) Query {
	return Query{Filters: filters, OrderBy: &OrderBy{Column: "created_at", Desc: true}}
}

// Gateway is the persistence contract used by every service. Writes are
// announced to subscribers of the written table once committed.
type Gateway interface {
	Fetch(ctx context.Context, table domain.Table, q Query) ([]domain.Record, error)
	Get(ctx context.Context, table domain.Table, id uint64) (domain.Record, error)
	Insert(ctx context.Context, rec domain.Record) error
	Update(ctx context.Context, table domain.Table, id uint64, patch domain.Patch) error
	Delete(ctx context.Context, table domain.Table, id uint64) error
	Count(ctx context.Context, table domain.Table, filters ...Filter) (int64, error)
	Subscribe(ctx context.Context, table domain.Table) (Subscription, error)
}

// Subscription is a stream of committed changes for one table. Events is
// closed after Close or when the underlying transport fails; Err then
// reports why.
type Subscription interface {
	Events() <-chan domain.ChangeEvent
	Err() error
	Close() error
}

// CheckQuery rejects filters and orderings on columns the table does not expose.
func CheckQuery(table domain.Table, filters []Filter, order *OrderBy) error {
	cols := table.Columns()
	if cols == nil {
		return domain.ErrUnknownTable
	}
	for _, f := range filters {
		if !cols[f.Column] {
			return fmt.Errorf("%w: %s on %s", ErrUnknownColumn, f.Column, table)
		}
	}
	if order != nil && !cols[order.Column] {
		return fmt.Errorf("%w: %s on %s", ErrUnknownColumn, order.Column, table)
	}
	return nil
}

// ChangeBus carries committed change events from the writer to subscribers,
// possibly across processes.
type ChangeBus interface {
	Publish(ctx context.Context, evt domain.ChangeEvent) error
	Subscribe(ctx context.Context, table domain.Table) (Subscription, error)
}
