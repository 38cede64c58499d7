package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type OrderItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (i OrderItem) SubtotalMinor() int64 {
	return MinorUnits(i.Price) * int64(i.Quantity)
}

type Order struct {
	ID               uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderNumber      string      `json:"order_number" gorm:"type:varchar(32);not null;index"`
	PaymentReference string      `json:"payment_reference" gorm:"type:varchar(100);not null;uniqueIndex:ux_orders_payment_reference"`
	Name             string      `json:"name" gorm:"type:varchar(120)"`
	Phone            string      `json:"phone" gorm:"type:varchar(32);index"`
	Email            string      `json:"email" gorm:"type:varchar(160)"`
	Address          string      `json:"address" gorm:"type:varchar(255)"`
	OrderType        string      `json:"order_type" gorm:"type:varchar(32)"`
	Items            []OrderItem `json:"items" gorm:"serializer:json;type:json"`
	Total            float64     `json:"total" gorm:"type:decimal(10,2);not null"`
	Currency         string      `json:"currency" gorm:"type:varchar(3)"`
	Status           OrderStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Seen             bool        `json:"seen" gorm:"not null;index"`
	CreatedAt        time.Time   `json:"created_at" gorm:"autoCreateTime"`
}

func (Order) TableName() string {
	return string(TableOrders)
}

func (o *Order) RecordID() uint64     { return o.ID }
func (o *Order) RecordTable() Table   { return TableOrders }
func (o *Order) Timestamp() time.Time { return o.CreatedAt }
func (o *Order) Unseen() bool         { return !o.Seen }
func (o *Order) FilterKey() string    { return string(StatusLabel(string(o.Status))) }

// OrderPayload is the cart a client submits together with its payment reference.
// Status is accepted on the wire but never trusted.
type OrderPayload struct {
	OrderNumber      string      `json:"order_number"`
	PaymentReference string      `json:"payment_reference"`
	Name             string      `json:"name"`
	Phone            string      `json:"phone"`
	Email            string      `json:"email"`
	Address          string      `json:"address"`
	OrderType        string      `json:"order_type"`
	Items            []OrderItem `json:"items"`
	Total            float64     `json:"total"`
	Currency         string      `json:"currency"`
	Status           string      `json:"status,omitempty"`
}

// MinorUnits converts a major-unit amount (cedis, dollars) to integer subunits.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func ItemsTotalMinor(items []OrderItem) int64 {
	var sum int64
	for _, it := range items {
		sum += it.SubtotalMinor()
	}
	return sum
}

var (
	ErrEmptyItems   = errors.New("order has no items")
	ErrBadTotal     = errors.New("order total must be greater than zero")
	ErrTotalDiffers = errors.New("order total does not match its items")
)

// Validate checks the payload shape. It does not look at the payment reference.
func (p OrderPayload) Validate() error {
	if p.Total <= 0 || math.IsNaN(p.Total) || math.IsInf(p.Total, 0) {
		return ErrBadTotal
	}
	if len(p.Items) == 0 {
		return ErrEmptyItems
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("item %d: name is empty", i+1)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("item %d: quantity %d must be at least 1", i+1, it.Quantity)
		}
		if it.Price < 0 {
			return fmt.Errorf("item %d: negative price", i+1)
		}
	}
	if ItemsTotalMinor(p.Items) != MinorUnits(p.Total) {
		return fmt.Errorf("%w: items %d, total %d", ErrTotalDiffers, ItemsTotalMinor(p.Items), MinorUnits(p.Total))
	}
	return nil
}

// NewOrder builds the record to persist after a verified payment.
func (p OrderPayload) NewOrder(now time.Time) *Order {
	items := make([]OrderItem, len(p.Items))
	copy(items, p.Items)
	return &Order{
		OrderNumber:      strings.ToUpper(strings.TrimSpace(p.OrderNumber)),
		PaymentReference: p.PaymentReference,
		Name:             strings.TrimSpace(p.Name),
		Phone:            strings.TrimSpace(p.Phone),
		Email:            strings.TrimSpace(p.Email),
		Address:          strings.TrimSpace(p.Address),
		OrderType:        p.OrderType,
		Items:            items,
		Total:            p.Total,
		Currency:         strings.ToUpper(p.Currency),
		Status:           StatusReceived,
		Seen:             false,
		CreatedAt:        now,
	}
}
