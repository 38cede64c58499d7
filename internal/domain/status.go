package domain

import (
	"errors"
	"strings"
)

type OrderStatus string

const (
	StatusReceived  OrderStatus = "Received"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready"
	StatusDelivery  OrderStatus = "Delivery"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)

// OrderLifecycle is the display order of the tracking timeline. Cancelled is last
// but is reachable from any point.
var OrderLifecycle = []OrderStatus{
	StatusReceived,
	StatusPreparing,
	StatusReady,
	StatusDelivery,
	StatusDelivered,
	StatusCancelled,
}

var statusAliases = map[string]OrderStatus{
	"received":       StatusReceived,
	"pending":        StatusReceived,
	"placed":         StatusReceived,
	"preparing":      StatusPreparing,
	"cooking":        StatusPreparing,
	"ready":          StatusReady,
	"pickup":         StatusReady,
	"delivery":       StatusDelivery,
	"delivering":     StatusDelivery,
	"driverassigned": StatusDelivery,
	"outfordelivery": StatusDelivery,
	"shipped":        StatusDelivery,
	"shipping":       StatusDelivery,
	"delivered":      StatusDelivered,
	"complete":       StatusDelivered,
	"completed":      StatusDelivered,
	"cancelled":      StatusCancelled,
	"canceled":       StatusCancelled,
}

var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrTransitionNotAllowed = errors.New("order status transition not allowed")
)

func compactStatus(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeStatus resolves a raw or legacy status spelling to its canonical value.
// The boolean is false when nothing matches; callers must not persist such a value.
func NormalizeStatus(raw string) (OrderStatus, bool) {
	key := compactStatus(raw)
	if key == "" {
		return "", false
	}
	if s, ok := statusAliases[key]; ok {
		return s, true
	}
	for _, s := range OrderLifecycle {
		if compactStatus(string(s)) == key {
			return s, true
		}
	}
	return "", false
}

// StatusLabel is the value shown when a stored status cannot be resolved.
func StatusLabel(raw string) OrderStatus {
	if s, ok := NormalizeStatus(raw); ok {
		return s
	}
	return StatusReceived
}

// Valid reports whether s is exactly one of the six canonical values.
func (s OrderStatus) Valid() bool {
	return s.position() >= 0
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s OrderStatus) position() int {
	for i, st := range OrderLifecycle {
		if st == s {
			return i
		}
	}
	return -1
}

// TransitionPolicy decides which status moves an admin may apply.
// The zero value is permissive: any canonical status may follow any other.
type TransitionPolicy struct {
	Strict bool
}

func (p TransitionPolicy) Check(from, to OrderStatus) error {
	if to.position() < 0 {
		return ErrInvalidStatus
	}
	if !p.Strict {
		return nil
	}
	current, ok := NormalizeStatus(string(from))
	if !ok {
		// an unreadable stored value may be overwritten
		return nil
	}
	if current == to {
		return nil
	}
	if current.Terminal() {
		return ErrTransitionNotAllowed
	}
	if to == StatusCancelled {
		return nil
	}
	if to.position() < current.position() {
		return ErrTransitionNotAllowed
	}
	return nil
}
