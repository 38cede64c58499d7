package services

import (
	"errors"

	"restaurant-service/internal/domain"
)

var (
	ErrValidation         = errors.New("invalid request")
	ErrReferenceMismatch  = errors.New("payment reference mismatch")
	ErrPaymentNotVerified = errors.New("payment could not be verified")
	ErrAmountMismatch     = errors.New("payment amount mismatch")
	ErrCurrencyMismatch   = errors.New("payment currency mismatch")
	// ErrOrderSaveFailed means money moved but no order row exists. It needs
	// manual reconciliation and is never retried automatically.
	ErrOrderSaveFailed    = errors.New("payment successful but order could not be saved")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrOrderNotFound      = errors.New("order not found")
	ErrRecordNotFound     = errors.New("record not found")

	ErrInvalidStatus        = domain.ErrInvalidStatus
	ErrTransitionNotAllowed = domain.ErrTransitionNotAllowed
)
