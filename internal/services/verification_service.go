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

const gatewaySuccess = "success"

type VerifyResult struct {
	Order        *domain.Order
	AlreadySaved bool
}

// VerificationService turns a gateway-confirmed payment into exactly one
// stored order. It holds no per-request state.
type VerificationService struct {
	gateway  repository.Gateway
	payments infra.PaymentGatewayInterface
	audit    infra.AuditInterface
	log      *zap.Logger
	currency string
	now      func() time.Time
}

func NewVerificationService(g repository.Gateway, p infra.PaymentGatewayInterface, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		gateway:  g,
		payments: p,
		log:      logger.Named("verification"),
		currency: "GHS",
		now:      time.Now,
	}
}

func (s *VerificationService) SetAudit(a infra.AuditInterface) {
	s.audit = a
}

// SetCurrency sets the currency assumed for carts that do not name one.
func (s *VerificationService) SetCurrency(code string) {
	if code != "" {
		s.currency = strings.ToUpper(code)
	}
}

func (s *VerificationService) VerifyAndSaveOrder(ctx context.Context, reference string, payload domain.OrderPayload) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	if strings.TrimSpace(payload.PaymentReference) == "" {
		return nil, fmt.Errorf("%w: order payment_reference is required", ErrValidation)
	}
	if payload.PaymentReference != reference {
		s.log.Warn("reference mismatch",
			zap.String("reference", reference),
			zap.String("order_reference", payload.PaymentReference))
		return nil, ErrReferenceMismatch
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	v, err := s.payments.VerifyTransaction(ctx, reference)
	if err != nil {
		s.log.Error("verify transaction failed", zap.String("reference", reference), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !v.Success || v.Status != gatewaySuccess {
		s.log.Info("payment not verified",
			zap.String("reference", reference),
			zap.Bool("success", v.Success),
			zap.String("status", v.Status))
		return nil, ErrPaymentNotVerified
	}

	expected := domain.MinorUnits(payload.Total)
	if v.AmountMinor < expected {
		s.log.Warn("paid amount below order total",
			zap.String("reference", reference),
			zap.Int64("paid_minor", v.AmountMinor),
			zap.Int64("expected_minor", expected))
		return nil, fmt.Errorf("%w: paid %d, expected %d", ErrAmountMismatch, v.AmountMinor, expected)
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = s.currency
	}
	if v.Currency != "" && !strings.EqualFold(v.Currency, currency) {
		return nil, fmt.Errorf("%w: paid in %s, order in %s", ErrCurrencyMismatch, v.Currency, currency)
	}

	existing, err := s.findByReference(ctx, reference)
	if err != nil {
		return nil, s.critical(ctx, reference, payload, err)
	}
	if existing != nil {
		s.log.Info("order already saved", zap.String("reference", reference), zap.Uint64("order_id", existing.ID))
		return &VerifyResult{Order: existing, AlreadySaved: true}, nil
	}

	order := payload.NewOrder(s.now())
	order.Currency = currency
	if err := s.gateway.Insert(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			if saved, ferr := s.findByReference(ctx, reference); ferr == nil && saved != nil {
				s.log.Info("concurrent verification already saved order", zap.String("reference", reference))
				return &VerifyResult{Order: saved, AlreadySaved: true}, nil
			}
		}
		return nil, s.critical(ctx, reference, payload, err)
	}

	s.log.Info("order saved",
		zap.String("reference", reference),
		zap.Uint64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return &VerifyResult{Order: order}, nil
}

func (s *VerificationService) findByReference(ctx context.Context, reference string) (*domain.Order, error) {
	recs, err := s.gateway.Fetch(ctx, domain.TableOrders, repository.Query{
		Filters: []repository.Filter{repository.Eq("payment_reference", reference)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	o, ok := recs[0].(*domain.Order)
	if !ok {
		return nil, fmt.Errorf("unexpected record type %T", recs[0])
	}
	return o, nil
}

// critical records a verified payment that has no order row.
func (s *VerificationService) critical(ctx context.Context, reference string, payload domain.OrderPayload, cause error) error {
	s.log.Error("[CRITICAL] verified payment not saved",
		zap.String("reference", reference),
		zap.String("order_number", payload.OrderNumber),
		zap.Float64("total", payload.Total),
		zap.Error(cause))

	if s.audit != nil {
		entry := &infra.AuditEntry{
			Action:   infra.AuditPaymentNotSaved,
			EntityID: reference,
			Severity: "critical",
			Data: map[string]any{
				"order_number": payload.OrderNumber,
				"phone":        payload.Phone,
				"total_minor":  strconv.FormatInt(domain.MinorUnits(payload.Total), 10),
				"error":        cause.Error(),
			},
			CreatedAt: s.now().UTC(),
		}
		// the request may already be cancelled; the trail must still be written
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.audit.Record(auditCtx, entry); err != nil {
			s.log.Error("audit write failed", zap.String("reference", reference), zap.Error(err))
		}
	}
	return fmt.Errorf("%w: reference %s", ErrOrderSaveFailed, reference)
}

// CheckoutRequest is what the storefront needs to open a gateway charge.
type CheckoutRequest struct {
	Email       string
	Cart        domain.OrderPayload
	CallbackURL string
}

type Checkout struct {
	OrderNumber      string `json:"order_number"`
	PaymentReference string `json:"payment_reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	AmountMinor      int64  `json:"amount_minor"`
	Currency         string `json:"currency"`
}

// InitializePayment opens a charge for the cart. Nothing is stored: an
// abandoned checkout leaves no trace.
func (s *VerificationService) InitializePayment(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if strings.TrimSpace(req.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if err := req.Cart.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := s.now()
	orderNumber := strings.ToUpper(strings.TrimSpace(req.Cart.OrderNumber))
	if orderNumber == "" {
		orderNumber = NewOrderNumber(now)
	}
	reference := req.Cart.PaymentReference
	if reference == "" {
		reference = NewPaymentReference(now)
	}
	currency := strings.ToUpper(req.Cart.Currency)
	if currency == "" {
		currency = s.currency
	}
	amount := domain.MinorUnits(req.Cart.Total)

	charge, err := s.payments.InitializeTransaction(ctx, infra.ChargeRequest{
		Email:       req.Email,
		AmountMinor: amount,
		Currency:    currency,
		Reference:   reference,
		CallbackURL: req.CallbackURL,
		Metadata: map[string]any{
			"order_number": orderNumber,
			"phone":        req.Cart.Phone,
		},
	})
	if err != nil {
		if errors.Is(err, infra.ErrPaymentGatewayUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if charge.Reference != "" {
		reference = charge.Reference
	}
	return &Checkout{
		OrderNumber:      orderNumber,
		PaymentReference: reference,
		AuthorizationURL: charge.AuthorizationURL,
		AccessCode:       charge.AccessCode,
		AmountMinor:      amount,
		Currency:         currency,
	}, nil
}

// NewOrderNumber is "UB" followed by the last six digits of the unix millisecond clock.
func NewOrderNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "UB" + ms
}

func NewPaymentReference(now time.Time) string {
	return "UBPAY-" + strconv.FormatInt(now.UnixMilli(), 10)
}
