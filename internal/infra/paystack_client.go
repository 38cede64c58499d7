package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrPaymentGatewayUnavailable = errors.New("payment gateway unavailable")

// Verification is the gateway's view of a transaction. AmountMinor is in
// currency subunits (pesewas, kobo, cents).
type Verification struct {
	Success     bool
	Status      string
	Message     string
	Reference   string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
}

type ChargeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type Charge struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type PaystackClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewPaystackClient(baseURL, secretKey string, timeout time.Duration) *PaystackClient {
	return &PaystackClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type transactionData struct {
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
}

// VerifyTransaction asks the gateway for the authoritative state of reference.
// A 4xx answer with a readable body is a verification result, not an error.
func (c *PaystackClient) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var body envelope[transactionData]
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	return &Verification{
		Success:     body.Status,
		Status:      body.Data.Status,
		Message:     body.Message,
		Reference:   body.Data.Reference,
		AmountMinor: body.Data.Amount,
		Currency:    body.Data.Currency,
		PaidAt:      body.Data.PaidAt,
	}, nil
}

func (c *PaystackClient) InitializeTransaction(ctx context.Context, charge ChargeRequest) (*Charge, error) {
	payload := map[string]any{
		"email":     charge.Email,
		"amount":    charge.AmountMinor,
		"reference": charge.Reference,
	}
	if charge.Currency != "" {
		payload["currency"] = charge.Currency
	}
	if charge.CallbackURL != "" {
		payload["callback_url"] = charge.CallbackURL
	}
	if len(charge.Metadata) > 0 {
		payload["metadata"] = charge.Metadata
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var body envelope[Charge]
	if err := c.do(req, &body); err != nil {
		return nil, err
	}
	if !body.Status {
		return nil, fmt.Errorf("initialize transaction: %s", body.Message)
	}
	return &body.Data, nil
}

func (c *PaystackClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrPaymentGatewayUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentGatewayUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: status %d with unreadable body", ErrPaymentGatewayUnavailable, resp.StatusCode)
	}
	return nil
}
