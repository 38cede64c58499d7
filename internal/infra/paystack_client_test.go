package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaystackClient_VerifyTransaction(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantErr     error
		wantSuccess bool
		wantStatus  string
		wantAmount  int64
	}{
		{
			name:        "successful charge",
			statusCode:  http.StatusOK,
			body:        `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"UBPAY-1","amount":4500,"currency":"GHS"}}`,
			wantSuccess: true,
			wantStatus:  "success",
			wantAmount:  4500,
		},
		{
			name:        "abandoned charge",
			statusCode:  http.StatusOK,
			body:        `{"status":true,"message":"Verification successful","data":{"status":"abandoned","reference":"UBPAY-1","amount":4500,"currency":"GHS"}}`,
			wantSuccess: true,
			wantStatus:  "abandoned",
			wantAmount:  4500,
		},
		{
			name:       "unknown reference",
			statusCode: http.StatusBadRequest,
			body:       `{"status":false,"message":"Transaction reference not found"}`,
		},
		{
			name:       "gateway outage",
			statusCode: http.StatusBadGateway,
			body:       `upstream error`,
			wantErr:    ErrPaymentGatewayUnavailable,
		},
		{
			name:       "garbage body",
			statusCode: http.StatusOK,
			body:       `<html>`,
			wantErr:    ErrPaymentGatewayUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/transaction/verify/UBPAY-1", r.URL.Path)
				assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewPaystackClient(srv.URL+"/", "sk_test", time.Second)
			v, err := c.VerifyTransaction(context.Background(), "UBPAY-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, v.Success)
			assert.Equal(t, tt.wantStatus, v.Status)
			assert.Equal(t, tt.wantAmount, v.AmountMinor)
		})
	}
}

func TestPaystackClient_VerifyEscapesReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/a%2Fb", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"status":false,"message":"not found"}`))
	}))
	defer srv.Close()

	v, err := NewPaystackClient(srv.URL, "sk", time.Second).VerifyTransaction(context.Background(), "a/b")
	require.NoError(t, err)
	assert.False(t, v.Success)
}

func TestPaystackClient_InitializeTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)

		var got map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "ama@example.com", got["email"])
		assert.Equal(t, float64(4500), got["amount"])
		assert.Equal(t, "GHS", got["currency"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"UBPAY-7"}}`))
	}))
	defer srv.Close()

	charge, err := NewPaystackClient(srv.URL, "sk", time.Second).InitializeTransaction(context.Background(), ChargeRequest{
		Email:       "ama@example.com",
		AmountMinor: 4500,
		Currency:    "GHS",
		Reference:   "UBPAY-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", charge.AuthorizationURL)
	assert.Equal(t, "UBPAY-7", charge.Reference)
}

func TestPaystackClient_InitializeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid Email Address Passed"}`))
	}))
	defer srv.Close()

	_, err := NewPaystackClient(srv.URL, "sk", time.Second).InitializeTransaction(context.Background(), ChargeRequest{})
	assert.ErrorContains(t, err, "Invalid Email Address Passed")
}
