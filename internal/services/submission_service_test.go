package services

import (
	"context"
	"testing"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSubmissionService() (*SubmissionService, *memory.Gateway) {
	gw := memory.NewGateway(nil)
	s := NewSubmissionService(gw, time.UTC, zap.NewNop())
	s.now = func() time.Time { return TestNow }
	return s, gw
}

func TestSubmissionService_CreateReservation(t *testing.T) {
	tests := []struct {
		name    string
		req     ReservationRequest
		wantErr bool
	}{
		{name: "valid", req: ReservationRequest{Name: "Esi", Phone: "020", Date: "2026-03-15", Time: "19:30", Guests: 4}},
		{name: "missing phone", req: ReservationRequest{Name: "Esi", Date: "2026-03-15", Time: "19:30", Guests: 4}, wantErr: true},
		{name: "no guests", req: ReservationRequest{Name: "Esi", Phone: "020", Date: "2026-03-15", Time: "19:30"}, wantErr: true},
		{name: "in the past", req: ReservationRequest{Name: "Esi", Phone: "020", Date: "2026-03-14", Time: "11:59", Guests: 2}, wantErr: true},
		{name: "bad date", req: ReservationRequest{Name: "Esi", Phone: "020", Date: "15/03/2026", Time: "19:30", Guests: 2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, gw := newSubmissionService()
			r, err := s.CreateReservation(context.Background(), tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				n, _ := gw.Count(context.Background(), domain.TableReservations)
				assert.Zero(t, n)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, r.ID)
			assert.Equal(t, domain.ReservationPending, r.Status)
			assert.False(t, r.Seen)
		})
	}
}

func TestSubmissionService_CreateReview(t *testing.T) {
	s, _ := newSubmissionService()
	ctx := context.Background()

	r, err := s.CreateReview(ctx, ReviewRequest{Name: "Abena", Rating: 5, Review: "Best waakye in town"})
	require.NoError(t, err)
	assert.Equal(t, "5", r.FilterKey())

	_, err = s.CreateReview(ctx, ReviewRequest{Name: "Abena", Rating: 6, Review: "!"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.CreateReview(ctx, ReviewRequest{Name: "", Rating: 3, Review: "ok"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmissionService_CreateContactMessage(t *testing.T) {
	s, _ := newSubmissionService()
	ctx := context.Background()

	c, err := s.CreateContactMessage(ctx, ContactRequest{Name: "Kwame", Email: "kwame@example.com", Subject: "Catering", Message: "Do you cater weddings?"})
	require.NoError(t, err)
	assert.Equal(t, domain.ContactPending, c.Status)

	_, err = s.CreateContactMessage(ctx, ContactRequest{Name: "Kwame", Email: "not-an-email", Message: "hi"})
	assert.ErrorIs(t, err, ErrValidation)
}
