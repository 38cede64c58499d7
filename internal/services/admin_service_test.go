package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/mocks"
	"restaurant-service/internal/repository"
	"restaurant-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBadge(t *testing.T) {
	assert.Equal(t, "", Badge(0, 9))
	assert.Equal(t, "3", Badge(3, 9))
	assert.Equal(t, "9", Badge(9, 9))
	assert.Equal(t, "9+", Badge(10, 9))
	assert.Equal(t, "9+", Badge(250, 9))
}

func TestAdminService_UnseenCountsDegradesPerTable(t *testing.T) {
	mockGw := &mocks.MockGateway{}
	unseen := []repository.Filter{repository.Eq("seen", false)}
	mockGw.On("Count", mock.Anything, domain.TableOrders, unseen).Return(int64(4), nil)
	mockGw.On("Count", mock.Anything, domain.TableReservations, unseen).Return(int64(0), errors.New("timeout"))
	mockGw.On("Count", mock.Anything, domain.TableReviews, unseen).Return(int64(5), nil)
	mockGw.On("Count", mock.Anything, domain.TableContacts, unseen).Return(int64(2), nil)

	counts := NewAdminService(mockGw, 9, zap.NewNop()).UnseenCounts(context.Background())

	assert.Equal(t, int64(11), counts.Total)
	assert.Equal(t, "9+", counts.Badge)
	assert.Equal(t, int64(0), counts.Tables[domain.TableReservations])
	assert.Equal(t, int64(4), counts.Tables[domain.TableOrders])
	mockGw.AssertExpectations(t)
}

func TestAdminService_MarkSeenAndDelete(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway(nil)
	a := &domain.Review{Name: "A", Rating: 5, Review: "x"}
	b := &domain.Review{Name: "B", Rating: 3, Review: "y"}
	require.NoError(t, gw.Insert(ctx, a))
	require.NoError(t, gw.Insert(ctx, b))

	s := NewAdminService(gw, 9, zap.NewNop())
	require.NoError(t, s.MarkSeen(ctx, domain.TableReviews, []uint64{a.ID, b.ID, 77}))

	counts := s.UnseenCounts(ctx)
	assert.Zero(t, counts.Total)
	assert.Equal(t, "", counts.Badge)

	require.NoError(t, s.Delete(ctx, domain.TableReviews, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, domain.TableReviews, a.ID), ErrRecordNotFound)
	assert.ErrorIs(t, s.MarkSeen(ctx, domain.Table("menu"), []uint64{1}), domain.ErrUnknownTable)
}

func TestAdminService_Dashboard(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway(nil)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	for i, created := range []time.Time{now, now.Add(-2 * time.Hour), now.AddDate(0, 0, -3), now.AddDate(0, 0, -45)} {
		o := CreateMockOrder(0, domain.StatusReceived)
		o.PaymentReference = "ref-" + string(rune('a'+i))
		o.CreatedAt = created
		require.NoError(t, gw.Insert(ctx, o))
	}
	for _, rating := range []int{5, 4, 4} {
		require.NoError(t, gw.Insert(ctx, &domain.Review{Name: "r", Rating: rating, Review: "x"}))
	}
	require.NoError(t, gw.Insert(ctx, &domain.Reservation{Name: "n", Phone: "p", Date: "2026-04-01", Time: "19:00", Guests: 2}))

	s := NewAdminService(gw, 9, zap.NewNop())
	s.now = func() time.Time { return now }

	d, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, d.TotalOrders)
	assert.Equal(t, 1, d.TotalReservations)
	assert.Equal(t, 3, d.TotalReviews)
	assert.Equal(t, 4.3, d.AverageRating)

	require.Len(t, d.OrdersPerDay, 30)
	assert.Equal(t, DayCount{Date: "2026-03-14", Count: 2}, d.OrdersPerDay[29])
	assert.Equal(t, DayCount{Date: "2026-03-11", Count: 1}, d.OrdersPerDay[26])
	assert.Equal(t, "2026-02-13", d.OrdersPerDay[0].Date)
}
