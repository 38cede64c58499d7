package services

import (
	"context"
	"errors"
	"testing"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/mocks"
	"restaurant-service/internal/repository"
	"restaurant-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeView struct {
	applied  []domain.Patch
	reverted int
}

func (f *fakeView) Optimistic(_ domain.Table, _ uint64, patch domain.Patch) func() {
	f.applied = append(f.applied, patch)
	return func() { f.reverted++ }
}

func seedOrder(t *testing.T, g repository.Gateway, status domain.OrderStatus) *domain.Order {
	t.Helper()
	o := CreateMockOrder(0, status)
	require.NoError(t, g.Insert(context.Background(), o))
	return o
}

func TestStatusService_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name        string
		strict      bool
		stored      domain.OrderStatus
		raw         string
		expected    domain.OrderStatus
		expectedErr error
	}{
		{name: "legacy spelling is normalized", stored: domain.StatusReady, raw: "OutForDelivery", expected: domain.StatusDelivery},
		{name: "cancel from anywhere", stored: domain.StatusPreparing, raw: "canceled", expected: domain.StatusCancelled},
		{name: "permissive allows backward", stored: domain.StatusDelivered, raw: "received", expected: domain.StatusReceived},
		{name: "unknown status", stored: domain.StatusReceived, raw: "lost", expectedErr: ErrInvalidStatus},
		{name: "strict rejects backward", strict: true, stored: domain.StatusReady, raw: "cooking", expectedErr: ErrTransitionNotAllowed},
		{name: "strict rejects leaving terminal", strict: true, stored: domain.StatusCancelled, raw: "ready", expectedErr: ErrTransitionNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			gw := memory.NewGateway(nil)
			o := seedOrder(t, gw, tt.stored)
			view := &fakeView{}
			mockCache := &mocks.MockCache{}
			mockCache.On("Del", mock.Anything, []string{TrackingKey(o.OrderNumber, o.Phone)}).Return(nil).Maybe()

			s := NewStatusService(gw, domain.TransitionPolicy{Strict: tt.strict}, zap.NewNop())
			s.SetView(view)
			s.SetCache(mockCache)

			updated, err := s.UpdateOrderStatus(ctx, o.ID, tt.raw)

			stored, gerr := gw.Get(ctx, domain.TableOrders, o.ID)
			require.NoError(t, gerr)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Empty(t, view.applied)
				assert.Equal(t, tt.stored, stored.(*domain.Order).Status)
				mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, updated.Status)
			assert.Equal(t, tt.expected, stored.(*domain.Order).Status)
			assert.Equal(t, []domain.Patch{{"status": tt.expected}}, view.applied)
			assert.Zero(t, view.reverted)
			mockCache.AssertExpectations(t)
		})
	}
}

func TestStatusService_RevertsLocalChangeOnStoreError(t *testing.T) {
	mockGw := &mocks.MockGateway{}
	mockGw.On("Get", mock.Anything, domain.TableOrders, uint64(5)).Return(CreateMockOrder(5, domain.StatusReceived), nil)
	mockGw.On("Update", mock.Anything, domain.TableOrders, uint64(5), domain.Patch{"status": domain.StatusPreparing}).
		Return(errors.New("lock wait timeout"))
	view := &fakeView{}

	s := NewStatusService(mockGw, domain.TransitionPolicy{}, zap.NewNop())
	s.SetView(view)

	_, err := s.UpdateOrderStatus(context.Background(), 5, "preparing")
	assert.ErrorContains(t, err, "lock wait timeout")
	assert.Len(t, view.applied, 1)
	assert.Equal(t, 1, view.reverted)
	mockGw.AssertExpectations(t)
}

func TestStatusService_OrderNotFound(t *testing.T) {
	s := NewStatusService(memory.NewGateway(nil), domain.TransitionPolicy{}, zap.NewNop())
	_, err := s.UpdateOrderStatus(context.Background(), 404, "ready")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestStatusService_UpdateStatusOtherTables(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway(nil)
	res := &domain.Reservation{Name: "Esi", Phone: "020", Date: "2030-01-01", Time: "19:00", Guests: 2}
	require.NoError(t, gw.Insert(ctx, res))
	contact := &domain.ContactMessage{Name: "Kwame", Email: "k@example.com", Message: "hello"}
	require.NoError(t, gw.Insert(ctx, contact))
	review := &domain.Review{Name: "Abena", Rating: 4, Review: "nice"}
	require.NoError(t, gw.Insert(ctx, review))

	s := NewStatusService(gw, domain.TransitionPolicy{}, zap.NewNop())

	require.NoError(t, s.UpdateStatus(ctx, domain.TableReservations, res.ID, "Approved"))
	rec, err := gw.Get(ctx, domain.TableReservations, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationApproved, rec.(*domain.Reservation).Status)

	require.NoError(t, s.UpdateStatus(ctx, domain.TableContacts, contact.ID, "resolved"))
	assert.ErrorIs(t, s.UpdateStatus(ctx, domain.TableReservations, res.ID, "maybe"), ErrInvalidStatus)
	assert.ErrorIs(t, s.UpdateStatus(ctx, domain.TableReviews, review.ID, "pending"), ErrValidation)
	assert.ErrorIs(t, s.UpdateStatus(ctx, domain.TableContacts, 999, "viewed"), ErrRecordNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, domain.Table("menu"), 1, "viewed"), domain.ErrUnknownTable)
}
