package feed

import (
	"encoding/json"
	"testing"
	"time"

	"restaurant-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func order(id uint64, status domain.OrderStatus, at time.Time) *domain.Order {
	return &domain.Order{
		ID:               id,
		OrderNumber:      "UB00000" + string(rune('0'+id)),
		PaymentReference: "UBPAY-" + string(rune('0'+id)),
		Total:            45,
		Status:           status,
		CreatedAt:        at,
	}
}

func insertEvt(t *testing.T, rec domain.Record) domain.ChangeEvent {
	t.Helper()
	evt, err := domain.NewInsertEvent(rec, base)
	require.NoError(t, err)
	return evt
}

func patchEvt(t *testing.T, table domain.Table, id uint64, fields map[string]any) domain.ChangeEvent {
	t.Helper()
	fields["id"] = id
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return domain.ChangeEvent{Table: table, Type: domain.EventUpdate, New: raw, CommitTime: base}
}

func ids(recs []domain.Record) []uint64 {
	out := make([]uint64, len(recs))
	for i, r := range recs {
		out[i] = r.RecordID()
	}
	return out
}

func TestCollection_Apply(t *testing.T) {
	tests := []struct {
		name        string
		seed        []domain.Record
		events      func(t *testing.T) []domain.ChangeEvent
		expectedIDs []uint64
		check       func(t *testing.T, c *Collection)
	}{
		{
			name: "insert prepends",
			seed: []domain.Record{order(1, domain.StatusReceived, base)},
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{insertEvt(t, order(2, domain.StatusReceived, base.Add(time.Minute)))}
			},
			expectedIDs: []uint64{2, 1},
		},
		{
			name: "insert update delete leaves record absent",
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{
					insertEvt(t, order(7, domain.StatusReceived, base)),
					patchEvt(t, domain.TableOrders, 7, map[string]any{"status": "Ready"}),
					domain.NewDeleteEvent(domain.TableOrders, 7, base),
				}
			},
			expectedIDs: []uint64{},
		},
		{
			name: "delete received before insert leaves record absent",
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{
					domain.NewDeleteEvent(domain.TableOrders, 3, base),
					insertEvt(t, order(3, domain.StatusReceived, base)),
					patchEvt(t, domain.TableOrders, 3, map[string]any{"status": "Ready"}),
				}
			},
			expectedIDs: []uint64{},
		},
		{
			name: "update for unknown id is ignored",
			seed: []domain.Record{order(1, domain.StatusReceived, base)},
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{patchEvt(t, domain.TableOrders, 99, map[string]any{"status": "Ready"})}
			},
			expectedIDs: []uint64{1},
		},
		{
			name: "partial update keeps other fields",
			seed: []domain.Record{order(1, domain.StatusReceived, base)},
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{patchEvt(t, domain.TableOrders, 1, map[string]any{"seen": true})}
			},
			expectedIDs: []uint64{1},
			check: func(t *testing.T, c *Collection) {
				rec, ok := c.Get(1)
				require.True(t, ok)
				o := rec.(*domain.Order)
				assert.True(t, o.Seen)
				assert.Equal(t, domain.StatusReceived, o.Status)
				assert.Equal(t, 45.0, o.Total)
			},
		},
		{
			name: "duplicate insert replaces",
			seed: []domain.Record{order(1, domain.StatusReceived, base)},
			events: func(t *testing.T) []domain.ChangeEvent {
				return []domain.ChangeEvent{insertEvt(t, order(1, domain.StatusReady, base))}
			},
			expectedIDs: []uint64{1},
			check: func(t *testing.T, c *Collection) {
				rec, _ := c.Get(1)
				assert.Equal(t, domain.StatusReady, rec.(*domain.Order).Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollection(domain.TableOrders)
			c.Reset(tt.seed)
			for _, evt := range tt.events(t) {
				_, err := c.Apply(evt)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedIDs, ids(c.All()))
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestCollection_ApplyRejectsForeignTable(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	_, err := c.Apply(domain.NewDeleteEvent(domain.TableReviews, 1, base))
	assert.Error(t, err)
}

func TestCollection_FilterIsRederivedOnChange(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	c.Reset([]domain.Record{
		order(2, "out for delivery", base.Add(time.Minute)),
		order(1, domain.StatusReceived, base),
	})

	c.SetFilter("delivering")
	assert.Equal(t, "Delivery", c.Filter())
	assert.Equal(t, []uint64{2}, ids(c.View()))

	_, err := c.Apply(patchEvt(t, domain.TableOrders, 1, map[string]any{"status": "Delivery"}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 1}, ids(c.View()))

	_, err = c.Apply(domain.NewDeleteEvent(domain.TableOrders, 2, base))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids(c.View()))

	c.SetFilter("")
	assert.Equal(t, FilterAll, c.Filter())
	assert.Len(t, c.View(), 1)
}

func TestCollection_ReviewFilterUsesRating(t *testing.T) {
	c := NewCollection(domain.TableReviews)
	c.Reset([]domain.Record{
		&domain.Review{ID: 2, Rating: 5, CreatedAt: base},
		&domain.Review{ID: 1, Rating: 3, CreatedAt: base},
	})
	c.SetFilter("5")
	assert.Equal(t, []uint64{2}, ids(c.View()))
	assert.Equal(t, 2, c.Unseen())
}

func TestCollection_MatchingKeepsActiveFilter(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	c.Reset([]domain.Record{
		order(2, domain.StatusReady, base),
		order(1, domain.StatusReceived, base),
	})
	c.SetFilter("ready")

	assert.Equal(t, []uint64{1}, ids(c.Matching("pending")))
	assert.Equal(t, []uint64{2, 1}, ids(c.Matching("")))
	assert.Equal(t, "Ready", c.Filter())
	assert.Equal(t, []uint64{2}, ids(c.View()))
}

func TestCollection_ResetForgetsDeletes(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	_, err := c.Apply(domain.NewDeleteEvent(domain.TableOrders, 5, base))
	require.NoError(t, err)

	c.Reset([]domain.Record{order(5, domain.StatusReceived, base)})
	_, ok := c.Get(5)
	assert.True(t, ok)
}

func TestCollection_ResetSinceKeepsEventsAppliedDuringFetch(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	c.Reset([]domain.Record{order(2, domain.StatusReceived, base.Add(time.Minute)), order(1, domain.StatusReceived, base)})

	mark := c.BeginRefresh()
	// rows as read by the fetch, before the events below
	snapshot := []domain.Record{order(2, domain.StatusReceived, base.Add(time.Minute)), order(1, domain.StatusReceived, base)}

	for _, evt := range []domain.ChangeEvent{
		domain.NewDeleteEvent(domain.TableOrders, 1, base),
		patchEvt(t, domain.TableOrders, 2, map[string]any{"status": "Ready"}),
		insertEvt(t, order(3, domain.StatusReceived, base.Add(2*time.Minute))),
	} {
		_, err := c.Apply(evt)
		require.NoError(t, err)
	}

	c.ResetSince(snapshot, mark)
	c.EndRefresh()

	assert.Equal(t, []uint64{3, 2}, ids(c.View()))
	rec, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, domain.StatusReady, rec.(*domain.Order).Status)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Empty(t, c.journal)

	// with no fetch in flight nothing is journaled
	_, err := c.Apply(domain.NewDeleteEvent(domain.TableOrders, 2, base))
	require.NoError(t, err)
	assert.Empty(t, c.journal)
}

func TestCollection_OverlappingRefreshes(t *testing.T) {
	c := NewCollection(domain.TableOrders)
	c.Reset([]domain.Record{order(1, domain.StatusReceived, base)})

	first := c.BeginRefresh()
	_, err := c.Apply(domain.NewDeleteEvent(domain.TableOrders, 1, base))
	require.NoError(t, err)
	second := c.BeginRefresh()

	// the second fetch already misses row 1
	c.ResetSince(nil, second)
	c.EndRefresh()
	assert.NotEmpty(t, c.journal)

	c.ResetSince([]domain.Record{order(1, domain.StatusReceived, base)}, first)
	c.EndRefresh()
	assert.Empty(t, c.View())
	assert.Empty(t, c.journal)
}
