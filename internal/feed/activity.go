package feed

import (
	"sort"
	"time"

	"restaurant-service/internal/domain"
)

const DefaultActivitySize = 5

// Activity is one entry of the cross-table "recent activity" stream.
type Activity struct {
	Table  domain.Table  `json:"table"`
	ID     uint64        `json:"id"`
	At     time.Time     `json:"at"`
	Record domain.Record `json:"record"`
}

// ActivityWindow keeps the newest entries across orders, reservations and
// reviews, one per (table, id). Contact messages are not activity.
type ActivityWindow struct {
	size  int
	items []Activity
}

func NewActivityWindow(size int) *ActivityWindow {
	if size <= 0 {
		size = DefaultActivitySize
	}
	return &ActivityWindow{size: size}
}

func tracksActivity(t domain.Table) bool {
	switch t {
	case domain.TableOrders, domain.TableReservations, domain.TableReviews:
		return true
	}
	return false
}

// Add merges rec, replacing an older entry for the same row.
func (w *ActivityWindow) Add(rec domain.Record) {
	if !tracksActivity(rec.RecordTable()) {
		return
	}
	entry := Activity{Table: rec.RecordTable(), ID: rec.RecordID(), At: rec.Timestamp(), Record: rec}

	items := make([]Activity, 0, len(w.items)+1)
	items = append(items, entry)
	for _, a := range w.items {
		if a.Table == entry.Table && a.ID == entry.ID {
			continue
		}
		items = append(items, a)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].At.After(items[j].At) })
	if len(items) > w.size {
		items = items[:w.size]
	}
	w.items = items
}

// Remove drops the entry for one row, if present.
func (w *ActivityWindow) Remove(table domain.Table, id uint64) {
	items := w.items[:0:0]
	for _, a := range w.items {
		if a.Table == table && a.ID == id {
			continue
		}
		items = append(items, a)
	}
	w.items = items
}

// Seed rebuilds the window from freshly fetched rows.
func (w *ActivityWindow) Seed(recs []domain.Record) {
	w.items = nil
	for _, r := range recs {
		w.Add(r)
	}
}

func (w *ActivityWindow) Items() []Activity {
	return append([]Activity(nil), w.items...)
}
