package feed

import (
	"fmt"

	"restaurant-service/internal/domain"
)

// FilterAll selects every record.
const FilterAll = "all"

// Collection is the local copy of one table, most recent first. It is not
// safe for concurrent use; Session serializes access.
type Collection struct {
	table   domain.Table
	records []domain.Record
	filter  string
	view    []domain.Record
	// ids deleted since the last Reset; ids are never reused
	deleted map[uint64]struct{}

	// events applied while a refresh fetch is in flight
	refreshing int
	seq        uint64
	journal    []journaled
}

type journaled struct {
	seq uint64
	evt domain.ChangeEvent
}

func NewCollection(table domain.Table) *Collection {
	return &Collection{table: table, filter: FilterAll, deleted: map[uint64]struct{}{}}
}

func (c *Collection) Table() domain.Table { return c.table }

// Reset replaces the contents after a full fetch. recs must already be
// newest first.
func (c *Collection) Reset(recs []domain.Record) {
	c.records = append([]domain.Record(nil), recs...)
	c.deleted = map[uint64]struct{}{}
	c.derive()
}

// BeginRefresh marks the start of a full fetch. Events applied from now on
// are kept so ResetSince can replay them over the fetched rows.
func (c *Collection) BeginRefresh() uint64 {
	c.refreshing++
	return c.seq
}

// EndRefresh releases the journal once no fetch is in flight.
func (c *Collection) EndRefresh() {
	if c.refreshing > 0 {
		c.refreshing--
	}
	if c.refreshing == 0 {
		c.journal = nil
	}
}

// ResetSince replaces the contents with a fetch started at mark, then
// replays the events applied after mark so the snapshot never undoes them.
func (c *Collection) ResetSince(recs []domain.Record, mark uint64) {
	c.Reset(recs)
	for _, j := range c.journal {
		if j.seq > mark {
			_, _ = c.apply(j.evt)
		}
	}
	c.derive()
}

// Apply folds one change event into the collection. It reports whether the
// contents changed. Updates and deletes for unknown ids are no-ops, and an
// insert arriving after the delete of the same id is dropped.
func (c *Collection) Apply(evt domain.ChangeEvent) (bool, error) {
	if evt.Table != c.table {
		return false, fmt.Errorf("event for %s applied to %s", evt.Table, c.table)
	}
	if c.refreshing > 0 {
		c.seq++
		c.journal = append(c.journal, journaled{seq: c.seq, evt: evt})
	}
	changed, err := c.apply(evt)
	if changed {
		c.derive()
	}
	return changed, err
}

func (c *Collection) apply(evt domain.ChangeEvent) (bool, error) {
	id, err := evt.RecordID()
	if err != nil {
		return false, err
	}

	changed := false
	switch evt.Type {
	case domain.EventInsert:
		if _, gone := c.deleted[id]; gone {
			return false, nil
		}
		rec, err := c.table.Decode(evt.New)
		if err != nil {
			return false, err
		}
		c.remove(id)
		c.records = append([]domain.Record{rec}, c.records...)
		changed = true
	case domain.EventUpdate:
		i := c.index(id)
		if i < 0 {
			return false, nil
		}
		merged, err := domain.Merge(c.records[i], evt.New)
		if err != nil {
			return false, err
		}
		c.records[i] = merged
		changed = true
	case domain.EventDelete:
		c.deleted[id] = struct{}{}
		changed = c.remove(id)
	default:
		return false, fmt.Errorf("unknown event type %q", evt.Type)
	}
	return changed, nil
}

// SetFilter changes the active filter. An empty value or FilterAll shows everything.
func (c *Collection) SetFilter(filter string) {
	c.filter = c.canonicalFilter(filter)
	c.derive()
}

func (c *Collection) Filter() string { return c.filter }

// View is the filtered records, most recent first.
func (c *Collection) View() []domain.Record {
	return append([]domain.Record(nil), c.view...)
}

func (c *Collection) All() []domain.Record {
	return append([]domain.Record(nil), c.records...)
}

func (c *Collection) Len() int { return len(c.records) }

func (c *Collection) Get(id uint64) (domain.Record, bool) {
	i := c.index(id)
	if i < 0 {
		return nil, false
	}
	return c.records[i], true
}

// Replace swaps the record with the same id. It reports false if absent.
func (c *Collection) Replace(rec domain.Record) bool {
	i := c.index(rec.RecordID())
	if i < 0 {
		return false
	}
	c.records[i] = rec
	c.derive()
	return true
}

func (c *Collection) Unseen() int {
	n := 0
	for _, r := range c.records {
		if r.Unseen() {
			n++
		}
	}
	return n
}

func (c *Collection) index(id uint64) int {
	for i, r := range c.records {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}

func (c *Collection) remove(id uint64) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.records = append(c.records[:i:i], c.records[i+1:]...)
	return true
}

// derive rebuilds the filtered view from the full collection.
func (c *Collection) derive() {
	if c.filter == FilterAll {
		c.view = c.records
		return
	}
	c.view = c.matching(c.filter)
}

// Matching returns the records passing filter without changing the active one.
func (c *Collection) Matching(filter string) []domain.Record {
	filter = c.canonicalFilter(filter)
	if filter == FilterAll {
		return c.All()
	}
	return c.matching(filter)
}

func (c *Collection) matching(filter string) []domain.Record {
	out := make([]domain.Record, 0, len(c.records))
	for _, r := range c.records {
		if r.FilterKey() == filter {
			out = append(out, r)
		}
	}
	return out
}

func (c *Collection) canonicalFilter(filter string) string {
	if filter == "" || filter == FilterAll {
		return FilterAll
	}
	if c.table == domain.TableOrders {
		if s, ok := domain.NormalizeStatus(filter); ok {
			return string(s)
		}
	}
	return filter
}
