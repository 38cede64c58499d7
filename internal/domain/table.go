package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Table names one of the watched record kinds. Every switch over Table in this
// module covers all four values and fails with ErrUnknownTable otherwise.
type Table string

const (
	TableOrders       Table = "orders"
	TableReservations Table = "reservations"
	TableReviews      Table = "reviews"
	TableContacts     Table = "contacts"
)

var WatchedTables = []Table{TableOrders, TableReservations, TableReviews, TableContacts}

var ErrUnknownTable = errors.New("unknown table")

// Record is a row of any watched table.
type Record interface {
	RecordID() uint64
	RecordTable() Table
	Timestamp() time.Time
	Unseen() bool
	// FilterKey is the value admin filters compare against: the resolved
	// status for orders, the rating for reviews, the status otherwise.
	FilterKey() string
}

var (
	_ Record = (*Order)(nil)
	_ Record = (*Reservation)(nil)
	_ Record = (*Review)(nil)
	_ Record = (*ContactMessage)(nil)
)

func ParseTable(s string) (Table, error) {
	t := Table(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTable, s)
	}
	return t, nil
}

func (t Table) Valid() bool {
	switch t {
	case TableOrders, TableReservations, TableReviews, TableContacts:
		return true
	}
	return false
}

// New returns an empty record of the table's type.
func (t Table) New() (Record, error) {
	switch t {
	case TableOrders:
		return &Order{}, nil
	case TableReservations:
		return &Reservation{}, nil
	case TableReviews:
		return &Review{}, nil
	case TableContacts:
		return &ContactMessage{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
}

func (t Table) Decode(raw []byte) (Record, error) {
	rec, err := t.New()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", t, err)
	}
	return rec, nil
}

// FilterColumn is the column the admin filter buttons act on.
func (t Table) FilterColumn() string {
	if t == TableReviews {
		return "rating"
	}
	return "status"
}

// Columns lists the columns a query may filter or order on.
func (t Table) Columns() map[string]bool {
	common := []string{"id", "name", "seen", "created_at"}
	var extra []string
	switch t {
	case TableOrders:
		extra = []string{"order_number", "payment_reference", "phone", "email", "status", "total"}
	case TableReservations:
		extra = []string{"phone", "date", "time", "guests", "status"}
	case TableReviews:
		extra = []string{"rating"}
	case TableContacts:
		extra = []string{"email", "subject", "status"}
	default:
		return nil
	}
	cols := make(map[string]bool, len(common)+len(extra))
	for _, c := range append(common, extra...) {
		cols[c] = true
	}
	return cols
}

// Updatable lists the columns an admin mutation may write.
func (t Table) Updatable() map[string]bool {
	switch t {
	case TableOrders, TableReservations, TableContacts:
		return map[string]bool{"status": true, "seen": true}
	case TableReviews:
		return map[string]bool{"seen": true}
	}
	return nil
}

// Patch is a partial record keyed by column name.
type Patch map[string]any

func (t Table) CheckPatch(p Patch) error {
	allowed := t.Updatable()
	if allowed == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	if len(p) == 0 {
		return errors.New("empty patch")
	}
	for col := range p {
		if !allowed[col] {
			return fmt.Errorf("column %q of %s is not writable", col, t)
		}
	}
	return nil
}

// Merge overlays the fields present in patch onto a copy of rec.
// Fields absent from patch keep their current values.
func Merge(rec Record, patch json.RawMessage) (Record, error) {
	base, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	delete(overlay, "id")
	for k, v := range overlay {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return rec.RecordTable().Decode(merged)
}
