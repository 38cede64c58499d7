package domain

import (
	"strconv"
	"time"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationApproved  ReservationStatus = "approved"
	ReservationDeclined  ReservationStatus = "declined"
	ReservationCompleted ReservationStatus = "completed"
)

var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationApproved,
	ReservationDeclined,
	ReservationCompleted,
}

type Reservation struct {
	ID        uint64            `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string            `json:"name" gorm:"type:varchar(120);not null"`
	Phone     string            `json:"phone" gorm:"type:varchar(32);not null"`
	Date      string            `json:"date" gorm:"type:varchar(10);not null"`
	Time      string            `json:"time" gorm:"type:varchar(8);not null"`
	Guests    int               `json:"guests" gorm:"not null"`
	Status    ReservationStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Seen      bool              `json:"seen" gorm:"not null;index"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

func (Reservation) TableName() string {
	return string(TableReservations)
}

func (r *Reservation) RecordID() uint64   { return r.ID }
func (r *Reservation) RecordTable() Table { return TableReservations }
func (r *Reservation) Unseen() bool       { return !r.Seen }

// Timestamp falls back to the booked slot for rows that predate created_at.
func (r *Reservation) Timestamp() time.Time {
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt
	}
	if t, err := r.Slot(time.UTC); err == nil {
		return t
	}
	return time.Time{}
}

func (r *Reservation) FilterKey() string {
	if r.Status == "" {
		return string(ReservationPending)
	}
	return string(r.Status)
}

// Slot parses the booked date and time in loc.
func (r *Reservation) Slot(loc *time.Location) (time.Time, error) {
	layout := "2006-01-02T15:04"
	value := r.Date + "T" + r.Time
	if len(r.Time) == len("15:04:05") {
		layout = "2006-01-02T15:04:05"
	}
	return time.ParseInLocation(layout, value, loc)
}

func ValidReservationStatus(s string) bool {
	for _, st := range ReservationStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

type Review struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"type:varchar(120);not null"`
	Rating    int       `json:"rating" gorm:"not null;index"`
	Review    string    `json:"review" gorm:"type:text"`
	Seen      bool      `json:"seen" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (Review) TableName() string {
	return string(TableReviews)
}

func (r *Review) RecordID() uint64     { return r.ID }
func (r *Review) RecordTable() Table   { return TableReviews }
func (r *Review) Timestamp() time.Time { return r.CreatedAt }
func (r *Review) Unseen() bool         { return !r.Seen }
func (r *Review) FilterKey() string    { return strconv.Itoa(r.Rating) }

type ContactStatus string

const (
	ContactPending  ContactStatus = "pending"
	ContactViewed   ContactStatus = "viewed"
	ContactResolved ContactStatus = "resolved"
)

var ContactStatuses = []ContactStatus{ContactPending, ContactViewed, ContactResolved}

type ContactMessage struct {
	ID        uint64        `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string        `json:"name" gorm:"type:varchar(120);not null"`
	Email     string        `json:"email" gorm:"type:varchar(160);not null"`
	Subject   string        `json:"subject" gorm:"type:varchar(200)"`
	Message   string        `json:"message" gorm:"type:text;not null"`
	Status    ContactStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Seen      bool          `json:"seen" gorm:"not null;index"`
	CreatedAt time.Time     `json:"created_at" gorm:"autoCreateTime"`
}

func (ContactMessage) TableName() string {
	return string(TableContacts)
}

func (c *ContactMessage) RecordID() uint64     { return c.ID }
func (c *ContactMessage) RecordTable() Table   { return TableContacts }
func (c *ContactMessage) Timestamp() time.Time { return c.CreatedAt }
func (c *ContactMessage) Unseen() bool         { return !c.Seen }

func (c *ContactMessage) FilterKey() string {
	if c.Status == "" {
		return string(ContactPending)
	}
	return string(c.Status)
}

func ValidContactStatus(s string) bool {
	for _, st := range ContactStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}
