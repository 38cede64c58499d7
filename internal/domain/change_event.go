package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is a committed row change as delivered to realtime subscribers.
// New carries the full row for INSERT and the changed fields (or the full row)
// for UPDATE; Old carries at least the id for DELETE.
type ChangeEvent struct {
	Table      Table           `json:"table"`
	Type       EventType       `json:"type"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_timestamp"`
}

var ErrNoRecordID = errors.New("change event carries no record id")

// RoutingKey is the broker topic for the event, e.g. "orders.insert".
func (e ChangeEvent) RoutingKey() string {
	return fmt.Sprintf("%s.%s", e.Table, strings.ToLower(string(e.Type)))
}

// RecordID reads the id from New, falling back to Old.
func (e ChangeEvent) RecordID() (uint64, error) {
	for _, raw := range []json.RawMessage{e.New, e.Old} {
		if len(raw) == 0 {
			continue
		}
		var head struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return 0, fmt.Errorf("decode record id: %w", err)
		}
		if head.ID != 0 {
			return head.ID, nil
		}
	}
	return 0, ErrNoRecordID
}

func NewInsertEvent(rec Record, at time.Time) (ChangeEvent, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Table: rec.RecordTable(), Type: EventInsert, New: raw, CommitTime: at}, nil
}

func NewUpdateEvent(rec Record, at time.Time) (ChangeEvent, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Table: rec.RecordTable(), Type: EventUpdate, New: raw, CommitTime: at}, nil
}

func NewDeleteEvent(table Table, id uint64, at time.Time) ChangeEvent {
	old, _ := json.Marshal(map[string]uint64{"id": id})
	return ChangeEvent{Table: table, Type: EventDelete, Old: old, CommitTime: at}
}
