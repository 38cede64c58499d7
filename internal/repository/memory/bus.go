package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"
)

const defaultBuffer = 256

// Bus is an in-process change bus. Delivery is best effort: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[domain.Table]map[*subscription]struct{}
	buffer int
}

var _ repository.ChangeBus = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{subs: map[domain.Table]map[*subscription]struct{}{}, buffer: defaultBuffer}
}

func (b *Bus) Publish(_ context.Context, evt domain.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[evt.Table] {
		select {
		case s.events <- evt:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, table domain.Table) (repository.Subscription, error) {
	if !table.Valid() {
		return nil, domain.ErrUnknownTable
	}
	s := &subscription{
		bus:    b,
		table:  table,
		events: make(chan domain.ChangeEvent, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[table] == nil {
		b.subs[table] = map[*subscription]struct{}{}
	}
	b.subs[table][s] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.closeWith(ctx.Err())
		case <-s.done:
		}
	}()
	return s, nil
}

func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[s.table], s)
	close(s.events)
}

type subscription struct {
	bus     *Bus
	table   domain.Table
	events  chan domain.ChangeEvent
	done    chan struct{}
	once    sync.Once
	err     error
	dropped atomic.Int64
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Dropped reports how many events missed this subscriber because its buffer was full.
func (s *subscription) Dropped() int64 { return s.dropped.Load() }

func (s *subscription) Close() error {
	s.closeWith(repository.ErrSubscriptionDone)
	return nil
}

func (s *subscription) closeWith(err error) {
	s.once.Do(func() {
		s.err = err
		s.bus.remove(s)
		close(s.done)
	})
}
