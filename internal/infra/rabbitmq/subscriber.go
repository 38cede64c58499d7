package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrDeliveryClosed = errors.New("rabbitmq delivery channel closed")

const subscriptionBuffer = 64

// Subscribe binds a private, auto-deleted queue to "<table>.*". Events
// published while no subscription exists are not replayed.
func (b *Bus) Subscribe(ctx context.Context, table domain.Table) (repository.Subscription, error) {
	if !table.Valid() {
		return nil, domain.ErrUnknownTable
	}
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, string(table)+".*", b.exchange, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume: %w", err)
	}

	s := &subscription{
		ch:     ch,
		events: make(chan domain.ChangeEvent, subscriptionBuffer),
		done:   make(chan struct{}),
		log:    b.log.With(zap.String("table", string(table)), zap.String("queue", q.Name)),
	}
	go s.run(ctx, deliveries)
	return s, nil
}

type closer interface {
	Close() error
}

type subscription struct {
	ch     closer
	events chan domain.ChangeEvent
	done   chan struct{}
	log    *zap.Logger

	once sync.Once
	mu   sync.Mutex
	err  error
}

func (s *subscription) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(s.events)
	for {
		select {
		case <-ctx.Done():
			s.stop(ctx.Err())
			return
		case <-s.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				s.stop(ErrDeliveryClosed)
				return
			}
			var msg ChangeMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				s.log.Warn("undecodable change message", zap.String("id", d.MessageId), zap.Error(err))
				continue
			}
			select {
			case s.events <- msg.Data:
			case <-s.done:
				return
			case <-ctx.Done():
				s.stop(ctx.Err())
				return
			}
		}
	}
}

func (s *subscription) Events() <-chan domain.ChangeEvent { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.stop(repository.ErrSubscriptionDone)
	return nil
}

func (s *subscription) stop(reason error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = reason
		s.mu.Unlock()
		close(s.done)
		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			s.log.Warn("closing subscription channel", zap.Error(err))
		}
	})
}
