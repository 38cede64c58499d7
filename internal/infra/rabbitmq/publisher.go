package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-service/internal/domain"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("rabbitmq not connected")

const defaultReconnectInterval = 5 * time.Second

// ChangeMessage is the envelope written to the exchange. Pattern repeats the
// routing key so consumers bound with wildcards can still dispatch on it.
type ChangeMessage struct {
	Pattern string             `json:"pattern"`
	Data    domain.ChangeEvent `json:"data"`
	ID      string             `json:"id,omitempty"`
}

// Bus publishes committed row changes to a topic exchange and hands out
// per-table subscriptions backed by exclusive queues. A lost connection is
// redialed in the background; until then Publish and Subscribe fail with
// ErrNotConnected.
type Bus struct {
	url      string
	exchange string
	log      *zap.Logger
	dial     func(url string) (*amqp.Connection, error)
	retry    time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	done      chan struct{}
	closeOnce sync.Once
}

func NewBus(amqpURL, exchange string, logger *zap.Logger) (*Bus, error) {
	b := newBus(amqpURL, exchange, logger)
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

func newBus(amqpURL, exchange string, logger *zap.Logger) *Bus {
	return &Bus{
		url:      amqpURL,
		exchange: exchange,
		log:      logger.Named("rabbitmq"),
		dial:     amqp.Dial,
		retry:    defaultReconnectInterval,
		done:     make(chan struct{}),
	}
}

// SetReconnectInterval sets the wait between redial attempts.
func (b *Bus) SetReconnectInterval(d time.Duration) {
	if d > 0 {
		b.mu.Lock()
		b.retry = d
		b.mu.Unlock()
	}
}

func (b *Bus) connect() error {
	conn, err := b.dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		b.exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	b.mu.Lock()
	select {
	case <-b.done:
		b.mu.Unlock()
		channel.Close()
		conn.Close()
		return ErrNotConnected
	default:
	}
	b.conn, b.channel = conn, channel
	b.mu.Unlock()

	go b.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

// watch waits for the connection to drop and then redials.
func (b *Bus) watch(closed <-chan *amqp.Error) {
	select {
	case <-b.done:
		return
	case reason := <-closed:
		select {
		case <-b.done:
			return
		default:
		}
		if reason != nil {
			b.log.Warn("connection lost", zap.Int("code", reason.Code), zap.String("reason", reason.Reason))
		} else {
			b.log.Warn("connection lost")
		}
		b.mu.Lock()
		b.conn, b.channel = nil, nil
		b.mu.Unlock()
		b.reconnect()
	}
}

func (b *Bus) reconnect() {
	b.mu.Lock()
	every := b.retry
	b.mu.Unlock()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			if err := b.connect(); err != nil {
				b.log.Info("rabbitmq failed to reconnect", zap.Error(err))
				continue
			}
			b.log.Info("rabbitmq reconnected")
			return
		}
	}
}

// connection returns the live connection, or ErrNotConnected while redialing.
func (b *Bus) connection() (*amqp.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil || b.conn.IsClosed() {
		return nil, ErrNotConnected
	}
	return b.conn, nil
}

func (b *Bus) Publish(ctx context.Context, evt domain.ChangeEvent) error {
	msg := ChangeMessage{
		Pattern: evt.RoutingKey(),
		Data:    evt,
		ID:      uuid.NewString(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel == nil {
		return ErrNotConnected
	}
	err = b.channel.Publish(
		b.exchange,
		msg.Pattern,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    msg.ID,
			Timestamp:    evt.CommitTime,
			DeliveryMode: amqp.Transient,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	b.log.Debug("change published", zap.String("pattern", msg.Pattern), zap.String("id", msg.ID))
	return nil
}

// Close stops reconnecting and closes the current connection, if any.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channel != nil {
		b.channel.Close()
		b.channel = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}
