package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// Publisher is the subset of *amqp.Channel the broker needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Broker publishes notices as JSON to a RabbitMQ queue.
type Broker struct {
	mu    sync.Mutex
	ch    Publisher
	queue string
	conn  *amqp.Connection
}

type brokerMessage struct {
	SessionID string `json:"session_id"`
	Notice
}

// DialBroker connects to url and declares a durable queue.
func DialBroker(url, queue string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to establish RabbitMQ connection: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: failed to open RabbitMQ channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: failed to declare queue %s: %w", queue, err)
	}
	b := NewBroker(ch, queue)
	b.conn = conn
	return b, nil
}

// NewBroker wraps an already opened channel.
func NewBroker(ch Publisher, queue string) *Broker {
	return &Broker{ch: ch, queue: queue}
}

func (b *Broker) Notify(_ context.Context, sessionID string, n Notice) error {
	body, err := json.Marshal(brokerMessage{SessionID: sessionID, Notice: n})
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.ch.Publish("", b.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.At,
		Type:         n.Code,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("notify: failed to publish message to queue: %w", err)
	}
	return nil
}

// Close closes the underlying connection, if the broker owns one.
func (b *Broker) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
