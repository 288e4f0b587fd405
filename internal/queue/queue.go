package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange carries graph lifecycle events between the HTTP replicas and
	// the snapshot worker.
	Exchange = "graph_events"

	RoutingRebuild  = "graph.rebuild"
	RoutingSnapshot = "graph.snapshot"

	// SnapshotQueue receives rebuild requests for the worker.
	SnapshotQueue = "snapshot_queue"

	MaxRetries = 10
	RetryDelay = 10 * time.Second
)

// Event is the body of every message on Exchange.
type Event struct {
	JobID  string    `json:"job_id"`
	Source string    `json:"source,omitempty"`
	Time   time.Time `json:"time"`
	Nodes  int       `json:"nodes,omitempty"`
	Edges  int       `json:"edges,omitempty"`

	// Key is the routing key the event arrived with.
	Key string `json:"-"`
}

func URL(user, pass, host, port string) string {
	u := url.URL{
		Scheme: "amqp",
		Host:   host + ":" + port,
		Path:   "/",
	}
	if user != "" {
		u.User = url.UserPassword(user, pass)
	}
	return u.String()
}

func Dial(connURL string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// Declarer is the subset of *amqp091.Channel used to declare topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

// SetupTopology declares the event exchange and the durable worker queue
// with its retry and dead-letter companions. It is idempotent.
func SetupTopology(ch Declarer) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("ExchangeDeclare %s failed: %w", Exchange, err)
	}

	if _, err := ch.QueueDeclare(SnapshotQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("QueueDeclare %s failed: %w", SnapshotQueue, err)
	}
	if err := ch.QueueBind(SnapshotQueue, RoutingRebuild, Exchange, false, nil); err != nil {
		return fmt.Errorf("QueueBind %s failed: %w", SnapshotQueue, err)
	}

	dlqName := SnapshotQueue + "_dlq"
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("QueueDeclare %s failed: %w", dlqName, err)
	}

	retryName := SnapshotQueue + "_retry"
	_, err := ch.QueueDeclare(
		retryName,
		true,
		false,
		false,
		false,
		amqp091.Table{
			"x-message-ttl":             int32(RetryDelay.Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": SnapshotQueue,
		},
	)
	if err != nil {
		return fmt.Errorf("QueueDeclare %s failed: %w", retryName, err)
	}
	return nil
}

// Publisher is the subset of *amqp091.Channel used to publish.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// EventPublisher serializes publishes on one channel, which amqp091 does
// not allow concurrently.
type EventPublisher struct {
	mu sync.Mutex
	ch Publisher
}

func NewEventPublisher(ch Publisher) *EventPublisher {
	return &EventPublisher{ch: ch}
}

func (p *EventPublisher) Publish(ctx context.Context, key string, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, Exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    ev.Time,
	})
}

func decodeEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event body: %w", err)
	}
	return ev, nil
}
