package queue

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

// ConsumeWorkQueue consumes SnapshotQueue with prefetch 1, so a worker
// builds one graph at a time.
func ConsumeWorkQueue(ctx context.Context, ch *amqp091.Channel, handle Handler) error {
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, SnapshotQueue, SnapshotQueue+"_consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", SnapshotQueue, err)
	}

	Process(ctx, ch, SnapshotQueue, msgs, handle)
	return nil
}

// ListenBroadcast binds a private, auto-deleted queue to keys and
// hands every delivery to handle. Failures are logged and
// dropped: the next event supersedes them.
func ListenBroadcast(ctx context.Context, ch *amqp091.Channel, keys []string, handle Handler) error {
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare broadcast queue: %w", err)
	}
	for _, key := range keys {
		if err := ch.QueueBind(q.Name, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume broadcast queue: %w", err)
	}

	Process(ctx, ch, "", msgs, handle)
	return nil
}
