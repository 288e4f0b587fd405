package queue

import (
	"context"
	"time"

	"github.com/greatvovan/bacon-number/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

type Handler func(ctx context.Context, ev Event) error

// Process handles deliveries one at a time until ctx is done or msgs is
// closed. Successes are acked. Failures are requeued through the retry
// queue of queueName, or dropped when queueName is empty.
func Process(ctx context.Context, pub Publisher, queueName string, msgs <-chan amqp091.Delivery, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", queueName)
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed", "queue", queueName)
				return
			}
			handleDelivery(ctx, pub, queueName, msg, handle)
		}
	}
}

func handleDelivery(ctx context.Context, pub Publisher, queueName string, msg amqp091.Delivery, handle Handler) {
	start := time.Now()
	logger.Info("[Queue] Received message", "queue", queueName, "key", msg.RoutingKey)

	ev, err := decodeEvent(msg.Body)
	if err != nil {
		// Malformed bodies never succeed; retrying would only delay the DLQ.
		logger.Error("[Queue] Dropping malformed message", "queue", queueName, "err", err)
		_ = msg.Nack(false, false)
		return
	}
	ev.Key = msg.RoutingKey

	if err := handle(ctx, ev); err != nil {
		logger.Error("[Queue] Error processing message", "queue", queueName, "job_id", ev.JobID, "err", err)
		if queueName == "" {
			_ = msg.Ack(false)
			return
		}
		handleProcessingError(ctx, pub, msg, queueName)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
	logger.Info("[Queue] Message processed", "queue", queueName, "job_id", ev.JobID, "duration", time.Since(start))
}

// retries reads the attempt counter from the headers. amqp091 may hand the
// value back as any integer width.
func retries(h amqp091.Table) int {
	switch v := h["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

func handleProcessingError(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string) {
	n := retries(msg.Headers)

	if n >= MaxRetries {
		dlqName := queueName + "_dlq"
		logger.Warn("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", n)
		err := pub.PublishWithContext(ctx, "", dlqName, false, false, amqp091.Publishing{
			ContentType: msg.ContentType,
			Body:        msg.Body,
			Headers:     msg.Headers,
		})
		if err != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(n + 1)

	err := pub.PublishWithContext(ctx, "", retryName, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
