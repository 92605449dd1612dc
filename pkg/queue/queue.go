// Package queue defines the broker-facing contracts of the pipeline: a
// delivery value with explicit acknowledgement handles, a consumer bound to
// one named queue, and a publisher that routes payloads onto named queues.
// Google Cloud Pub/Sub implementations live alongside the contracts.
package queue

import (
	"context"
	"time"
)

// Delivery is one message handed to a worker. Every delivery requires an
// explicit Ack or Nack decision; consumers never acknowledge automatically.
type Delivery struct {
	// ID is the broker-assigned identifier for this delivery.
	ID string

	// Payload is the raw byte content of the message.
	Payload []byte

	// PublishTime is when the message was originally published.
	PublishTime time.Time

	// Attributes holds broker-level metadata.
	Attributes map[string]string

	// Ack signals that this delivery is finished and the message can be
	// removed from the queue. Workers also Ack deliveries they reject
	// permanently, after logging: Ack is the only acknowledgement the broker
	// guarantees never to redeliver.
	Ack func()

	// Nack returns the message to the broker for redelivery. It is reserved
	// for deliveries that were never processed, such as messages in flight
	// when a consumer shuts down.
	Nack func()
}

// Consumer is a message source bound to a single queue. A Consumer delivers
// messages until stopped; ordering is whatever the underlying broker
// guarantees for that one queue.
type Consumer interface {
	// Deliveries returns the read-only channel workers receive from.
	Deliveries() <-chan Delivery
	// Start begins consumption.
	Start(ctx context.Context) error
	// Stop gracefully ceases consumption and waits for background tasks.
	Stop(ctx context.Context) error
	// Done is closed when the consumer has completely shut down.
	Done() <-chan struct{}
}

// Publisher routes payloads onto named queues.
type Publisher interface {
	// Publish enqueues one payload on the named queue.
	Publish(ctx context.Context, queueName string, payload []byte, attributes map[string]string) error
	// Stop flushes pending messages, respecting the context's deadline.
	Stop(ctx context.Context) error
}
