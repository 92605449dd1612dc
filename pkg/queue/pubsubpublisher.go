package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubsubPublisher implements Publisher over Google Cloud Pub/Sub. Topics are
// resolved by queue name on first use and cached for the publisher's
// lifetime.
type PubsubPublisher struct {
	client *pubsub.Client
	logger zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubsubPublisher creates a publisher over an injected client.
func NewPubsubPublisher(client *pubsub.Client, logger zerolog.Logger) (*PubsubPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	return &PubsubPublisher{
		client: client,
		logger: logger.With().Str("component", "PubsubPublisher").Logger(),
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends one payload to the named queue's topic. It returns
// immediately after queueing and logs the publish result asynchronously.
func (p *PubsubPublisher) Publish(ctx context.Context, queueName string, payload []byte, attributes map[string]string) error {
	topic, err := p.topic(ctx, queueName)
	if err != nil {
		return err
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: attributes,
	})

	// Check the result off the caller's path so a slow broker does not
	// block reply emission.
	go func() {
		getCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		msgID, err := result.Get(getCtx)
		if err != nil {
			p.logger.Error().Err(err).Str("queue", queueName).Msg("Failed to publish message")
			return
		}
		p.logger.Debug().Str("queue", queueName).Str("published_msg_id", msgID).Msg("Message sent successfully.")
	}()

	return nil
}

// topic resolves and caches the topic for a queue, verifying its existence
// on first use.
func (p *PubsubPublisher) topic(ctx context.Context, queueName string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[queueName]; ok {
		return t, nil
	}

	t := p.client.Topic(queueName)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for topic %s: %w", queueName, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", queueName)
	}

	p.topics[queueName] = t
	return t, nil
}

// Stop flushes all cached topics, respecting the context's timeout.
func (p *PubsubPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	topics := make([]*pubsub.Topic, 0, len(p.topics))
	for _, t := range p.topics {
		topics = append(topics, t)
	}
	p.mu.Unlock()

	stopDone := make(chan struct{})
	go func() {
		for _, t := range topics {
			t.Stop()
		}
		close(stopDone)
	}()

	select {
	case <-stopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
