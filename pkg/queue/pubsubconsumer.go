package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// NewPubsubClient creates a Pub/Sub client, optionally using a service
// account credentials file. With no file, Application Default Credentials
// apply.
func NewPubsubClient(ctx context.Context, projectID, credentialsFile string, logger zerolog.Logger) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
		logger.Info().Str("credentials_file", credentialsFile).Msg("Using specified credentials file for Pub/Sub client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Pub/Sub client.")
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	return client, nil
}

// PubsubConsumerConfig holds configuration for a consumer bound to one queue.
// The subscription id is conventionally the queue name itself (one durable
// subscription per outbound queue).
type PubsubConsumerConfig struct {
	QueueName              string
	SubscriptionID         string
	MaxOutstandingMessages int
	NumGoroutines          int
}

// LoadPubsubConsumerDefaults returns a consumer config for one queue with
// sensible defaults. The subscription defaults to the queue name.
func LoadPubsubConsumerDefaults(queueName string) *PubsubConsumerConfig {
	return &PubsubConsumerConfig{
		QueueName:              queueName,
		SubscriptionID:         queueName,
		MaxOutstandingMessages: 100,
		NumGoroutines:          5,
	}
}

// PubsubConsumer implements Consumer over a Google Cloud Pub/Sub
// subscription. Auto-ack is never used: every delivery carries explicit
// Ack/Nack handles. Pub/Sub redelivers nacked messages, so Nack is only
// appropriate for deliveries the worker never processed.
type PubsubConsumer struct {
	subscription *pubsub.Subscription
	logger       zerolog.Logger
	outputChan   chan Delivery
	stopOnce     sync.Once
	cancelRecv   context.CancelFunc
	wg           sync.WaitGroup
	doneChan     chan struct{}
}

// NewPubsubConsumer creates a consumer for the configured queue. It verifies
// the subscription exists before returning.
func NewPubsubConsumer(ctx context.Context, cfg *PubsubConsumerConfig, client *pubsub.Client, logger zerolog.Logger) (*PubsubConsumer, error) {
	sub := client.Subscription(cfg.SubscriptionID)

	existsCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	exists, err := sub.Exists(existsCtx)
	if !exists || err != nil {
		return nil, fmt.Errorf("subscription %s does not exist: %w", cfg.SubscriptionID, err)
	}

	sub.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstandingMessages
	sub.ReceiveSettings.NumGoroutines = cfg.NumGoroutines

	logger.Info().Str("queue", cfg.QueueName).Str("subscription_id", cfg.SubscriptionID).Msg("Bound to outbound queue")

	return &PubsubConsumer{
		subscription: sub,
		logger:       logger.With().Str("component", "PubsubConsumer").Str("queue", cfg.QueueName).Logger(),
		outputChan:   make(chan Delivery, cfg.MaxOutstandingMessages),
		doneChan:     make(chan struct{}),
	}, nil
}

// Deliveries returns the channel workers receive from.
func (c *PubsubConsumer) Deliveries() <-chan Delivery { return c.outputChan }

// Start begins receiving from the subscription in a background goroutine.
func (c *PubsubConsumer) Start(ctx context.Context) error {
	c.logger.Info().Msg("Starting queue consumption...")
	receiveCtx, cancel := context.WithCancel(ctx)
	c.cancelRecv = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.outputChan)
		defer close(c.doneChan)
		defer c.logger.Info().Msg("Receive goroutine stopped.")

		err := c.subscription.Receive(receiveCtx, func(_ context.Context, msg *pubsub.Message) {
			payloadCopy := make([]byte, len(msg.Data))
			copy(payloadCopy, msg.Data)

			delivery := Delivery{
				ID:          msg.ID,
				Payload:     payloadCopy,
				PublishTime: msg.PublishTime,
				Attributes:  msg.Attributes,
				Ack:         msg.Ack,
				Nack:        msg.Nack,
			}

			select {
			case c.outputChan <- delivery:
			case <-receiveCtx.Done():
				msg.Nack()
				c.logger.Warn().Str("msg_id", msg.ID).Msg("Consumer stopping, Nacking in-flight delivery.")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error().Err(err).Msg("Receive call exited with error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the consumer, waiting up to the context's
// deadline for the receive goroutine to drain.
func (c *PubsubConsumer) Stop(ctx context.Context) error {
	var stopErr error
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping queue consumer...")
		if c.cancelRecv != nil {
			c.cancelRecv()
		}
		select {
		case <-c.doneChan:
			c.logger.Info().Msg("Receive goroutine confirmed stopped.")
		case <-ctx.Done():
			c.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for receive goroutine to stop.")
			stopErr = ctx.Err()
		}
	})
	return stopErr
}

// Done is closed once the consumer has fully shut down.
func (c *PubsubConsumer) Done() <-chan struct{} { return c.doneChan }
