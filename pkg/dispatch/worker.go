package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/queue"
)

// WorkerConfig holds configuration for one channel worker.
type WorkerConfig struct {
	// SendTimeout bounds each sender invocation. A timeout rejects the
	// delivery exactly like a sender error.
	SendTimeout time.Duration
}

// Worker drives one channel's outbound queue. It receives deliveries one at
// a time, decodes them, invokes the sender, and acknowledges each delivery
// before taking the next, so a slow sender throttles only its own channel.
type Worker struct {
	channel  chatmodel.Channel
	consumer queue.Consumer
	sender   Sender
	timeout  time.Duration
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewWorker creates a worker binding one channel's consumer to its sender.
func NewWorker(cfg WorkerConfig, channel chatmodel.Channel, consumer queue.Consumer, sender Sender, logger zerolog.Logger) (*Worker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	queueName, ok := chatmodel.OutboundQueue(channel)
	if !ok {
		return nil, fmt.Errorf("channel %s has no outbound queue", channel)
	}

	return &Worker{
		channel:  channel,
		consumer: consumer,
		sender:   sender,
		timeout:  cfg.SendTimeout,
		logger:   logger.With().Str("component", "DispatchWorker").Str("queue", queueName).Logger(),
	}, nil
}

// Start begins the worker's consumption loop.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start consumer for %s: %w", w.channel, err)
	}

	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info().Msg("Dispatch worker started.")
	return nil
}

// Stop shuts the worker down: the consumer first, then the processing loop,
// respecting the context's deadline.
func (w *Worker) Stop(ctx context.Context) error {
	w.logger.Info().Msg("Stopping dispatch worker...")

	if err := w.consumer.Stop(ctx); err != nil {
		w.logger.Warn().Err(err).Msg("Error during consumer stop, continuing shutdown.")
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info().Msg("Dispatch worker stopped.")
		return nil
	case <-ctx.Done():
		w.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for dispatch worker to finish.")
		return ctx.Err()
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Dispatch worker shutting down due to context cancellation.")
			return
		case delivery, ok := <-w.consumer.Deliveries():
			if !ok {
				w.logger.Info().Msg("Consumer channel closed, worker exiting.")
				return
			}
			w.handle(ctx, delivery)
		}
	}
}

// handle runs the per-delivery state machine: decode, dispatch, then exactly
// one acknowledgement. Failures are terminal: the delivery is Acked after
// logging so the broker never redelivers it. Nacking here would hand the
// payload back to the broker, which re-invokes the sender on every redelivery
// attempt; a reply must be sent at most once or dropped.
func (w *Worker) handle(ctx context.Context, d queue.Delivery) {
	var envelope chatmodel.OutboundEnvelope
	if err := json.Unmarshal(d.Payload, &envelope); err != nil {
		queueName, _ := chatmodel.OutboundQueue(w.channel)
		decodeErr := &DecodeError{Queue: queueName, Err: err}
		w.logger.Error().Err(decodeErr).Str("msg_id", d.ID).Msg("Malformed envelope, dropping delivery.")
		d.Ack()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	err := w.sender.Send(sendCtx, SendRequest{
		MerchantID: envelope.MerchantID,
		Channel:    w.channel,
		SessionID:  envelope.SessionID,
		Text:       envelope.Text,
		Transport:  envelope.Transport,
	})
	if err != nil {
		dispatchErr := &DispatchError{Channel: w.channel, Err: err}
		w.logger.Error().Err(dispatchErr).
			Str("msg_id", d.ID).
			Str("merchant_id", envelope.MerchantID).
			Str("session_id", envelope.SessionID).
			Msg("Sender failed, dropping reply.")
		d.Ack()
		return
	}

	w.logger.Debug().Str("msg_id", d.ID).Str("session_id", envelope.SessionID).Msg("Reply dispatched, Acking.")
	d.Ack()
}
