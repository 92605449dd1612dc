package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/queue"
)

// Fleet runs one dispatch worker per channel. The workers are mutually
// independent: a slow sender on one channel never blocks delivery processing
// on another.
type Fleet struct {
	workers map[chatmodel.Channel]*Worker
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
}

// NewFleet builds a fleet from per-channel consumers and senders. Every
// channel with a consumer must have a sender.
func NewFleet(
	cfg WorkerConfig,
	consumers map[chatmodel.Channel]queue.Consumer,
	senders map[chatmodel.Channel]Sender,
	logger zerolog.Logger,
) (*Fleet, error) {
	if len(consumers) == 0 {
		return nil, fmt.Errorf("fleet requires at least one channel consumer")
	}

	workers := make(map[chatmodel.Channel]*Worker, len(consumers))
	for channel, consumer := range consumers {
		sender, ok := senders[channel]
		if !ok {
			return nil, fmt.Errorf("no sender configured for channel %s", channel)
		}
		worker, err := NewWorker(cfg, channel, consumer, sender, logger)
		if err != nil {
			return nil, fmt.Errorf("worker for %s: %w", channel, err)
		}
		workers[channel] = worker
	}

	return &Fleet{
		workers: workers,
		logger:  logger.With().Str("component", "DispatchFleet").Logger(),
	}, nil
}

// Start starts every channel worker. If any worker fails to start, the ones
// already running are stopped before the error is returned.
func (f *Fleet) Start(ctx context.Context) error {
	started := make([]*Worker, 0, len(f.workers))
	for channel, worker := range f.workers {
		if err := worker.Start(ctx); err != nil {
			for _, w := range started {
				_ = w.Stop(ctx)
			}
			return fmt.Errorf("failed to start worker for %s: %w", channel, err)
		}
		started = append(started, worker)
	}

	f.mu.Lock()
	f.started = true
	f.mu.Unlock()

	f.logger.Info().Int("channels", len(f.workers)).Msg("Dispatch fleet started.")
	return nil
}

// Ready reports whether every channel worker is still consuming. It returns
// an error before Start, and after any channel's consumer has shut down.
func (f *Fleet) Ready() error {
	f.mu.Lock()
	started := f.started
	f.mu.Unlock()
	if !started {
		return fmt.Errorf("dispatch fleet not started")
	}
	for channel, worker := range f.workers {
		select {
		case <-worker.consumer.Done():
			return fmt.Errorf("consumer for channel %s has stopped", channel)
		default:
		}
	}
	return nil
}

// Stop stops every worker, collecting errors so one channel's failure does
// not short-circuit another's shutdown.
func (f *Fleet) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()

	var errs []error
	for channel, worker := range f.workers {
		if err := worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop worker for %s: %w", channel, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	f.logger.Info().Msg("Dispatch fleet stopped.")
	return nil
}
