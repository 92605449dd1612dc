package archive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ArchiverConfig holds configuration for the batching archiver.
type ArchiverConfig struct {
	BatchSize     int
	FlushInterval time.Duration // How often to flush a partial batch.
	InsertTimeout time.Duration // Timeout for a single flush operation.
}

// LoadArchiverDefaults returns an archiver config with sensible defaults.
func LoadArchiverDefaults() *ArchiverConfig {
	return &ArchiverConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		InsertTimeout: 30 * time.Second,
	}
}

// Archiver collects audit records into batches and flushes them to the
// inserter. Add is fire-and-forget: audit archival must never block or fail
// the inbound request path.
type Archiver struct {
	config    *ArchiverConfig
	inserter  RecordInserter
	logger    zerolog.Logger
	inputChan chan *Record
	wg        sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewArchiver creates a new batching Archiver.
func NewArchiver(config *ArchiverConfig, inserter RecordInserter, logger zerolog.Logger) *Archiver {
	return &Archiver{
		config:    config,
		inserter:  inserter,
		logger:    logger.With().Str("component", "Archiver").Logger(),
		inputChan: make(chan *Record, config.BatchSize*2),
	}
}

// Start begins the batching worker.
func (a *Archiver) Start(ctx context.Context) {
	a.logger.Info().
		Int("batch_size", a.config.BatchSize).
		Dur("flush_interval", a.config.FlushInterval).
		Msg("Starting archiver worker...")
	a.wg.Add(1)
	go a.worker(ctx)
}

// Add queues one record for archival. If the buffer is full, or the archiver
// has already stopped, the record is dropped with a warning rather than
// blocking or panicking the caller.
func (a *Archiver) Add(record *Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Warn().Str("event_id", record.EventID).Msg("Archiver stopped, dropping audit record.")
		return
	}
	select {
	case a.inputChan <- record:
	default:
		a.logger.Warn().Str("event_id", record.EventID).Msg("Archive buffer full, dropping audit record.")
	}
}

// Stop gracefully shuts down the archiver, flushing any partial batch and
// respecting the context's deadline. Stop is idempotent.
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.inputChan)
	a.mu.Unlock()

	a.logger.Info().Msg("Stopping archiver...")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info().Msg("Archiver worker stopped gracefully.")
	case <-ctx.Done():
		a.logger.Error().Err(ctx.Err()).Msg("Timeout waiting for archiver worker to stop.")
		return ctx.Err()
	}

	if err := a.inserter.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Error closing underlying record inserter")
	}
	return nil
}

// worker collects records into a batch and flushes on size or interval.
func (a *Archiver) worker(ctx context.Context) {
	defer a.wg.Done()
	batch := make([]*Record, 0, a.config.BatchSize)
	ticker := time.NewTicker(a.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Shutting down; flush what we have on a background context.
			a.flush(context.Background(), batch)
			return

		case record, ok := <-a.inputChan:
			if !ok {
				a.flush(context.Background(), batch)
				return
			}
			batch = append(batch, record)
			if len(batch) >= a.config.BatchSize {
				a.flush(ctx, batch)
				batch = make([]*Record, 0, a.config.BatchSize)
				ticker.Reset(a.config.FlushInterval)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(ctx, batch)
				batch = make([]*Record, 0, a.config.BatchSize)
			}
		}
	}
}

func (a *Archiver) flush(ctx context.Context, batch []*Record) {
	if len(batch) == 0 {
		return
	}

	insertCtx, cancel := context.WithTimeout(ctx, a.config.InsertTimeout)
	defer cancel()

	if err := a.inserter.InsertBatch(insertCtx, batch); err != nil {
		// Audit rows are best-effort; a failed flush is logged and dropped.
		a.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to flush audit batch.")
		return
	}
	a.logger.Debug().Int("batch_size", len(batch)).Msg("Audit batch flushed.")
}
