// Package ingest composes the inbound half of the pipeline: normalize,
// deduplicate, classify. One Process call handles one webhook delivery; the
// session and reply logic downstream of classification belongs to the
// caller.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/idempotency"
	"github.com/talkbase-io/go-chatpipe/pkg/intent"
	"github.com/talkbase-io/go-chatpipe/pkg/normalize"
)

// ErrDuplicateEvent is returned when the idempotency guard has already seen
// this provider event. Callers must skip further processing; the duplicate
// carries no downstream side effects.
var ErrDuplicateEvent = errors.New("duplicate inbound event")

// Result is the immutable outcome of processing one webhook delivery.
type Result struct {
	// EventID is a process-assigned identifier used for log correlation and
	// the audit archive; it is not the provider's message id.
	EventID string

	Message chatmodel.NormalizedMessage
	Intent  intent.Result
}

// PipelineConfig holds configuration for the ingest pipeline.
type PipelineConfig struct {
	// DedupTTL bounds the idempotency marker lifetime. Zero means
	// idempotency.DefaultTTL.
	DedupTTL time.Duration
}

// Pipeline runs normalize, dedup and classify in sequence for each inbound
// event. It is safe for concurrent use across independent events.
type Pipeline struct {
	guard  *idempotency.Guard
	ttl    time.Duration
	logger zerolog.Logger
}

// NewPipeline creates a Pipeline over the given guard.
func NewPipeline(cfg PipelineConfig, guard *idempotency.Guard, logger zerolog.Logger) (*Pipeline, error) {
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard cannot be nil")
	}
	return &Pipeline{
		guard:  guard,
		ttl:    cfg.DedupTTL,
		logger: logger.With().Str("component", "IngestPipeline").Logger(),
	}, nil
}

// Process normalizes one provider payload, absorbs duplicates, and
// classifies the text. It returns ErrDuplicateEvent for redelivered events
// and propagates idempotency.ErrStoreUnavailable when the dedup store cannot
// be reached; it never fails on malformed payloads, which degrade to the
// unknown channel.
func (p *Pipeline) Process(ctx context.Context, merchantID string, payload []byte) (*Result, error) {
	msg, ref := normalize.Normalize(payload, merchantID)

	logger := p.logger.With().
		Str("merchant_id", merchantID).
		Str("channel", string(msg.Channel)).
		Str("session_id", msg.SessionID).
		Logger()

	if msg.Channel == chatmodel.ChannelUnknown {
		logger.Warn().Msg("Unrecognized provider payload, tagged unknown.")
	}

	// Unrecognized payloads carry no provider message id, so there is
	// nothing to deduplicate on.
	if ref.MessageID != "" {
		key := idempotency.BuildKey(string(ref.Provider), ref.ChannelID, merchantID, ref.MessageID)
		duplicate, err := p.guard.CheckAndSet(ctx, key, p.ttl)
		if err != nil {
			return nil, fmt.Errorf("dedup check for %s: %w", key, err)
		}
		if duplicate {
			logger.Info().Str("provider_msg_id", ref.MessageID).Msg("Duplicate delivery absorbed.")
			return nil, ErrDuplicateEvent
		}
	}

	result := &Result{
		EventID: uuid.NewString(),
		Message: msg,
		Intent:  intent.Classify(msg.Text),
	}

	logger.Debug().
		Str("event_id", result.EventID).
		Str("intent", string(result.Intent.Step)).
		Msg("Inbound event processed.")
	return result, nil
}
