package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/queue"
)

// ReplyPublisher puts outbound envelopes on the correct per-channel queue.
// It is the seam between the reply-generation layer and the dispatch fleet.
type ReplyPublisher struct {
	publisher queue.Publisher
	logger    zerolog.Logger
}

// NewReplyPublisher creates a ReplyPublisher over a queue publisher.
func NewReplyPublisher(publisher queue.Publisher, logger zerolog.Logger) (*ReplyPublisher, error) {
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher cannot be nil")
	}
	return &ReplyPublisher{
		publisher: publisher,
		logger:    logger.With().Str("component", "ReplyPublisher").Logger(),
	}, nil
}

// Publish enqueues one reply envelope on the channel's outbound queue.
func (r *ReplyPublisher) Publish(ctx context.Context, channel chatmodel.Channel, envelope chatmodel.OutboundEnvelope) error {
	queueName, ok := chatmodel.OutboundQueue(channel)
	if !ok {
		return fmt.Errorf("channel %s has no outbound queue", channel)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope for %s: %w", queueName, err)
	}

	replyID := uuid.NewString()
	attributes := map[string]string{
		"reply_id": replyID,
		"channel":  string(channel),
	}

	if err := r.publisher.Publish(ctx, queueName, payload, attributes); err != nil {
		return fmt.Errorf("publish reply to %s: %w", queueName, err)
	}

	r.logger.Debug().
		Str("queue", queueName).
		Str("reply_id", replyID).
		Str("session_id", envelope.SessionID).
		Msg("Reply enqueued.")
	return nil
}
