// Package dispatch consumes per-channel outbound queues and forwards each
// decoded envelope to a channel-specific sender, applying explicit
// acknowledgement discipline: a successful send acknowledges the delivery,
// any failure rejects it permanently. Rejected deliveries are never retried
// at the queue level; transient-provider retry policy, when desired, lives
// inside the sender or on a separate retry topic.
package dispatch

import (
	"context"
	"fmt"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
)

// SendRequest carries everything a channel sender needs to transmit one
// reply through its provider API.
type SendRequest struct {
	MerchantID string
	Channel    chatmodel.Channel
	SessionID  string
	Text       string
	Transport  string
}

// Sender is the external capability that actually transmits a reply through
// a channel's provider API. Implementations should honour ctx for timeouts;
// a timeout is treated identically to a send failure.
type Sender interface {
	Send(ctx context.Context, req SendRequest) error
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(ctx context.Context, req SendRequest) error

// Send calls the wrapped function.
func (f SenderFunc) Send(ctx context.Context, req SendRequest) error { return f(ctx, req) }

// DecodeError marks a delivery whose body could not be parsed into an
// OutboundEnvelope. Redelivery cannot fix a parse error, so these are
// rejected permanently without reaching the sender.
type DecodeError struct {
	Queue string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode envelope from %s: %v", e.Queue, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DispatchError marks a delivery whose sender rejected it or timed out.
type DispatchError struct {
	Channel chatmodel.Channel
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
