package chatmodel

import (
	"time"
)

// Channel identifies the chat provider an event arrived on or a reply
// leaves through.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsapp Channel = "whatsapp"
	ChannelWebchat  Channel = "webchat"

	// ChannelUnknown is the tolerant default for payloads that match no
	// provider shape. Normalization still succeeds for these.
	ChannelUnknown Channel = "unknown"
)

// Role identifies who authored a message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleBot      Role = "bot"
	RoleAgent    Role = "agent"
)

// MediaType is the coarse attachment classification used downstream.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaVideo    MediaType = "video"
	MediaPDF      MediaType = "pdf"
	MediaDocument MediaType = "document"
	MediaOther    MediaType = "other"
)

// NormalizedMessage is the canonical, channel-agnostic representation of one
// inbound chat event. It is constructed exactly once per webhook delivery and
// never mutated afterwards; enrichment (intent, replies) produces new values.
type NormalizedMessage struct {
	// MerchantID is the tenant the message belongs to. Resolved by the
	// routing layer before normalization; always present.
	MerchantID string `json:"merchantId"`

	// SessionID is the per-channel conversation identifier. Stable across a
	// customer's message history (Telegram chat id, WhatsApp JID without the
	// server suffix, webchat visitor id).
	SessionID string `json:"sessionId"`

	Channel Channel `json:"channel"`
	Role    Role    `json:"role"`

	// Text is the extracted message body; empty for pure-media messages.
	Text string `json:"text"`

	// Timestamp is assigned at normalization time. Provider-reported
	// timestamps are not trusted for ordering.
	Timestamp time.Time `json:"timestamp"`

	// Metadata is carried through from the provider payload verbatim. It is
	// never validated and never trusted for business logic.
	Metadata map[string]any `json:"metadata,omitempty"`

	// At most one attachment is described. Exactly one of FileID/FileURL is
	// set when MediaType is set; neither is set when it is absent. FileID is
	// a provider-internal reference requiring a later fetch, FileURL is
	// directly fetchable.
	FileID    string    `json:"fileId,omitempty"`
	FileURL   string    `json:"fileUrl,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
	MediaType MediaType `json:"mediaType,omitempty"`
}

// HasMedia reports whether the message carries an attachment reference.
func (m *NormalizedMessage) HasMedia() bool {
	return m.MediaType != ""
}

// OutboundEnvelope is the minimal reply payload placed on a per-channel
// outbound queue. Instances live for the duration of one queue delivery.
type OutboundEnvelope struct {
	MerchantID string `json:"merchantId"`
	SessionID  string `json:"sessionId"`
	Text       string `json:"text"`

	// Transport is an optional hint for the channel sender (e.g. a
	// sub-transport or sender account within the channel).
	Transport string `json:"transport,omitempty"`
}

// Outbound queue names are fixed per channel.
const (
	TelegramOutQueue = "telegram.out.q"
	WhatsappOutQueue = "whatsapp.out.q"
	WebOutQueue      = "web.out.q"
)

// OutboundQueue returns the fixed outbound queue name for a channel. The
// second return is false for channels with no outbound queue (unknown).
func OutboundQueue(ch Channel) (string, bool) {
	switch ch {
	case ChannelTelegram:
		return TelegramOutQueue, true
	case ChannelWhatsapp:
		return WhatsappOutQueue, true
	case ChannelWebchat:
		return WebOutQueue, true
	default:
		return "", false
	}
}

// DispatchChannels lists the channels the outbound dispatch fleet binds to.
func DispatchChannels() []Channel {
	return []Channel{ChannelWhatsapp, ChannelTelegram, ChannelWebchat}
}
