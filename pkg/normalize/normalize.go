// Package normalize maps provider-specific webhook payloads into the
// canonical chatmodel representation. Payloads are decoded against each
// provider shape in a fixed priority order (Telegram, WhatsApp, webchat);
// the first shape that matches wins. Normalization is total: payloads that
// match no shape produce an unknown-channel message, never an error.
package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
)

// Ref identifies the provider-side event behind a normalized message. It is
// the raw material for the idempotency key; it is not part of the canonical
// message itself.
type Ref struct {
	// Provider is the channel the payload matched.
	Provider chatmodel.Channel
	// ChannelID is the provider-side conversation identifier, when known.
	ChannelID string
	// MessageID is the provider's message identifier, when known. Empty for
	// unrecognized payloads, in which case deduplication is not possible.
	MessageID string
}

// Normalize turns a raw provider payload into exactly one NormalizedMessage.
// merchantID must already be resolved by the routing layer. Malformed or
// unrecognized payloads degrade to chatmodel.ChannelUnknown; no error is
// ever returned and absent fields simply remain unset.
func Normalize(payload []byte, merchantID string) (chatmodel.NormalizedMessage, Ref) {
	msg := chatmodel.NormalizedMessage{
		MerchantID: merchantID,
		Channel:    chatmodel.ChannelUnknown,
		Role:       chatmodel.RoleCustomer,
		Timestamp:  time.Now().UTC(),
	}

	if tg, ok := decodeTelegram(payload); ok {
		ref := tg.apply(&msg)
		return msg, ref
	}
	if wa, ok := decodeWhatsapp(payload); ok {
		ref := wa.apply(&msg)
		return msg, ref
	}
	if wc, ok := decodeWebchat(payload); ok {
		ref := wc.apply(&msg)
		return msg, ref
	}

	return msg, Ref{Provider: chatmodel.ChannelUnknown}
}

// envelopeFields holds the markers every provider shape may carry regardless
// of channel: an explicit agent role override and pass-through metadata.
type envelopeFields struct {
	Role     string         `json:"role"`
	Metadata map[string]any `json:"metadata"`
}

func (e *envelopeFields) apply(msg *chatmodel.NormalizedMessage) {
	if e.Role == string(chatmodel.RoleAgent) {
		msg.Role = chatmodel.RoleAgent
	}
	if len(e.Metadata) > 0 {
		msg.Metadata = e.Metadata
	}
}

// documentMediaType infers the coarse media type of a generic document from
// its MIME type or filename suffix. Priority: pdf, image, audio, document.
func documentMediaType(mimeType, fileName string) chatmodel.MediaType {
	mime := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mime, "pdf") || strings.HasSuffix(strings.ToLower(fileName), ".pdf"):
		return chatmodel.MediaPDF
	case strings.Contains(mime, "image"):
		return chatmodel.MediaImage
	case strings.Contains(mime, "audio"):
		return chatmodel.MediaAudio
	default:
		return chatmodel.MediaDocument
	}
}

// decodeInto unmarshals payload into v, tolerating any decode failure. The
// caller decides whether the decoded value carries its shape's markers.
func decodeInto(payload []byte, v any) bool {
	return json.Unmarshal(payload, v) == nil
}
