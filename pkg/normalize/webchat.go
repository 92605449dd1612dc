package normalize

import (
	"strings"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
)

// webchatPayload is the web-widget webhook shape. The shape marker is an
// explicit channel marker or webchat flag; there is no structural nesting to
// sniff, the widget is a first-party client.
type webchatPayload struct {
	envelopeFields
	Channel   string `json:"channel"`
	Webchat   bool   `json:"webchat"`
	MessageID string `json:"messageId"`
	From      string `json:"from"`
	Text      string `json:"text"`
	FileURL   string `json:"fileUrl"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
}

func decodeWebchat(payload []byte) (*webchatPayload, bool) {
	var p webchatPayload
	if !decodeInto(payload, &p) {
		return nil, false
	}
	if p.Channel != string(chatmodel.ChannelWebchat) && !p.Webchat {
		return nil, false
	}
	return &p, true
}

func (p *webchatPayload) apply(msg *chatmodel.NormalizedMessage) Ref {
	msg.Channel = chatmodel.ChannelWebchat
	msg.SessionID = p.From
	msg.Text = p.Text
	p.envelopeFields.apply(msg)

	if p.FileURL != "" {
		msg.FileURL = p.FileURL
		msg.FileName = p.FileName
		msg.MimeType = p.MimeType
		msg.MediaType = webchatMediaType(p.MimeType)
	}

	return Ref{
		Provider:  chatmodel.ChannelWebchat,
		ChannelID: p.From,
		MessageID: p.MessageID,
	}
}

// webchatMediaType types a widget upload purely from its MIME prefix. Unlike
// the other channels there is no filename-based pdf inference here; the
// widget always reports a MIME type.
func webchatMediaType(mimeType string) chatmodel.MediaType {
	mime := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mime, "image"):
		return chatmodel.MediaImage
	case strings.HasPrefix(mime, "audio"):
		return chatmodel.MediaAudio
	case strings.Contains(mime, "pdf"):
		return chatmodel.MediaPDF
	default:
		return chatmodel.MediaDocument
	}
}
