package normalize

import (
	"strconv"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
)

// telegramPayload is the subset of a Telegram bot-API update the normalizer
// pattern-matches on. The shape marker is a chat id nested under a message
// object.
type telegramPayload struct {
	envelopeFields
	Message *struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
		Photo   []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		Voice *struct {
			FileID   string `json:"file_id"`
			MimeType string `json:"mime_type"`
		} `json:"voice"`
		Document *struct {
			FileID   string `json:"file_id"`
			FileName string `json:"file_name"`
			MimeType string `json:"mime_type"`
		} `json:"document"`
	} `json:"message"`
}

func decodeTelegram(payload []byte) (*telegramPayload, bool) {
	var p telegramPayload
	if !decodeInto(payload, &p) {
		return nil, false
	}
	if p.Message == nil || p.Message.Chat.ID == 0 {
		return nil, false
	}
	return &p, true
}

func (p *telegramPayload) apply(msg *chatmodel.NormalizedMessage) Ref {
	m := p.Message
	chatID := strconv.FormatInt(m.Chat.ID, 10)

	msg.Channel = chatmodel.ChannelTelegram
	msg.SessionID = chatID
	msg.Text = m.Text
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	p.envelopeFields.apply(msg)

	// Media priority: photo, then voice note, then generic document. The
	// photo array is ordered by resolution; the last element is the largest.
	switch {
	case len(m.Photo) > 0:
		msg.FileID = m.Photo[len(m.Photo)-1].FileID
		msg.MediaType = chatmodel.MediaImage
	case m.Voice != nil:
		msg.FileID = m.Voice.FileID
		msg.MimeType = m.Voice.MimeType
		msg.MediaType = chatmodel.MediaAudio
	case m.Document != nil:
		msg.FileID = m.Document.FileID
		msg.FileName = m.Document.FileName
		msg.MimeType = m.Document.MimeType
		msg.MediaType = documentMediaType(m.Document.MimeType, m.Document.FileName)
	}

	ref := Ref{Provider: chatmodel.ChannelTelegram, ChannelID: chatID}
	if m.MessageID != 0 {
		ref.MessageID = strconv.FormatInt(m.MessageID, 10)
	}
	return ref
}
