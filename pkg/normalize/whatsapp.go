package normalize

import (
	"strings"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
)

const whatsappJIDSuffix = "@s.whatsapp.net"

// whatsappPayload is the subset of a WhatsApp webhook event the normalizer
// pattern-matches on. The shape marker is the remote-JID key structure.
// Media sub-messages carry directly fetchable URLs rather than provider
// file ids.
type whatsappPayload struct {
	envelopeFields
	Key struct {
		RemoteJID string `json:"remoteJid"`
		ID        string `json:"id"`
	} `json:"key"`
	Message struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage *struct {
			URL      string `json:"url"`
			MimeType string `json:"mimetype"`
			Caption  string `json:"caption"`
		} `json:"imageMessage"`
		AudioMessage *struct {
			URL      string `json:"url"`
			MimeType string `json:"mimetype"`
		} `json:"audioMessage"`
		DocumentMessage *struct {
			URL      string `json:"url"`
			MimeType string `json:"mimetype"`
			FileName string `json:"fileName"`
		} `json:"documentMessage"`
	} `json:"message"`
}

func decodeWhatsapp(payload []byte) (*whatsappPayload, bool) {
	var p whatsappPayload
	if !decodeInto(payload, &p) {
		return nil, false
	}
	if p.Key.RemoteJID == "" {
		return nil, false
	}
	return &p, true
}

func (p *whatsappPayload) apply(msg *chatmodel.NormalizedMessage) Ref {
	sessionID := strings.TrimSuffix(p.Key.RemoteJID, whatsappJIDSuffix)

	msg.Channel = chatmodel.ChannelWhatsapp
	msg.SessionID = sessionID
	msg.Text = p.Message.Conversation
	if msg.Text == "" && p.Message.ExtendedTextMessage != nil {
		msg.Text = p.Message.ExtendedTextMessage.Text
	}
	p.envelopeFields.apply(msg)

	// Media priority: image, then audio, then document.
	m := p.Message
	switch {
	case m.ImageMessage != nil:
		msg.FileURL = m.ImageMessage.URL
		msg.MimeType = m.ImageMessage.MimeType
		msg.MediaType = chatmodel.MediaImage
		if msg.Text == "" {
			msg.Text = m.ImageMessage.Caption
		}
	case m.AudioMessage != nil:
		msg.FileURL = m.AudioMessage.URL
		msg.MimeType = m.AudioMessage.MimeType
		msg.MediaType = chatmodel.MediaAudio
	case m.DocumentMessage != nil:
		msg.FileURL = m.DocumentMessage.URL
		msg.MimeType = m.DocumentMessage.MimeType
		msg.FileName = m.DocumentMessage.FileName
		msg.MediaType = documentMediaType(m.DocumentMessage.MimeType, m.DocumentMessage.FileName)
	}

	return Ref{
		Provider:  chatmodel.ChannelWhatsapp,
		ChannelID: sessionID,
		MessageID: p.Key.ID,
	}
}
