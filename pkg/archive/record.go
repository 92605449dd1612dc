// Package archive streams an immutable audit row for every normalized
// inbound message into BigQuery. The archive is append-only: it records what
// was received, never what happened afterwards.
package archive

import (
	"time"

	"github.com/talkbase-io/go-chatpipe/pkg/chatmodel"
	"github.com/talkbase-io/go-chatpipe/pkg/intent"
)

// Record is one flattened audit row. The schema is inferred from this
// struct when the target table does not exist yet.
type Record struct {
	EventID    string    `bigquery:"event_id"`
	MerchantID string    `bigquery:"merchant_id"`
	SessionID  string    `bigquery:"session_id"`
	Channel    string    `bigquery:"channel"`
	Role       string    `bigquery:"role"`
	Text       string    `bigquery:"text"`
	ReceivedAt time.Time `bigquery:"received_at"`

	IntentStep string `bigquery:"intent_step"`
	OrderID    string `bigquery:"order_id"`
	Phone      string `bigquery:"phone"`

	MediaType string `bigquery:"media_type"`
	FileName  string `bigquery:"file_name"`
	MimeType  string `bigquery:"mime_type"`
}

// NewRecord flattens one processed inbound event into an audit row.
func NewRecord(eventID string, msg chatmodel.NormalizedMessage, res intent.Result) *Record {
	return &Record{
		EventID:    eventID,
		MerchantID: msg.MerchantID,
		SessionID:  msg.SessionID,
		Channel:    string(msg.Channel),
		Role:       string(msg.Role),
		Text:       msg.Text,
		ReceivedAt: msg.Timestamp,
		IntentStep: string(res.Step),
		OrderID:    res.OrderID,
		Phone:      res.Phone,
		MediaType:  string(msg.MediaType),
		FileName:   msg.FileName,
		MimeType:   msg.MimeType,
	}
}
