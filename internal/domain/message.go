package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrIncompleteMessage is returned when a decoded frame is missing one of
// the fields every chat message must carry.
var ErrIncompleteMessage = errors.New("message is missing required fields")

// Message is a unit of conversation content. ID is assigned by the
// sending side and is stable across history fetch and live delivery, so
// the store can collapse duplicate arrivals.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	ChannelID  string    `json:"channelId,omitempty"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate reports whether the message carries everything the protocol
// requires.
func (m *Message) Validate() error {
	if m.ID == "" || m.SenderID == "" || m.ReceiverID == "" || m.Text == "" || m.CreatedAt.IsZero() {
		return ErrIncompleteMessage
	}
	return nil
}

// wireMessage mirrors Message but leaves the timestamp raw so both
// RFC 3339 strings and epoch-millisecond numbers decode.
type wireMessage struct {
	ID         string          `json:"id"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId"`
	ChannelID  string          `json:"channelId"`
	Text       string          `json:"text"`
	CreatedAt  json.RawMessage `json:"createdAt"`
}

// UnmarshalJSON decodes a message frame. createdAt is accepted either as
// an ISO-8601/RFC 3339 string or as epoch milliseconds (epoch seconds
// for small values), matching what the backend emits.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	m.ID = w.ID
	m.SenderID = w.SenderID
	m.ReceiverID = w.ReceiverID
	m.ChannelID = w.ChannelID
	m.Text = w.Text
	m.CreatedAt = time.Time{}

	if len(w.CreatedAt) == 0 || string(w.CreatedAt) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(w.CreatedAt, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		m.CreatedAt = t
		return nil
	}

	var n int64
	if err := json.Unmarshal(w.CreatedAt, &n); err != nil {
		return errors.New("createdAt is neither a timestamp string nor an epoch number: " + strconv.Quote(string(w.CreatedAt)))
	}
	if n > 1e12 {
		m.CreatedAt = time.UnixMilli(n)
	} else {
		m.CreatedAt = time.Unix(n, 0)
	}
	return nil
}
