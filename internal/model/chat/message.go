package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// TimestampLayout renders message timestamps as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Sender identifies who authored a message: either the server itself or a chatter.
// The zero value is the system sender.
type Sender struct {
	nickname string
	user     bool
}

// SystemSender returns the sender used for server announcements.
func SystemSender() Sender {
	return Sender{}
}

// UserSender returns a sender bound to a chatter nickname.
func UserSender(nickname string) Sender {
	return Sender{nickname: nickname, user: true}
}

// IsSystem reports whether the message was produced by the server.
func (s Sender) IsSystem() bool {
	return !s.user
}

// Nickname returns the chatter nickname and false for system senders.
func (s Sender) Nickname() (string, bool) {
	return s.nickname, s.user
}

// MarshalJSON encodes system senders as null and chatters as their nickname.
func (s Sender) MarshalJSON() ([]byte, error) {
	if !s.user {
		return []byte("null"), nil
	}
	return json.Marshal(s.nickname)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Sender) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = SystemSender()
		return nil
	}

	var nickname string
	if err := json.Unmarshal(data, &nickname); err != nil {
		return errors.New("message sender must be null or a string")
	}
	*s = UserSender(nickname)
	return nil
}

// Message is a single history entry broadcast to every chatter.
type Message struct {
	Sender     Sender  `json:"sender"`
	ID         *int64  `json:"id"`
	Text       string  `json:"text"`
	Attachment *string `json:"attachment"`
	Timestamp  string  `json:"timestamp"`
	Edited     bool    `json:"edited"`
}

// NewSystemMessage builds an announcement authored by the server.
func NewSystemMessage(text string, at time.Time) Message {
	return Message{
		Sender:    SystemSender(),
		Text:      text,
		Timestamp: FormatTimestamp(at),
	}
}

// NewUserMessage builds a chatter message carrying its per-sender id.
func NewUserMessage(nickname string, id int64, text string, attachment *string, at time.Time) Message {
	return Message{
		Sender:     UserSender(nickname),
		ID:         &id,
		Text:       text,
		Attachment: attachment,
		Timestamp:  FormatTimestamp(at),
	}
}

// Key returns the (sender, id) pair that addresses an editable message.
// System messages have no key.
func (m Message) Key() (MessageKey, bool) {
	nickname, ok := m.Sender.Nickname()
	if !ok || m.ID == nil {
		return MessageKey{}, false
	}
	return MessageKey{Sender: nickname, ID: *m.ID}, true
}

// MessageKey uniquely identifies a chatter message in the history.
type MessageKey struct {
	Sender string
	ID     int64
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
