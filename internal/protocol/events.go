package protocol

import (
	"encoding/json"
	"strconv"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

// EventType is the envelope discriminator carried in the "type" field.
type EventType string

// Client-sent events.
const (
	EventJoin            EventType = "join"
	EventMessage         EventType = "message"
	EventEditMessage     EventType = "edit-message"
	EventDeleteMessage   EventType = "delete-message"
	EventAddAttachment   EventType = "add-attachment"
	EventFetchAttachment EventType = "fetch-attachment"
)

// Server-sent events. EventMessage is shared by both directions.
const (
	EventWelcome           EventType = "welcome"
	EventMessages          EventType = "messages"
	EventMessageUpdated    EventType = "message-updated"
	EventMessageDeleted    EventType = "message-deleted"
	EventAttachmentAdded   EventType = "attachment-added"
	EventAttachmentFetched EventType = "attachment-fetched"
	EventErrorMessage      EventType = "error"
	EventBye               EventType = "bye"
)

// clientEvents is the closed set of discriminators a client may send.
var clientEvents = map[EventType]struct{}{
	EventJoin:            {},
	EventMessage:         {},
	EventEditMessage:     {},
	EventDeleteMessage:   {},
	EventAddAttachment:   {},
	EventFetchAttachment: {},
}

// Join requests authorization under a nickname.
type Join struct {
	Nickname string
}

// Message posts a new chat message.
type Message struct {
	Text       string
	Attachment *string
}

// EditMessage replaces the text and attachment of one of the sender's messages.
// The addressed id is read with Envelope.MessageID once the attachment is resolved.
type EditMessage struct {
	Text       string
	Attachment *string
}

// DeleteMessage removes one of the sender's messages.
type DeleteMessage struct {
	ID MessageID
}

// MessageID is a client-sent message id. Any finite JSON number is accepted,
// but only whole numbers in the int64 range can address a message.
type MessageID struct {
	value    float64
	exact    int64
	integral bool
}

// Int64 returns the id as a message counter value, if it can be one.
func (id MessageID) Int64() (int64, bool) {
	return id.exact, id.integral
}

// MarshalJSON echoes the id back as a JSON number.
func (id MessageID) MarshalJSON() ([]byte, error) {
	if id.integral {
		return strconv.AppendInt(nil, id.exact, 10), nil
	}
	return json.Marshal(id.value)
}

// AddAttachment uploads a string-encoded blob.
type AddAttachment struct {
	Name *string
	Data string
}

// FetchAttachment requests a stored blob.
type FetchAttachment struct {
	ID string
}

// Welcome acknowledges a successful join.
type Welcome struct{}

// Messages replays the history to a freshly joined chatter.
type Messages struct {
	Messages []chat.Message `json:"messages"`
}

// MessageDeleted notifies chatters that a message is gone.
type MessageDeleted struct {
	Sender string    `json:"sender"`
	ID     MessageID `json:"id"`
}

// AttachmentAdded returns the id of an uploaded attachment to its uploader.
type AttachmentAdded struct {
	ID string `json:"id"`
}

// Error reports a fatal client error right before the connection is closed.
type Error struct {
	Message string `json:"message"`
}

// Bye is the last event a session receives before server shutdown.
type Bye struct{}
