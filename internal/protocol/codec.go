package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

// Codec decodes client envelopes and encodes server events.
// It is safe for concurrent use.
type Codec struct {
	limits  Limits
	parsers fastjson.ParserPool
	arenas  fastjson.ArenaPool
}

// NewCodec returns a codec enforcing limits on decoded fields.
func NewCodec(limits Limits) *Codec {
	return &Codec{limits: limits}
}

// Limits returns the limits the codec was built with.
func (c *Codec) Limits() Limits {
	return c.limits
}

// Envelope is a structurally valid client event whose fields have not been checked yet.
// Field checks are deferred so authorization can be verified first.
type Envelope struct {
	Type   EventType
	fields *fastjson.Value
	limits Limits
}

// Decode parses a raw frame into an envelope with a known discriminator.
func (c *Codec) Decode(frame []byte) (Envelope, error) {
	// The envelope keeps references into the parser, so it cannot come from the pool.
	var p fastjson.Parser
	v, err := p.ParseBytes(frame)
	if err != nil {
		return Envelope{}, ErrMalformedEvent
	}
	if v.Type() != fastjson.TypeObject {
		return Envelope{}, ErrNotAnObject
	}

	typeValue := v.Get("type")
	if typeValue == nil {
		return Envelope{}, ErrMissingType
	}
	if typeValue.Type() != fastjson.TypeString {
		return Envelope{}, ErrUnknownEventType
	}

	eventType := EventType(typeValue.GetStringBytes())
	if _, ok := clientEvents[eventType]; !ok {
		return Envelope{}, ErrUnknownEventType
	}

	return Envelope{Type: eventType, fields: v, limits: c.limits}, nil
}

// Encode serializes payload and injects the event type discriminator.
func (c *Codec) Encode(eventType EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("reparse %s payload: %w", eventType, err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, ErrPayloadNotObject
	}

	a := c.arenas.Get()
	defer func() {
		a.Reset()
		c.arenas.Put(a)
	}()

	v.Set("type", a.NewString(string(eventType)))
	return v.MarshalTo(nil), nil
}

// Join extracts the nickname of a join event.
func (e Envelope) Join() (Join, error) {
	nickname, ok := e.optionalString("nickname")
	if !ok || nickname == nil {
		return Join{}, ErrInvalidNickname
	}
	return Join{Nickname: *nickname}, nil
}

// Message validates and extracts a message event.
func (e Envelope) Message() (Message, error) {
	text, attachment, err := e.messageBody()
	if err != nil {
		return Message{}, err
	}
	return Message{Text: text, Attachment: attachment}, nil
}

// EditMessage validates and extracts the text and attachment of an edit-message event.
func (e Envelope) EditMessage() (EditMessage, error) {
	text, attachment, err := e.messageBody()
	if err != nil {
		return EditMessage{}, err
	}
	return EditMessage{Text: text, Attachment: attachment}, nil
}

// DeleteMessage validates and extracts a delete-message event.
func (e Envelope) DeleteMessage() (DeleteMessage, error) {
	id, err := e.MessageID()
	if err != nil {
		return DeleteMessage{}, err
	}
	return DeleteMessage{ID: id}, nil
}

// AddAttachment validates and extracts an add-attachment event.
func (e Envelope) AddAttachment() (AddAttachment, error) {
	name, ok := e.optionalString("name")
	if !ok {
		return AddAttachment{}, ErrAttachmentNameType
	}

	data := e.fields.Get("data")
	if data == nil || data.Type() != fastjson.TypeString {
		return AddAttachment{}, ErrAttachmentDataType
	}
	dataString := string(data.GetStringBytes())
	if utf8.RuneCountInString(dataString) > e.limits.AttachmentSize {
		return AddAttachment{}, ErrAttachmentDataTooLong
	}

	return AddAttachment{Name: name, Data: dataString}, nil
}

// FetchAttachment validates and extracts a fetch-attachment event.
func (e Envelope) FetchAttachment() (FetchAttachment, error) {
	id := e.fields.Get("id")
	if id == nil || id.Type() != fastjson.TypeString {
		return FetchAttachment{}, ErrAttachmentIDType
	}
	return FetchAttachment{ID: string(id.GetStringBytes())}, nil
}

func (e Envelope) messageBody() (string, *string, error) {
	text := e.fields.Get("text")
	if text == nil || text.Type() != fastjson.TypeString {
		return "", nil, ErrTextNotString
	}
	textString := string(text.GetStringBytes())
	if utf8.RuneCountInString(textString) > e.limits.MessageLength {
		return "", nil, ErrTextTooLong
	}

	attachment, ok := e.optionalString("attachment")
	if !ok {
		return "", nil, ErrMessageAttachmentType
	}
	if attachment != nil && *attachment == "" {
		attachment = nil
	}
	return textString, attachment, nil
}

// MessageID reads the "id" field of edit-message and delete-message events.
// Forms like 3.0 or 3e0 address message 3; fractions and huge values address nothing.
func (e Envelope) MessageID() (MessageID, error) {
	id := e.fields.Get("id")
	if id == nil || id.Type() != fastjson.TypeNumber {
		return MessageID{}, ErrMessageIDNotNumber
	}
	if n, err := id.Int64(); err == nil {
		return MessageID{value: float64(n), exact: n, integral: true}, nil
	}

	f, err := id.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return MessageID{}, ErrMessageIDNotNumber
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return MessageID{value: f, exact: int64(f), integral: true}, nil
	}
	return MessageID{value: f}, nil
}

// optionalString returns nil for absent or null fields and false for non-string values.
func (e Envelope) optionalString(key string) (*string, bool) {
	v := e.fields.Get(key)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, true
	}
	if v.Type() != fastjson.TypeString {
		return nil, false
	}
	s := string(v.GetStringBytes())
	return &s, true
}
