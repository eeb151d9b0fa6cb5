package protocol

import "errors"

// Error kinds. Every EventError unwraps to exactly one of these.
var (
	ErrProtocol      = errors.New("protocol error")
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
)

// EventError is a client-facing failure. Message is sent verbatim in the error event.
type EventError struct {
	Kind    error
	Message string
}

func (e *EventError) Error() string { return e.Message }

func (e *EventError) Unwrap() error { return e.Kind }

func newError(kind error, message string) *EventError {
	return &EventError{Kind: kind, Message: message}
}

// Envelope failures.
var (
	ErrMalformedEvent   = newError(ErrProtocol, "malformed client-sent event")
	ErrNotAnObject      = newError(ErrProtocol, "client-sent event is not an object")
	ErrMissingType      = newError(ErrProtocol, "client-sent event without a type")
	ErrUnknownEventType = newError(ErrProtocol, "illegal client-sent event type")
)

// Authorization failures.
var (
	ErrNotAuthorized     = newError(ErrAuthorization, "not authorized")
	ErrAlreadyAuthorized = newError(ErrAuthorization, "already authorized")
)

// Field failures.
var (
	ErrInvalidNickname          = newError(ErrValidation, "illegal nickname")
	ErrNicknameTooLong          = newError(ErrValidation, "this nickname is too long")
	ErrNicknameTaken            = newError(ErrValidation, "this nickname is already used")
	ErrTextNotString            = newError(ErrValidation, "client-sent message text isn't a string")
	ErrTextTooLong              = newError(ErrValidation, "client-sent message text is too long")
	ErrMessageAttachmentType    = newError(ErrValidation, "client-sent message attachment isn't a string")
	ErrMessageAttachmentMissing = newError(ErrValidation, "client-sent message attachment doesn't exist")
	ErrMessageIDNotNumber       = newError(ErrValidation, "client-sent message id isn't a number")
	ErrAttachmentNameType       = newError(ErrValidation, "client-sent attachment name isn't a string")
	ErrAttachmentDataType       = newError(ErrValidation, "client-sent attachment data isn't a string")
	ErrAttachmentDataTooLong    = newError(ErrValidation, "client-sent attachment data is too long")
	ErrAttachmentIDType         = newError(ErrValidation, "client-sent attachment id isn't a string")
	ErrAttachmentNotFound       = newError(ErrNotFound, "this attachment doesn't exist")
)

// ErrPayloadNotObject is returned by Encode for payloads that do not serialize to a JSON object.
var ErrPayloadNotObject = errors.New("event payload must be an object")
