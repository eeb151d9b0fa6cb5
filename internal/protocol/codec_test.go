package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/speaco/backend/internal/protocol"
)

func testCodec() *protocol.Codec {
	return protocol.NewCodec(protocol.Limits{
		EventSize:      1024,
		NicknameLength: 8,
		HistorySize:    4,
		MessageLength:  5,
		AttachmentSize: 6,
	})
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `{"type":`, protocol.ErrMalformedEvent},
		{"empty", ``, protocol.ErrMalformedEvent},
		{"string", `"join"`, protocol.ErrNotAnObject},
		{"null", `null`, protocol.ErrNotAnObject},
		{"array", `[{"type":"join"}]`, protocol.ErrNotAnObject},
		{"no type", `{"nickname":"alice"}`, protocol.ErrMissingType},
		{"numeric type", `{"type":5}`, protocol.ErrUnknownEventType},
		{"unknown type", `{"type":"welcome"}`, protocol.ErrUnknownEventType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Decode([]byte(tc.frame))
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, protocol.ErrProtocol)
		})
	}
}

func TestDecodeKnownTypes(t *testing.T) {
	codec := testCodec()

	for _, eventType := range []protocol.EventType{
		protocol.EventJoin,
		protocol.EventMessage,
		protocol.EventEditMessage,
		protocol.EventDeleteMessage,
		protocol.EventAddAttachment,
		protocol.EventFetchAttachment,
	} {
		envelope, err := codec.Decode([]byte(`{"type":"` + string(eventType) + `"}`))
		require.NoError(t, err)
		require.Equal(t, eventType, envelope.Type)
	}
}

func TestMessageFields(t *testing.T) {
	codec := testCodec()

	envelope, err := codec.Decode([]byte(`{"type":"message","text":"hey","attachment":"abc"}`))
	require.NoError(t, err)
	msg, err := envelope.Message()
	require.NoError(t, err)
	require.Equal(t, "hey", msg.Text)
	require.NotNil(t, msg.Attachment)
	require.Equal(t, "abc", *msg.Attachment)

	for _, frame := range []string{
		`{"type":"message","text":"hey"}`,
		`{"type":"message","text":"hey","attachment":null}`,
		`{"type":"message","text":"hey","attachment":""}`,
	} {
		envelope, err := codec.Decode([]byte(frame))
		require.NoError(t, err)
		msg, err := envelope.Message()
		require.NoError(t, err, frame)
		require.Nil(t, msg.Attachment, frame)
	}
}

func TestFieldValidationErrors(t *testing.T) {
	codec := testCodec()

	cases := []struct {
		frame string
		parse func(protocol.Envelope) error
		want  error
	}{
		{`{"type":"join","nickname":7}`, join, protocol.ErrInvalidNickname},
		{`{"type":"join"}`, join, protocol.ErrInvalidNickname},
		{`{"type":"message","text":1}`, message, protocol.ErrTextNotString},
		{`{"type":"message","text":"toolong"}`, message, protocol.ErrTextTooLong},
		{`{"type":"message","text":"ok","attachment":3}`, message, protocol.ErrMessageAttachmentType},
		{`{"type":"edit-message","text":"ok","id":"0"}`, messageID, protocol.ErrMessageIDNotNumber},
		{`{"type":"edit-message","text":"ok"}`, messageID, protocol.ErrMessageIDNotNumber},
		{`{"type":"delete-message","id":1e400}`, remove, protocol.ErrMessageIDNotNumber},
		{`{"type":"edit-message","id":1}`, edit, protocol.ErrTextNotString},
		{`{"type":"delete-message"}`, remove, protocol.ErrMessageIDNotNumber},
		{`{"type":"add-attachment","name":1,"data":"x"}`, add, protocol.ErrAttachmentNameType},
		{`{"type":"add-attachment","data":null}`, add, protocol.ErrAttachmentDataType},
		{`{"type":"add-attachment","data":"1234567"}`, add, protocol.ErrAttachmentDataTooLong},
		{`{"type":"fetch-attachment","id":1}`, fetch, protocol.ErrAttachmentIDType},
	}

	for _, tc := range cases {
		envelope, err := codec.Decode([]byte(tc.frame))
		require.NoError(t, err, tc.frame)
		err = tc.parse(envelope)
		require.ErrorIs(t, err, tc.want, tc.frame)

		var eventErr *protocol.EventError
		require.True(t, errors.As(err, &eventErr))
		require.ErrorIs(t, err, protocol.ErrValidation)
	}
}

func TestLengthsCountCodePoints(t *testing.T) {
	codec := testCodec()

	envelope, err := codec.Decode([]byte(`{"type":"message","text":"héllo"}`))
	require.NoError(t, err)
	_, err = envelope.Message()
	require.NoError(t, err)
}

func TestMessageIDForms(t *testing.T) {
	codec := testCodec()

	for frame, want := range map[string]int64{
		`{"type":"delete-message","id":3}`:   3,
		`{"type":"delete-message","id":3.0}`: 3,
		`{"type":"delete-message","id":3e0}`: 3,
		`{"type":"delete-message","id":-2}`:  -2,
	} {
		envelope, err := codec.Decode([]byte(frame))
		require.NoError(t, err)
		event, err := envelope.DeleteMessage()
		require.NoError(t, err, frame)
		id, ok := event.ID.Int64()
		require.True(t, ok, frame)
		require.Equal(t, want, id, frame)
	}
}

func TestMessageIDsThatAddressNothing(t *testing.T) {
	codec := testCodec()

	for frame, echoed := range map[string]string{
		`{"type":"delete-message","id":3.5}`:   `3.5`,
		`{"type":"delete-message","id":1e20}`:  `100000000000000000000`,
		`{"type":"delete-message","id":-0.25}`: `-0.25`,
	} {
		envelope, err := codec.Decode([]byte(frame))
		require.NoError(t, err)
		event, err := envelope.DeleteMessage()
		require.NoError(t, err, frame)

		_, ok := event.ID.Int64()
		require.False(t, ok, frame)

		encoded, err := json.Marshal(event.ID)
		require.NoError(t, err)
		require.Equal(t, echoed, string(encoded), frame)
	}
}

func TestEditMessageReadsIDSeparately(t *testing.T) {
	codec := testCodec()

	envelope, err := codec.Decode([]byte(`{"type":"edit-message","text":"ok","attachment":"abc","id":"x"}`))
	require.NoError(t, err)

	event, err := envelope.EditMessage()
	require.NoError(t, err)
	require.Equal(t, "abc", *event.Attachment)

	_, err = envelope.MessageID()
	require.ErrorIs(t, err, protocol.ErrMessageIDNotNumber)
}

func TestAddAttachmentOptionalName(t *testing.T) {
	codec := testCodec()

	envelope, err := codec.Decode([]byte(`{"type":"add-attachment","data":"abc"}`))
	require.NoError(t, err)
	event, err := envelope.AddAttachment()
	require.NoError(t, err)
	require.Nil(t, event.Name)
	require.Equal(t, "abc", event.Data)

	envelope, err = codec.Decode([]byte(`{"type":"add-attachment","name":"cat.png","data":"abc"}`))
	require.NoError(t, err)
	event, err = envelope.AddAttachment()
	require.NoError(t, err)
	require.Equal(t, "cat.png", *event.Name)
}

func TestEncodeInjectsType(t *testing.T) {
	codec := testCodec()

	encoded, err := codec.Encode(protocol.EventAttachmentAdded, protocol.AttachmentAdded{ID: "abc"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Equal(t, map[string]any{"type": "attachment-added", "id": "abc"}, decoded)

	encoded, err = codec.Encode(protocol.EventWelcome, protocol.Welcome{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"welcome"}`, string(encoded))
}

func TestEncodeRejectsNonObjects(t *testing.T) {
	codec := testCodec()

	_, err := codec.Encode(protocol.EventErrorMessage, "boom")
	require.ErrorIs(t, err, protocol.ErrPayloadNotObject)

	_, err = codec.Encode(protocol.EventErrorMessage, []string{"boom"})
	require.ErrorIs(t, err, protocol.ErrPayloadNotObject)
}

func join(e protocol.Envelope) error      { _, err := e.Join(); return err }
func message(e protocol.Envelope) error   { _, err := e.Message(); return err }
func edit(e protocol.Envelope) error      { _, err := e.EditMessage(); return err }
func remove(e protocol.Envelope) error    { _, err := e.DeleteMessage(); return err }
func messageID(e protocol.Envelope) error { _, err := e.MessageID(); return err }
func add(e protocol.Envelope) error       { _, err := e.AddAttachment(); return err }
func fetch(e protocol.Envelope) error     { _, err := e.FetchAttachment(); return err }
