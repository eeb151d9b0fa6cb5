package chat_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

func TestSenderJSON(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 5_000_000, time.UTC)

	system, err := json.Marshal(chat.NewSystemMessage("alice joined the party", at))
	require.NoError(t, err)
	require.JSONEq(t, `{"sender":null,"id":null,"text":"alice joined the party","attachment":null,"timestamp":"2024-03-01T12:30:00.005Z","edited":false}`, string(system))

	attachment := "ff00"
	user, err := json.Marshal(chat.NewUserMessage("alice", 3, "hi", &attachment, at))
	require.NoError(t, err)
	require.JSONEq(t, `{"sender":"alice","id":3,"text":"hi","attachment":"ff00","timestamp":"2024-03-01T12:30:00.005Z","edited":false}`, string(user))

	var decoded chat.Message
	require.NoError(t, json.Unmarshal(user, &decoded))
	nickname, ok := decoded.Sender.Nickname()
	require.True(t, ok)
	require.Equal(t, "alice", nickname)

	require.NoError(t, json.Unmarshal(system, &decoded))
	require.True(t, decoded.Sender.IsSystem())
	_, ok = decoded.Key()
	require.False(t, ok)
}

func TestSenderRejectsNonStrings(t *testing.T) {
	var decoded chat.Message
	require.Error(t, json.Unmarshal([]byte(`{"sender":5}`), &decoded))
}

func TestChatterRecordCounter(t *testing.T) {
	record := chat.ChatterRecord{NextMessageID: 4}
	require.Equal(t, int64(4), record.TakeMessageID())
	require.Equal(t, int64(5), record.TakeMessageID())
	require.Equal(t, int64(6), record.NextMessageID)
}
