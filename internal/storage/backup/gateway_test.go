package backup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
	"github.com/zhouzirui/speaco/backend/internal/storage/backup"
)

func sampleSnapshot() chat.Snapshot {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	name := "cat.png"
	data := "bWVvdw=="
	live := "aaaa"
	edited := chat.NewUserMessage("bob", 3, "edited", &live, at)
	edited.Edited = true

	return chat.Snapshot{
		ChatterData: map[string]chat.ChatterRecord{
			"alice": {NextMessageID: 2},
			"bob":   {NextMessageID: 4},
		},
		History: []chat.Message{
			chat.NewSystemMessage("alice joined the party", at),
			chat.NewUserMessage("alice", 1, "hi", nil, at),
			edited,
		},
		Attachments: map[string]chat.Attachment{
			"aaaa": {Name: &name, Data: &data},
			"bbbb": {Name: &name},
			"cccc": {Data: &data},
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	gateway := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t))

	want := sampleSnapshot()
	gateway.Save(want)

	got := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t)).Load()
	require.Equal(t, want, got)
}

func TestFileStoreSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	store := backup.NewFileStore(path)

	snapshot := chat.EmptySnapshot()
	snapshot.ChatterData["alice"] = chat.ChatterRecord{NextMessageID: 1}
	require.NoError(t, store.Write(snapshot))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"chatter-data":{"alice":{"currentMessageId":1}},"history":[],"attachments":{}}`, string(contents))
}

func TestLoadMissingBackupStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	got := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t)).Load()
	require.Equal(t, chat.EmptySnapshot(), got)
}

func TestLoadCorruptBackupStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"history":[{"sender":5}]`), 0o600))

	got := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t)).Load()
	require.Equal(t, chat.EmptySnapshot(), got)
}

func TestLoadPartialBackupNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chatter-data":{"bob":{"currentMessageId":9}}}`), 0o600))

	got := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t)).Load()
	require.Equal(t, int64(9), got.ChatterData["bob"].NextMessageID)
	require.NotNil(t, got.History)
	require.NotNil(t, got.Attachments)
}

func TestSaveFailureIsSwallowed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "backup.json")
	gateway := backup.NewGateway(backup.NewFileStore(path), zaptest.NewLogger(t))

	gateway.Save(sampleSnapshot())

	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)

	store, err := backup.Open(backup.DriverBadger, dir, logger)
	require.NoError(t, err)
	gateway := backup.NewGateway(store, logger)
	require.Equal(t, chat.EmptySnapshot(), gateway.Load())

	want := sampleSnapshot()
	gateway.Save(want)
	gateway.Close()

	store, err = backup.Open(backup.DriverBadger, dir, logger)
	require.NoError(t, err)
	gateway = backup.NewGateway(store, logger)
	defer gateway.Close()

	require.Equal(t, want, gateway.Load())
}

func TestOpenDrivers(t *testing.T) {
	store, err := backup.Open(backup.DriverNone, "", nil)
	require.NoError(t, err)
	require.Nil(t, store)

	gateway := backup.NewGateway(store, nil)
	gateway.Save(sampleSnapshot())
	require.Equal(t, chat.EmptySnapshot(), gateway.Load())

	store, err = backup.Open(backup.DriverFile, filepath.Join(t.TempDir(), "b.json"), nil)
	require.NoError(t, err)
	require.IsType(t, &backup.FileStore{}, store)

	_, err = backup.Open("postgres", "", nil)
	require.Error(t, err)
}
