package backup

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

var snapshotKey = []byte("speaco:snapshot")

// BadgerStore keeps the snapshot under a single key of a Badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) the database in dir.
func OpenBadgerStore(dir string, logger *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(newBadgerLogger(logger))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// Read decodes the stored snapshot.
func (s *BadgerStore) Read() (chat.Snapshot, error) {
	var contents []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		contents, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Snapshot{}, ErrNoBackup
	}
	if err != nil {
		return chat.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot chat.Snapshot
	if err := json.Unmarshal(contents, &snapshot); err != nil {
		return chat.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Write stores snapshot, replacing the previous one.
func (s *BadgerStore) Write(snapshot chat.Snapshot) error {
	contents, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, contents)
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's printf-style logging into zap.
type badgerLogger struct {
	sugar *zap.SugaredLogger
}

func newBadgerLogger(logger *zap.Logger) badgerLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return badgerLogger{sugar: logger.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.sugar.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.sugar.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.sugar.Debugf(format, args...) }
