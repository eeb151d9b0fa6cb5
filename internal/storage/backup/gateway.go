// Package backup snapshots the chat state so it survives restarts.
// Persistence is advisory: failures are logged and never surfaced to callers.
package backup

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverBadger = "badger"
	DriverNone   = "none"
)

// DefaultBadgerDir is where the badger driver keeps its database unless configured otherwise.
const DefaultBadgerDir = "speaco-backup"

// ErrNoBackup is returned by Store.Read when nothing was saved yet.
var ErrNoBackup = errors.New("no backup")

// Store is the storage medium of a snapshot.
type Store interface {
	Read() (chat.Snapshot, error)
	Write(snapshot chat.Snapshot) error
	Close() error
}

// Open returns the store for driver rooted at path. DriverNone yields a nil store.
func Open(driver, path string, logger *zap.Logger) (Store, error) {
	switch driver {
	case DriverFile:
		return NewFileStore(path), nil
	case DriverBadger:
		if path == "" {
			path = DefaultBadgerDir
		}
		store, err := OpenBadgerStore(path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backup driver %q", driver)
	}
}

// Gateway loads and saves snapshots on a best-effort basis.
type Gateway struct {
	store  Store
	logger *zap.Logger
}

// NewGateway wraps store. A nil store turns the gateway into a no-op.
func NewGateway(store Store, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, logger: logger}
}

// Load returns the saved snapshot, or an empty one if it is absent or unreadable.
func (g *Gateway) Load() chat.Snapshot {
	if g.store == nil {
		return chat.EmptySnapshot()
	}

	snapshot, err := g.store.Read()
	switch {
	case errors.Is(err, ErrNoBackup):
		g.logger.Info("no backup found, starting empty")
		return chat.EmptySnapshot()
	case err != nil:
		g.logger.Warn("backup unreadable, starting empty", zap.Error(err))
		return chat.EmptySnapshot()
	}

	g.logger.Info("backup loaded",
		zap.Int("chatters", len(snapshot.ChatterData)),
		zap.Int("history", len(snapshot.History)),
		zap.Int("attachments", len(snapshot.Attachments)),
	)
	return snapshot.Normalize()
}

// Save writes snapshot. Errors are logged and swallowed.
func (g *Gateway) Save(snapshot chat.Snapshot) {
	if g.store == nil {
		return
	}
	if err := g.store.Write(snapshot); err != nil {
		g.logger.Warn("backup write failed", zap.Error(err))
		return
	}
	g.logger.Info("backup saved", zap.Int("history", len(snapshot.History)))
}

// Close releases the underlying store.
func (g *Gateway) Close() {
	if g.store == nil {
		return
	}
	if err := g.store.Close(); err != nil {
		g.logger.Warn("backup close failed", zap.Error(err))
	}
}
