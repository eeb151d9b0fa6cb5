package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

// DefaultFilePath is where the file driver keeps its snapshot unless configured otherwise.
const DefaultFilePath = "speaco-backup.json"

// FileStore keeps the snapshot as a single JSON document.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

// Read decodes the snapshot file.
func (s *FileStore) Read() (chat.Snapshot, error) {
	contents, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return chat.Snapshot{}, ErrNoBackup
	}
	if err != nil {
		return chat.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(contents) == 0 {
		return chat.Snapshot{}, ErrNoBackup
	}

	var snapshot chat.Snapshot
	if err := json.Unmarshal(contents, &snapshot); err != nil {
		return chat.Snapshot{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return snapshot, nil
}

// Write replaces the snapshot file through a temporary file and a rename.
func (s *FileStore) Write(snapshot chat.Snapshot) error {
	contents, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(contents); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename to %s: %w", s.path, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
