package chat

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

// attachmentIDGroups is the number of 16-bit random groups in an attachment id.
const attachmentIDGroups = 10

// AttachmentStore keeps uploaded blobs addressed by random ids.
// It is not safe for concurrent use; the Engine serializes access.
type AttachmentStore struct {
	entries map[string]*chat.Attachment
	random  io.Reader
}

// NewAttachmentStore returns an empty store drawing ids from random.
func NewAttachmentStore(random io.Reader) *AttachmentStore {
	if random == nil {
		random = rand.Reader
	}
	return &AttachmentStore{
		entries: make(map[string]*chat.Attachment),
		random:  random,
	}
}

// Add stores data under a freshly generated id and returns that id.
func (s *AttachmentStore) Add(name *string, data string) (string, error) {
	id, err := s.newID()
	if err != nil {
		return "", err
	}
	s.entries[id] = &chat.Attachment{Name: name, Data: &data}
	return id, nil
}

// Fetch returns the attachment stored under id. A nil Data means the payload was evicted.
func (s *AttachmentStore) Fetch(id string) (chat.Attachment, bool) {
	entry, ok := s.entries[id]
	if !ok {
		return chat.Attachment{}, false
	}
	return *entry, true
}

// Exists reports whether id was ever issued.
func (s *AttachmentStore) Exists(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// EvictPayload drops the payload of id and keeps the entry as a tombstone.
func (s *AttachmentStore) EvictPayload(id string) {
	if entry, ok := s.entries[id]; ok {
		entry.Data = nil
	}
}

// Len returns the number of entries, tombstones included.
func (s *AttachmentStore) Len() int {
	return len(s.entries)
}

// Snapshot copies every entry, tombstones included.
func (s *AttachmentStore) Snapshot() map[string]chat.Attachment {
	out := make(map[string]chat.Attachment, len(s.entries))
	for id, entry := range s.entries {
		out[id] = *entry
	}
	return out
}

// Restore replaces the store content.
func (s *AttachmentStore) Restore(entries map[string]chat.Attachment) {
	s.entries = make(map[string]*chat.Attachment, len(entries))
	for id, entry := range entries {
		s.entries[id] = &entry
	}
}

// newID draws candidates until one does not collide with an issued id.
func (s *AttachmentStore) newID() (string, error) {
	buf := make([]byte, attachmentIDGroups*2)
	for {
		if _, err := io.ReadFull(s.random, buf); err != nil {
			return "", fmt.Errorf("generate attachment id: %w", err)
		}
		id := hex.EncodeToString(buf)
		if _, taken := s.entries[id]; !taken {
			return id, nil
		}
	}
}
