package chat

import (
	"github.com/samber/lo"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
)

// History is the bounded, insertion-ordered message log.
// Chatter messages are indexed by (sender, id) for edit and delete; when a key
// repeats, the oldest entry is the one addressed.
type History struct {
	capacity    int
	messages    []*chat.Message
	index       map[chat.MessageKey]*chat.Message
	attachments *AttachmentStore
}

// NewHistory returns an empty log that tombstones evicted attachments in attachments.
func NewHistory(capacity int, attachments *AttachmentStore) *History {
	return &History{
		capacity:    capacity,
		messages:    make([]*chat.Message, 0, capacity+1),
		index:       make(map[chat.MessageKey]*chat.Message),
		attachments: attachments,
	}
}

// Append adds message at the end and evicts the oldest entry over capacity.
func (h *History) Append(message chat.Message) {
	entry := &message
	h.messages = append(h.messages, entry)
	if key, ok := entry.Key(); ok {
		if _, taken := h.index[key]; !taken {
			h.index[key] = entry
		}
	}

	for len(h.messages) > h.capacity {
		h.evictOldest()
	}
}

// Find returns the chatter message addressed by (sender, id).
func (h *History) Find(sender string, id int64) (chat.Message, bool) {
	entry, ok := h.index[chat.MessageKey{Sender: sender, ID: id}]
	if !ok {
		return chat.Message{}, false
	}
	return *entry, true
}

// Edit overwrites the text and attachment of a chatter message and flags it as edited.
// A miss is not an error: it returns false and leaves the log untouched.
func (h *History) Edit(sender string, id int64, text string, attachment *string) (chat.Message, bool) {
	entry, ok := h.index[chat.MessageKey{Sender: sender, ID: id}]
	if !ok {
		return chat.Message{}, false
	}
	entry.Text = text
	entry.Attachment = attachment
	entry.Edited = true
	return *entry, true
}

// Delete removes every entry addressed by (sender, id) and returns how many were removed.
func (h *History) Delete(sender string, id int64) int {
	key := chat.MessageKey{Sender: sender, ID: id}
	before := len(h.messages)
	h.messages = lo.Reject(h.messages, func(m *chat.Message, _ int) bool {
		k, ok := m.Key()
		return ok && k == key
	})
	delete(h.index, key)
	return before - len(h.messages)
}

// Messages returns a copy of the log, oldest first.
func (h *History) Messages() []chat.Message {
	return lo.Map(h.messages, func(m *chat.Message, _ int) chat.Message {
		return *m
	})
}

// Len returns the number of messages in the log.
func (h *History) Len() int {
	return len(h.messages)
}

// Restore replaces the log content. Entries beyond capacity are evicted oldest first.
func (h *History) Restore(messages []chat.Message) {
	h.messages = make([]*chat.Message, 0, h.capacity+1)
	h.index = make(map[chat.MessageKey]*chat.Message)
	for _, message := range messages {
		h.Append(message)
	}
}

func (h *History) evictOldest() {
	oldest := h.messages[0]
	h.messages[0] = nil
	h.messages = h.messages[1:]

	if key, ok := oldest.Key(); ok && h.index[key] == oldest {
		delete(h.index, key)
		if next, found := lo.Find(h.messages, func(m *chat.Message) bool {
			k, ok := m.Key()
			return ok && k == key
		}); found {
			h.index[key] = next
		}
	}
	if oldest.Attachment != nil {
		h.attachments.EvictPayload(*oldest.Attachment)
	}
}
