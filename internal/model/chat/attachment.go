package chat

// Attachment is a named blob referenced by messages.
// A nil Data marks a tombstone: the payload was evicted but the id and name stay resolvable.
type Attachment struct {
	Name *string `json:"name,omitempty"`
	Data *string `json:"data"`
}

// Evicted reports whether the payload is no longer available.
func (a Attachment) Evicted() bool {
	return a.Data == nil
}
