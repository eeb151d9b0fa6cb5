package chat

// Snapshot is the logical schema of the crash-recovery backup.
type Snapshot struct {
	ChatterData map[string]ChatterRecord `json:"chatter-data"`
	History     []Message                `json:"history"`
	Attachments map[string]Attachment    `json:"attachments"`
}

// EmptySnapshot returns a snapshot with initialized collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		ChatterData: make(map[string]ChatterRecord),
		History:     make([]Message, 0),
		Attachments: make(map[string]Attachment),
	}
}

// Normalize replaces nil collections so a partially populated backup restores cleanly.
func (s Snapshot) Normalize() Snapshot {
	if s.ChatterData == nil {
		s.ChatterData = make(map[string]ChatterRecord)
	}
	if s.History == nil {
		s.History = make([]Message, 0)
	}
	if s.Attachments == nil {
		s.Attachments = make(map[string]Attachment)
	}
	return s
}
