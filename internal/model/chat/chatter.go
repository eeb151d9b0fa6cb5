package chat

// ChatterRecord persists per nickname across reconnects and restarts.
type ChatterRecord struct {
	// NextMessageID is the id handed to the chatter's next message. It never decreases.
	NextMessageID int64 `json:"currentMessageId"`
}

// TakeMessageID returns the next message id and advances the counter.
func (c *ChatterRecord) TakeMessageID() int64 {
	id := c.NextMessageID
	c.NextMessageID++
	return id
}
