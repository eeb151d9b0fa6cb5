package protocol

// Defaults for Limits.
const (
	DefaultEventSize      = 6 << 20
	DefaultNicknameLength = 32
	DefaultHistorySize    = 128
	DefaultMessageLength  = 1024
	DefaultAttachmentSize = 5 << 20
)

// Limits bounds everything a client can send.
type Limits struct {
	// EventSize is the largest inbound frame in bytes. The transport enforces it.
	EventSize      int64
	NicknameLength int
	HistorySize    int
	MessageLength  int
	AttachmentSize int
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		EventSize:      DefaultEventSize,
		NicknameLength: DefaultNicknameLength,
		HistorySize:    DefaultHistorySize,
		MessageLength:  DefaultMessageLength,
		AttachmentSize: DefaultAttachmentSize,
	}
}
