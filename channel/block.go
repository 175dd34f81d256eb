// Package channel implements the state machine that reassembles lexed
// tokens into channel blocks: one block per channel segment, carrying the
// channel name, optional recipient and content type, and the accumulated
// payload text.
package channel

import "strings"

// Type represents the different channel types multiplexed in model output
type Type int

const (
	Analysis Type = iota
	Commentary
	Final
	Unknown
)

// String returns the string representation of the Type
func (t Type) String() string {
	switch t {
	case Analysis:
		return "analysis"
	case Commentary:
		return "commentary"
	case Final:
		return "final"
	default:
		return "unknown"
	}
}

// ParseType converts a channel name to a Type with fallback to Unknown.
// Unknown channels fail open: they are preserved and routed as plain text.
func ParseType(name string) Type {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "analysis":
		return Analysis
	case "commentary":
		return Commentary
	case "final":
		return Final
	default:
		return Unknown
	}
}

// Block is one complete (or best-effort-flushed) segment of one channel.
// A Block is created when a channel marker is consumed, accumulates literal
// text while the message body is open, and is finalized exactly once.
// Blocks are never reused across segments.
type Block struct {
	Channel     Type
	RawChannel  string
	Recipient   string
	ContentType string
	Complete    bool

	// Downgraded marks a block whose payload exceeded the configured cap;
	// the session streams it as plain text instead of buffering further.
	Downgraded bool

	payload strings.Builder
}

// Payload returns the accumulated body text.
func (b *Block) Payload() string {
	return b.payload.String()
}

// Len returns the accumulated payload size in bytes.
func (b *Block) Len() int {
	return b.payload.Len()
}

// Append adds text to the payload. Trimming and cap accounting are the
// Machine's job; Append is the raw accumulation primitive.
func (b *Block) Append(text string) {
	b.payload.WriteString(text)
}
