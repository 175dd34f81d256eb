// Package route classifies completed channel blocks by destination.
// The mapping is total: every channel value routes to exactly one
// destination, and unknown channels fail open to passthrough.
package route

import (
	"strings"

	"harmony-bridge/channel"
)

// Destination identifies where a block's content goes
type Destination int

const (
	// Suppress drops the block entirely (chain-of-thought is never
	// forwarded downstream; it may be captured for diagnostics only).
	Suppress Destination = iota
	// Call converts the block into a structured tool call.
	Call
	// Passthrough forwards the block's text unmodified.
	Passthrough
)

// String returns the string representation of the Destination
func (d Destination) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case Call:
		return "call"
	default:
		return "passthrough"
	}
}

// For returns the destination for a block. A commentary block carries a
// tool call only when a recipient is present; recipient-less commentary is
// plain narration. A downgraded call block degrades to passthrough: its
// payload crossed the buffering cap and is streamed as text instead.
// Analysis is suppressed even when downgraded so chain-of-thought can
// never leak through the cap.
func For(b *channel.Block) Destination {
	if b == nil {
		return Passthrough
	}
	switch b.Channel {
	case channel.Analysis:
		return Suppress
	case channel.Commentary:
		if strings.TrimSpace(b.Recipient) != "" && !b.Downgraded {
			return Call
		}
		return Passthrough
	case channel.Final:
		return Passthrough
	default:
		return Passthrough
	}
}
