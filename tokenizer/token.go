// Package tokenizer turns a raw, chunk-delimited character stream into typed
// tokens for the channel state machine. It recognizes marker spellings like
// <|channel|>, <|message|>, <|end|> from a pluggable marker table and is
// resilient to markers split across arbitrary chunk boundaries.
package tokenizer

// Kind identifies the type of a lexed token
type Kind int

const (
	KindLiteral Kind = iota
	KindStart
	KindChannel
	KindRecipient
	KindContentType
	KindMessage
	KindEnd
)

// String returns the string representation of the Kind
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindStart:
		return "start"
	case KindChannel:
		return "channel"
	case KindRecipient:
		return "recipient"
	case KindContentType:
		return "content_type"
	case KindMessage:
		return "message"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Token is a single lexed unit. Value carries the literal text for
// KindLiteral tokens and the marker argument (channel name, recipient,
// content type) for markers that carry one. Raw always holds the exact
// input spelling so a marker misread inside payload text can be re-emitted
// verbatim by the state machine.
type Token struct {
	Kind  Kind
	Value string
	Raw   string
}
