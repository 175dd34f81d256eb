package channel

import (
	"strings"

	"harmony-bridge/tokenizer"
)

// Event is the machine's output unit. Text is set for body deltas (live
// literal text appended to the open block); Done is set when a block is
// finalized. A nil Block with Text set is plain text seen outside any
// channel framing and flows straight through.
type Event struct {
	Block *Block
	Text  string
	Done  bool
}

type state int

const (
	stateIdle state = iota
	stateHeader
	stateBody
)

// Machine consumes tokens and reassembles them into channel blocks.
//
// Idle -> channel marker -> Header (collect name/recipient/content type)
// -> message marker -> Body (literals accumulate) -> end marker -> Idle.
//
// A channel or start marker seen while a body is open finalizes the open
// block first: upstream producers are known to omit the end marker for the
// last channel, so the implicit close is a deliberate recovery rule rather
// than an error path.
//
// One Machine per stream; not safe for concurrent use.
type Machine struct {
	state      state
	open       *Block
	expectRole bool
	maxPayload int
}

// NewMachine creates a Machine. maxPayload caps the accumulated body size
// of a single block; 0 means unlimited. A block crossing the cap is marked
// Downgraded so the caller can stop buffering and stream it as plain text.
func NewMachine(maxPayload int) *Machine {
	return &Machine{maxPayload: maxPayload}
}

// Consume advances the machine by one token and returns any resulting events.
func (m *Machine) Consume(tok tokenizer.Token) []Event {
	switch m.state {
	case stateIdle:
		return m.consumeIdle(tok)
	case stateHeader:
		return m.consumeHeader(tok)
	default:
		return m.consumeBody(tok)
	}
}

func (m *Machine) consumeIdle(tok tokenizer.Token) []Event {
	switch tok.Kind {
	case tokenizer.KindLiteral:
		if m.expectRole {
			// Role name following <|start|>, not content.
			m.expectRole = false
			return nil
		}
		return []Event{{Text: tok.Value}}
	case tokenizer.KindChannel:
		m.openBlock(tok.Value)
		return nil
	case tokenizer.KindStart:
		m.expectRole = true
		return nil
	case tokenizer.KindRecipient, tokenizer.KindContentType:
		// Only meaningful inside a channel header; elsewhere the spelling
		// is ordinary prose and must not be swallowed.
		return []Event{{Text: tok.Raw}}
	default:
		// Stray structural markers outside a block are dropped.
		return nil
	}
}

func (m *Machine) consumeHeader(tok tokenizer.Token) []Event {
	switch tok.Kind {
	case tokenizer.KindLiteral:
		if m.open.RawChannel == "" {
			if fields := strings.Fields(tok.Value); len(fields) > 0 {
				m.open.RawChannel = fields[0]
				m.open.Channel = ParseType(fields[0])
			}
		}
		return nil
	case tokenizer.KindRecipient:
		m.open.Recipient = tok.Value
		return nil
	case tokenizer.KindContentType:
		m.open.ContentType = tok.Value
		return nil
	case tokenizer.KindMessage:
		m.state = stateBody
		return nil
	case tokenizer.KindChannel:
		// New channel before the message body opened: nothing to flush.
		m.openBlock(tok.Value)
		return nil
	case tokenizer.KindStart:
		m.open = nil
		m.state = stateIdle
		m.expectRole = true
		return nil
	case tokenizer.KindEnd:
		m.open = nil
		m.state = stateIdle
		return nil
	default:
		return nil
	}
}

func (m *Machine) consumeBody(tok tokenizer.Token) []Event {
	switch tok.Kind {
	case tokenizer.KindLiteral:
		return m.appendBody(tok.Value)
	case tokenizer.KindRecipient, tokenizer.KindContentType, tokenizer.KindMessage:
		// Marker spellings inside a message body are payload, not structure.
		return m.appendBody(tok.Raw)
	case tokenizer.KindChannel:
		events := m.finalize()
		m.openBlock(tok.Value)
		return events
	case tokenizer.KindStart:
		events := m.finalize()
		m.expectRole = true
		return events
	case tokenizer.KindEnd:
		return m.finalize()
	default:
		return nil
	}
}

// Finish flushes the machine at end-of-stream. An open block with content
// is finalized as a best-effort partial result; an open empty block is
// discarded silently.
func (m *Machine) Finish() []Event {
	if m.open == nil {
		return nil
	}
	if m.state == stateBody && m.open.Len() > 0 {
		return m.finalize()
	}
	m.open = nil
	m.state = stateIdle
	return nil
}

// Open returns the currently open block, or nil.
func (m *Machine) Open() *Block {
	return m.open
}

func (m *Machine) openBlock(name string) {
	m.open = &Block{Channel: Unknown}
	if name != "" {
		m.open.RawChannel = name
		m.open.Channel = ParseType(name)
	}
	m.state = stateHeader
	m.expectRole = false
}

func (m *Machine) appendBody(text string) []Event {
	if m.open.Len() == 0 {
		// Producers pad the message marker with whitespace; body content
		// starts at the first non-blank rune.
		text = strings.TrimLeft(text, " \t\r\n")
		if text == "" {
			return nil
		}
	}
	if m.open.Downgraded {
		// Past the cap the payload is no longer buffered; deltas still
		// flow so the caller can keep streaming the text live.
		return []Event{{Block: m.open, Text: text}}
	}
	m.open.Append(text)
	if m.maxPayload > 0 && m.open.Len() > m.maxPayload {
		m.open.Downgraded = true
	}
	return []Event{{Block: m.open, Text: text}}
}

func (m *Machine) finalize() []Event {
	block := m.open
	m.open = nil
	m.state = stateIdle
	if block == nil {
		return nil
	}
	block.Complete = true
	return []Event{{Block: block, Done: true}}
}
