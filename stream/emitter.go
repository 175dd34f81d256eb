// Package stream owns the per-request pipeline: reassembly, channel state
// machine, routing, call conversion and the emitter that frames the result
// as OpenAI stream chunks.
package stream

import (
	"strings"
	"time"

	"harmony-bridge/types"
)

// Mode selects the downstream representation for tool calls.
type Mode int

const (
	// ModeXML renders calls as XML tag-trees embedded in the text stream
	// (Cline style).
	ModeXML Mode = iota
	// ModeJSON renders calls as OpenAI tool_calls deltas.
	ModeJSON
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	if m == ModeJSON {
		return "json"
	}
	return "xml"
}

// ParseMode converts a string to a Mode with fallback to XML.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return ModeJSON
	}
	return ModeXML
}

// Emitter frames router output as outbound OpenAI stream chunks. It keeps
// the identity fields (id/model/created) of the upstream response so
// emitted chunks look like they came from the same completion.
type Emitter struct {
	base   types.OpenAIStreamChunk
	primed bool
}

// NewEmitter creates an Emitter with a generic chunk template; Prime
// replaces it with the real upstream identity once the first chunk arrives.
func NewEmitter() *Emitter {
	return &Emitter{
		base: types.OpenAIStreamChunk{
			ID:      "chunk",
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   "gpt-oss",
		},
	}
}

// Prime captures the identity fields of the first upstream chunk.
// Subsequent calls are ignored.
func (e *Emitter) Prime(chunk types.OpenAIStreamChunk) {
	if e.primed {
		return
	}
	e.primed = true
	e.base.ID = chunk.ID
	if chunk.Object != "" {
		e.base.Object = chunk.Object
	}
	e.base.Created = chunk.Created
	e.base.Model = chunk.Model
}

// Text builds an incremental content delta frame.
func (e *Emitter) Text(text string) types.OpenAIStreamChunk {
	frame := e.base
	frame.Choices = []types.OpenAIStreamChoice{{
		Index: 0,
		Delta: types.OpenAIStreamDelta{Content: text},
	}}
	return frame
}

// ToolCall builds one atomic tool call frame. Tool calls are never
// interleaved with partially delivered content: callers buffer until the
// owning block completes, then emit exactly one of these.
func (e *Emitter) ToolCall(call types.OpenAIToolCall) types.OpenAIStreamChunk {
	frame := e.base
	frame.Choices = []types.OpenAIStreamChoice{{
		Index: 0,
		Delta: types.OpenAIStreamDelta{ToolCalls: []types.OpenAIToolCall{call}},
	}}
	return frame
}
