package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmony-bridge/tokenizer"
	"harmony-bridge/types"
)

func newTestSession(mode Mode) *Session {
	return NewSession(tokenizer.HarmonyTable(), mode, 0, nil)
}

// drain feeds the chunks and flushes, returning all frames in order.
func drain(s *Session, chunks ...string) []types.OpenAIStreamChunk {
	var frames []types.OpenAIStreamChunk
	for _, chunk := range chunks {
		frames = append(frames, s.Process(chunk)...)
	}
	return append(frames, s.Flush()...)
}

func framesText(frames []types.OpenAIStreamChunk) string {
	var sb strings.Builder
	for _, frame := range frames {
		for _, choice := range frame.Choices {
			sb.WriteString(choice.Delta.Content)
		}
	}
	return sb.String()
}

func framesToolCalls(frames []types.OpenAIStreamChunk) []types.OpenAIToolCall {
	var calls []types.OpenAIToolCall
	for _, frame := range frames {
		for _, choice := range frame.Choices {
			calls = append(calls, choice.Delta.ToolCalls...)
		}
	}
	return calls
}

func TestSessionToolCallToXML(t *testing.T) {
	frames := drain(newTestSession(ModeXML),
		`<|channel|>commentary to=functions.write_file <|constrain|>json<|message|>{"path":"a.py","content":"x"}<|end|>`)

	assert.Equal(t,
		`<write_file><path>a.py</path><content>x</content></write_file>`,
		framesText(frames))
	// The call arrives as exactly one atomic frame.
	require.Len(t, frames, 1)
}

func TestSessionAnalysisSuppressed(t *testing.T) {
	s := newTestSession(ModeXML)
	frames := drain(s,
		`<|channel|>analysis<|message|>thinking...<|end|><|channel|>final<|message|>Done.<|end|>`)

	assert.Equal(t, "Done.", framesText(frames))
	assert.Equal(t, 1, s.SuppressedCount())
	assert.False(t, s.ForcedFlush())
}

func TestSessionMalformedPayloadFallsBack(t *testing.T) {
	frames := drain(newTestSession(ModeJSON),
		`<|channel|>commentary to=functions.run <|message|>{bad json<|end|>`)

	calls := framesToolCalls(frames)
	require.Len(t, calls, 1)
	assert.Equal(t, "run", calls[0].Function.Name)
	assert.Equal(t, `{"raw":"{bad json"}`, calls[0].Function.Arguments)
}

func TestSessionChunkBoundaryInvariance(t *testing.T) {
	input := `<|channel|>analysis<|message|>hmm<|end|>` +
		`<|channel|>commentary to=functions.run <|constrain|>json<|message|>{"cmd":"ls"}<|end|>` +
		`<|channel|>final<|message|>All done.<|end|>`

	want := drain(newTestSession(ModeXML), input)
	wantText := framesText(want)

	// Split at every byte offset.
	for split := 1; split < len(input); split++ {
		got := drain(newTestSession(ModeXML), input[:split], input[split:])
		assert.Equal(t, wantText, framesText(got), "split at %d", split)
	}

	// One byte at a time, the worst transport can do.
	bytes := make([]string, len(input))
	for i := range input {
		bytes[i] = input[i : i+1]
	}
	got := drain(newTestSession(ModeXML), bytes...)
	assert.Equal(t, wantText, framesText(got))
}

func TestSessionSplitInsideChannelWord(t *testing.T) {
	whole := drain(newTestSession(ModeXML), `<|channel|>final<|message|>Hi<|end|>`)
	split := drain(newTestSession(ModeXML), `<|chan`, `nel|>final<|message|>Hi<|end|>`)
	assert.Equal(t, framesText(whole), framesText(split))
}

func TestSessionFinalStreamsIncrementally(t *testing.T) {
	s := newTestSession(ModeXML)

	var frames []types.OpenAIStreamChunk
	frames = append(frames, s.Process(`<|channel|>final<|message|>Hello`)...)
	// Narration is live: the first delta is out before the block closes.
	assert.Equal(t, "Hello", framesText(frames))

	frames = append(frames, s.Process(` world<|end|>`)...)
	frames = append(frames, s.Flush()...)
	assert.Equal(t, "Hello world", framesText(frames))
}

func TestSessionToolCallIsAtomic(t *testing.T) {
	s := newTestSession(ModeJSON)

	frames := s.Process(`<|channel|>commentary to=functions.run <|constrain|>json<|message|>{"cmd":`)
	assert.Empty(t, framesToolCalls(frames), "no partial tool call frames")

	frames = append(frames, s.Process(`"ls"}<|end|>`)...)
	calls := framesToolCalls(frames)
	require.Len(t, calls, 1)
	assert.Equal(t, `{"cmd":"ls"}`, calls[0].Function.Arguments)
	assert.Equal(t, 1, s.ToolCallCount())
}

func TestSessionFlushIsIdempotent(t *testing.T) {
	s := newTestSession(ModeXML)
	s.Process(`<|channel|>commentary to=functions.run <|message|>{"cmd":"ls"}`)

	first := s.Flush()
	assert.NotEmpty(t, first, "open non-empty call block flushes best-effort")
	assert.Equal(t, `<run><cmd>ls</cmd></run>`, framesText(s.Emitted()))
	assert.True(t, s.Flushed())

	assert.Nil(t, s.Flush(), "second flush must produce nothing")
	assert.Nil(t, s.Process("late data"), "no output after flush")
}

func TestSessionMissingEndMarkerBestEffort(t *testing.T) {
	// Non-empty open block: flushed as a best-effort result.
	s := newTestSession(ModeJSON)
	frames := drain(s,
		`<|channel|>commentary to=functions.run <|constrain|>json<|message|>{"cmd":"ls"}`)
	calls := framesToolCalls(frames)
	require.Len(t, calls, 1)
	assert.Equal(t, "run", calls[0].Function.Name)
	assert.True(t, s.ForcedFlush())

	// Empty open block: discarded, zero output.
	frames = drain(newTestSession(ModeJSON), `<|channel|>commentary to=functions.run <|message|>`)
	assert.Empty(t, framesToolCalls(frames))
	assert.Empty(t, framesText(frames))
}

func TestSessionCommentaryWithoutRecipientPassesThrough(t *testing.T) {
	frames := drain(newTestSession(ModeXML),
		`<|channel|>commentary<|message|>working on it<|end|>`)
	assert.Equal(t, "working on it", framesText(frames))
	assert.Empty(t, framesToolCalls(frames))
}

func TestSessionUnknownChannelPassesThrough(t *testing.T) {
	frames := drain(newTestSession(ModeXML),
		`<|channel|>mystery<|message|>odd but visible<|end|>`)
	assert.Equal(t, "odd but visible", framesText(frames))
}

func TestSessionPlainTextPassesThrough(t *testing.T) {
	frames := drain(newTestSession(ModeXML), "no markers here at all")
	assert.Equal(t, "no markers here at all", framesText(frames))
}

func TestSessionPayloadCapDowngradesToText(t *testing.T) {
	s := NewSession(tokenizer.HarmonyTable(), ModeXML, 8, nil)

	frames := drain(s,
		`<|channel|>commentary to=functions.big <|message|>0123456789ABCDEF<|end|>`)

	// The oversized call block is released as plain text, exactly once.
	assert.Equal(t, "0123456789ABCDEF", framesText(frames))
	assert.Empty(t, framesToolCalls(frames))
}

func TestSessionEmptyRecipientLeafDowngrades(t *testing.T) {
	// "functions." strips to an empty leaf; never emit a nameless call.
	s := newTestSession(ModeJSON)
	frames := drain(s,
		`<|channel|>commentary to=functions. <|message|>{"a":1}<|end|>`)
	assert.Empty(t, framesToolCalls(frames))
	assert.Equal(t, `{"a":1}`, framesText(frames))
	assert.Equal(t, 1, s.FaultCount())
}

func TestSessionEmittedLogPreservesOrder(t *testing.T) {
	s := newTestSession(ModeXML)
	frames := drain(s,
		`<|channel|>final<|message|>one<|end|><|channel|>commentary to=functions.f <|message|>{}<|end|>`)
	assert.Equal(t, frames, s.Emitted())
	assert.Equal(t, "one<f></f>", framesText(frames))
}

func TestConvertWholeBody(t *testing.T) {
	table := tokenizer.HarmonyTable()

	text, calls := Convert(
		`<|channel|>analysis<|message|>hmm<|end|><|channel|>final<|message|>Done.<|end|>`,
		table, ModeJSON, 0, nil)
	assert.Equal(t, "Done.", text)
	assert.Empty(t, calls)

	text, calls = Convert(
		`<|channel|>commentary to=functions.run <|constrain|>json<|message|>{"cmd":"ls"}<|end|>`,
		table, ModeJSON, 0, nil)
	assert.Empty(t, text)
	require.Len(t, calls, 1)
	assert.Equal(t, "run", calls[0].Function.Name)
}

func TestSessionAlternateMarkerTable(t *testing.T) {
	table := tokenizer.NewMarkerTable(
		tokenizer.Marker{Kind: tokenizer.KindChannel, Prefix: "<channel:", Suffix: ">"},
		tokenizer.Marker{Kind: tokenizer.KindRecipient, Prefix: "<to:", Suffix: ">"},
		tokenizer.Marker{Kind: tokenizer.KindMessage, Prefix: "<message>"},
		tokenizer.Marker{Kind: tokenizer.KindEnd, Prefix: "<end>"},
	)
	s := NewSession(table, ModeXML, 0, nil)

	frames := drain(s,
		`<channel:commentary><to:write_file><message>{"path":"a.py","content":"x"}<end>`)
	assert.Equal(t,
		`<write_file><path>a.py</path><content>x</content></write_file>`,
		framesText(frames))
}
