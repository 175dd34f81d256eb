package stream

import (
	"strings"

	"harmony-bridge/channel"
	"harmony-bridge/convert"
	"harmony-bridge/logger"
	"harmony-bridge/metrics"
	"harmony-bridge/route"
	"harmony-bridge/tokenizer"
	"harmony-bridge/types"
)

// Session is the per-request pipeline state: one reassembly buffer, one
// channel state machine and one emitter, plus the ordered log of frames
// already sent downstream. Sessions are created on the first request byte
// and never shared across requests, so no locking is needed.
type Session struct {
	mode    Mode
	log     logger.Logger
	reasm   *tokenizer.Reassembler
	machine *channel.Machine
	emitter *Emitter

	emitted    []types.OpenAIStreamChunk
	flushed    bool
	callIndex  int
	suppressed int
	faults     int
	forced     bool

	logSuppressed bool

	// live is the block currently streamed as plain text, used to flush a
	// downgraded call block's buffered payload exactly once.
	live *channel.Block
}

// NewSession creates a Session. maxPayload caps the buffered payload of a
// single block (0 = unlimited); log may be nil.
func NewSession(table *tokenizer.MarkerTable, mode Mode, maxPayload int, log logger.Logger) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	return &Session{
		mode:    mode,
		log:     log.WithComponent("session"),
		reasm:   tokenizer.NewReassembler(table),
		machine: channel.NewMachine(maxPayload),
		emitter: NewEmitter(),
	}
}

// SetLogSuppressed enables debug logging of dropped analysis text.
func (s *Session) SetLogSuppressed(enabled bool) {
	s.logSuppressed = enabled
}

// Prime captures the upstream chunk identity for outbound frames.
func (s *Session) Prime(chunk types.OpenAIStreamChunk) {
	s.emitter.Prime(chunk)
}

// Process feeds one upstream content delta through the pipeline and
// returns the frames to send downstream, in order.
func (s *Session) Process(delta string) []types.OpenAIStreamChunk {
	if s.flushed {
		return nil
	}
	return s.handle(s.reasm.Feed(delta))
}

// Flush finishes the session at end-of-stream: the reassembly tail is
// forced out as literal text and a still-open non-empty block is emitted
// as a best-effort partial result. Flushing twice produces no output.
func (s *Session) Flush() []types.OpenAIStreamChunk {
	if s.flushed {
		return nil
	}
	forced := s.reasm.Pending() > 0 || s.machine.Open() != nil
	frames := s.handle(s.reasm.Flush())
	for _, ev := range s.machine.Finish() {
		frames = append(frames, s.dispatch(ev)...)
	}
	s.flushed = true
	if forced {
		s.forced = true
		metrics.ForcedFlushesTotal.Inc()
		s.log.Debug("forced flush of incomplete stream state")
	}
	return frames
}

// Flushed reports whether the session has been flushed.
func (s *Session) Flushed() bool {
	return s.flushed
}

// ToolCallCount returns the number of tool calls emitted so far.
func (s *Session) ToolCallCount() int {
	return s.callIndex
}

// SuppressedCount returns the number of blocks dropped by the router.
func (s *Session) SuppressedCount() int {
	return s.suppressed
}

// FaultCount returns the number of call blocks downgraded to text because
// their recipient yielded no usable name.
func (s *Session) FaultCount() int {
	return s.faults
}

// ForcedFlush reports whether Flush had to force out incomplete stream
// state (a held-back marker tail or a still-open block).
func (s *Session) ForcedFlush() bool {
	return s.forced
}

// Emitted returns the ordered log of frames produced so far.
func (s *Session) Emitted() []types.OpenAIStreamChunk {
	return s.emitted
}

func (s *Session) handle(tokens []tokenizer.Token) []types.OpenAIStreamChunk {
	var frames []types.OpenAIStreamChunk
	for _, tok := range tokens {
		for _, ev := range s.machine.Consume(tok) {
			frames = append(frames, s.dispatch(ev)...)
		}
	}
	return frames
}

func (s *Session) dispatch(ev channel.Event) []types.OpenAIStreamChunk {
	if ev.Block == nil {
		// Plain text outside any channel framing.
		return s.emit(s.emitter.Text(ev.Text))
	}
	dest := route.For(ev.Block)
	if !ev.Done {
		return s.delta(ev, dest)
	}
	return s.done(ev.Block, dest)
}

func (s *Session) delta(ev channel.Event, dest route.Destination) []types.OpenAIStreamChunk {
	switch dest {
	case route.Suppress:
		return nil
	case route.Call:
		// Buffered until the block completes; tool calls are not sent
		// token-by-token.
		return nil
	default:
		if s.live != ev.Block {
			s.live = ev.Block
			if ev.Block.Downgraded {
				// The block was buffered as a call until it crossed the
				// payload cap; release everything buffered so far.
				metrics.DowngradedBlocksTotal.Inc()
				s.log.Warn("block exceeded payload cap, streaming as text (channel=%s)", ev.Block.Channel)
				return s.emit(s.emitter.Text(ev.Block.Payload()))
			}
		}
		return s.emit(s.emitter.Text(ev.Text))
	}
}

func (s *Session) done(block *channel.Block, dest route.Destination) []types.OpenAIStreamChunk {
	metrics.BlocksTotal.WithLabelValues(block.Channel.String()).Inc()
	if s.live == block {
		s.live = nil
	}
	switch dest {
	case route.Suppress:
		s.suppressed++
		if s.logSuppressed {
			s.log.Debug("suppressed %s block (%d bytes): %s", block.Channel, block.Len(), block.Payload())
		} else {
			s.log.Debug("suppressed %s block (%d bytes)", block.Channel, block.Len())
		}
		return nil
	case route.Call:
		return s.call(block)
	default:
		// Deltas were already streamed while the block accumulated.
		return nil
	}
}

func (s *Session) call(block *channel.Block) []types.OpenAIStreamChunk {
	call := convert.FromBlock(block)
	if call.Name == "" {
		// Router invariant says this cannot happen; downgrade to narration
		// instead of emitting a call without a name.
		s.faults++
		metrics.RoutingFaultsTotal.Inc()
		s.log.Warn("call block without usable recipient %q, downgrading to text", block.Recipient)
		if payload := block.Payload(); payload != "" {
			return s.emit(s.emitter.Text(payload))
		}
		return nil
	}
	metrics.ToolCallsTotal.Inc()
	if call.Fallback {
		s.log.Warn("call %s payload was not valid JSON, using raw argument", call.Name)
	}
	if s.mode == ModeJSON {
		frame := s.emitter.ToolCall(call.OpenAI(s.callIndex))
		s.callIndex++
		return s.emit(frame)
	}
	return s.emit(s.emitter.Text(call.XML()))
}

func (s *Session) emit(frame types.OpenAIStreamChunk) []types.OpenAIStreamChunk {
	s.emitted = append(s.emitted, frame)
	return []types.OpenAIStreamChunk{frame}
}

// Convert runs a complete response body through a fresh pipeline and
// returns the clean narration text plus any extracted tool calls. Used for
// non-streaming responses.
func Convert(content string, table *tokenizer.MarkerTable, mode Mode, maxPayload int, log logger.Logger) (string, []types.OpenAIToolCall) {
	session := NewSession(table, mode, maxPayload, log)
	frames := session.Process(content)
	frames = append(frames, session.Flush()...)

	var text strings.Builder
	var calls []types.OpenAIToolCall
	for _, frame := range frames {
		for _, choice := range frame.Choices {
			text.WriteString(choice.Delta.Content)
			calls = append(calls, choice.Delta.ToolCalls...)
		}
	}
	return text.String(), calls
}
