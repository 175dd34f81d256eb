package proxy

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"harmony-bridge/logger"
	"harmony-bridge/metrics"
	"harmony-bridge/stream"
	"harmony-bridge/types"
)

// streamTransform rewrites an upstream SSE stream through a per-request
// session. Passthrough text is forwarded delta-by-delta as it arrives;
// tool calls are buffered until their block completes and sent as one
// frame. A stalled client applies backpressure naturally: writes block the
// upstream read loop instead of buffering without bound.
func (h *Handler) streamTransform(w http.ResponseWriter, resp *http.Response, requestID string, log logger.Logger) {
	if resp.StatusCode != http.StatusOK {
		if h.obs != nil {
			h.obs.Warn(logger.ComponentProxy, logger.CategoryWarning, requestID, "upstream error for streaming request", map[string]interface{}{
				"status": resp.StatusCode,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			w.Write(scanner.Bytes())
			w.Write([]byte("\n"))
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)

	session := stream.NewSession(h.table, h.mode, h.cfg.MaxBlockBytes, log)
	session.SetLogSuppressed(h.cfg.LogSuppressedText)

	writeRaw := func(line string) {
		w.Write([]byte(line + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}
	writeFrames := func(frames []types.OpenAIStreamChunk) {
		for _, frame := range frames {
			data, err := marshalFrame(frame)
			if err != nil {
				log.Error("Failed to marshal outbound frame: %v", err)
				continue
			}
			writeRaw("data: " + string(data))
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	// Increase buffer size to handle large streaming chunks (tool calls, long content)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if h.cfg.PrintUpstreamLines {
			log.Debug("upstream: %s", line)
		}
		if line == "data: [DONE]" {
			writeFrames(session.Flush())
			writeRaw("data: [DONE]")
			break
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		metrics.StreamChunksTotal.Inc()

		var chunk types.OpenAIStreamChunk
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
			log.Warn("Skipping malformed upstream chunk: %v", err)
			continue
		}
		session.Prime(chunk)

		if len(chunk.Choices) == 0 {
			writeRaw(line)
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			writeFrames(session.Process(choice.Delta.Content))
			if choice.FinishReason == nil {
				continue
			}
			// Some servers attach finish_reason to the last content chunk
			// instead of sending a separate finish frame.
		} else if choice.FinishReason == nil {
			// Role preamble, upstream tool_calls and other non-content
			// chunks pass through unchanged.
			writeRaw(line)
			continue
		}

		// Content is over; release anything still buffered before the
		// finish frame goes out.
		writeFrames(session.Flush())
		writeRaw(h.finishLine(line, &chunk, session))
	}

	if err := scanner.Err(); err != nil {
		log.Error("Stream error: %v", err)
		if h.obs != nil {
			h.obs.Error(logger.ComponentProxy, logger.CategoryError, requestID, "upstream stream error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Upstream may close without [DONE]; flushing twice is a no-op.
	writeFrames(session.Flush())

	if h.obs != nil {
		h.obs.Debug(logger.ComponentSession, logger.CategoryFlush, requestID, "stream session closed", map[string]interface{}{
			"frames":     len(session.Emitted()),
			"tool_calls": session.ToolCallCount(),
		})
		if n := session.SuppressedCount(); n > 0 {
			h.obs.Debug(logger.ComponentSession, logger.CategorySuppressed, requestID, "analysis blocks dropped", map[string]interface{}{
				"blocks": n,
			})
		}
		if n := session.FaultCount(); n > 0 {
			h.obs.Warn(logger.ComponentConverter, logger.CategoryFault, requestID, "call blocks downgraded to text", map[string]interface{}{
				"blocks": n,
			})
		}
		if session.ForcedFlush() {
			h.obs.Debug(logger.ComponentTokenizer, logger.CategoryFlush, requestID, "incomplete marker state forced out at end of stream", nil)
		}
	}
}

// finishLine renders the upstream finish chunk for forwarding. The delta
// content is cleared when present (it was already transformed and sent),
// and finish_reason is rewritten to "tool_calls" when the session emitted
// tool calls in JSON mode. The raw line is forwarded untouched when neither
// applies, preserving fields the bridge does not model.
func (h *Handler) finishLine(line string, chunk *types.OpenAIStreamChunk, session *stream.Session) string {
	dirty := false
	if chunk.Choices[0].Delta.Content != "" {
		chunk.Choices[0].Delta.Content = ""
		dirty = true
	}
	if h.mode == stream.ModeJSON && session.ToolCallCount() > 0 {
		reason := "tool_calls"
		chunk.Choices[0].FinishReason = &reason
		dirty = true
	}
	if !dirty {
		return line
	}
	data, err := marshalFrame(chunk)
	if err != nil {
		return line
	}
	return "data: " + string(data)
}

// marshalFrame encodes an outbound frame without HTML escaping, so XML
// tool call text reaches clients as written rather than as < runes.
func marshalFrame(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
