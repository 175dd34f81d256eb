// Package proxy is the HTTP bridge: it forwards chat completion requests
// to the upstream model server and rewrites the responses through the
// channel pipeline so downstream clients never see raw channel markers.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"harmony-bridge/config"
	"harmony-bridge/internal"
	"harmony-bridge/logger"
	"harmony-bridge/metrics"
	"harmony-bridge/stream"
	"harmony-bridge/tokenizer"
	"harmony-bridge/types"
)

// Handler bridges downstream clients and the upstream model server.
type Handler struct {
	cfg    *config.Config
	table  *tokenizer.MarkerTable
	mode   stream.Mode
	obs    *logger.ObservabilityLogger
	client *http.Client
}

// NewHandler creates a Handler. obs may be nil.
func NewHandler(cfg *config.Config, table *tokenizer.MarkerTable, obs *logger.ObservabilityLogger) *Handler {
	return &Handler{
		cfg:   cfg,
		table: table,
		mode:  stream.ParseMode(cfg.OutputFormat),
		obs:   obs,
		client: &http.Client{
			// Long total timeout for slow generations; connects fail fast.
			Timeout: 600 * time.Second,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 10 * time.Second,
			},
		},
	}
}

func (h *Handler) requestLogger(requestID string) logger.Logger {
	minLevel := logger.ParseLevel(h.cfg.LogLevel)
	if h.cfg.Debug {
		minLevel = logger.DEBUG
	}
	ctx := internal.WithRequestID(context.Background(), requestID)
	return logger.New(ctx, logger.StaticConfig{MinLevel: minLevel}).WithComponent("proxy")
}

// HandleChatCompletions proxies POST /v1/chat/completions. The request
// body is forwarded upstream untouched; the response is transformed
// through a per-request session.
func (h *Handler) HandleChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := internal.NewRequestID()
	log := h.requestLogger(requestID)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", "bad_request")
		return
	}

	var probe types.OpenAIRequest
	if err := json.Unmarshal(body, &probe); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", "bad_request")
		return
	}

	metrics.RequestsTotal.WithLabelValues("chat_completions", h.mode.String()).Inc()
	log.Info("Request: model=%s, stream=%v, mode=%s", probe.Model, probe.Stream, h.mode)
	if h.obs != nil {
		h.obs.Info(logger.ComponentProxy, logger.CategoryRequest, requestID, "chat completion request", map[string]interface{}{
			"model":  probe.Model,
			"stream": probe.Stream,
			"mode":   h.mode.String(),
		})
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		h.cfg.UpstreamURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "proxy_error")
		return
	}
	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		log.Error("Upstream request failed: %v", err)
		writeError(w, http.StatusBadGateway, err.Error(), "proxy_error")
		return
	}
	defer resp.Body.Close()

	if probe.Stream {
		h.streamTransform(w, resp, requestID, log)
	} else {
		h.transformResponse(w, resp, requestID, log)
	}
}

// HandleModels proxies GET /v1/models to the upstream server unchanged.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	metrics.RequestsTotal.WithLabelValues("models", h.mode.String()).Inc()
	resp, err := h.client.Get(h.cfg.UpstreamURL + "/v1/models")
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "proxy_error")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// transformResponse rewrites a complete (non-streaming) upstream response.
// Unknown fields are preserved: only choices[0].message is touched, and
// only when the content carries channel markers.
func (h *Handler) transformResponse(w http.ResponseWriter, resp *http.Response, requestID string, log logger.Logger) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "proxy_error")
		return
	}
	if resp.StatusCode != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		w.Write(body)
		return
	}

	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		log.Warn("Upstream response is not JSON, passing through: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
		return
	}

	if choice, message, content, ok := firstChoiceContent(data); ok && h.table.Detect(content) {
		text, calls := stream.Convert(content, h.table, h.mode, h.cfg.MaxBlockBytes, log)
		if len(calls) > 0 && h.mode == stream.ModeJSON {
			if text == "" {
				message["content"] = nil
			} else {
				message["content"] = text
			}
			message["tool_calls"] = calls
			choice["finish_reason"] = "tool_calls"
		} else {
			message["content"] = text
			// Calls are embedded in the text in XML mode; a stale upstream
			// tool_calls field would give clients both representations.
			delete(message, "tool_calls")
			choice["finish_reason"] = "stop"
		}
		log.Info("Transformed response: text_len=%d, tool_calls=%d", len(text), len(calls))
		if h.obs != nil {
			h.obs.Info(logger.ComponentProxy, logger.CategoryTransformation, requestID, "response transformed", map[string]interface{}{
				"text_len":   len(text),
				"tool_calls": len(calls),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}

// firstChoiceContent digs choices[0].message.content out of a decoded
// response body.
func firstChoiceContent(data map[string]interface{}) (choice, message map[string]interface{}, content string, ok bool) {
	choices, _ := data["choices"].([]interface{})
	if len(choices) == 0 {
		return nil, nil, "", false
	}
	choice, _ = choices[0].(map[string]interface{})
	if choice == nil {
		return nil, nil, "", false
	}
	message, _ = choice["message"].(map[string]interface{})
	if message == nil {
		return nil, nil, "", false
	}
	content, _ = message["content"].(string)
	return choice, message, content, content != ""
}

func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q}}`, message, errType)
}
