// Package metrics exposes the bridge's Prometheus instrumentation.
// Collectors are registered on the default registry and served by the
// /metrics endpoint in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts inbound requests by endpoint and output mode.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmony_bridge_requests_total",
		Help: "Inbound requests by endpoint and output mode",
	}, []string{"endpoint", "mode"})

	// StreamChunksTotal counts upstream SSE chunks processed.
	StreamChunksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_stream_chunks_total",
		Help: "Upstream SSE chunks processed",
	})

	// BlocksTotal counts finalized channel blocks by channel name.
	BlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harmony_bridge_blocks_total",
		Help: "Finalized channel blocks by channel",
	}, []string{"channel"})

	// ToolCallsTotal counts tool calls emitted downstream.
	ToolCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_tool_calls_total",
		Help: "Tool calls emitted downstream",
	})

	// ParseFallbacksTotal counts call payloads that were not valid JSON
	// and degraded to a single raw argument.
	ParseFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_parse_fallbacks_total",
		Help: "Call payloads that fell back to raw-argument rendering",
	})

	// ForcedFlushesTotal counts sessions flushed with a partially observed
	// marker or an unterminated block still open.
	ForcedFlushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_forced_flushes_total",
		Help: "Best-effort flushes of incomplete stream state",
	})

	// DowngradedBlocksTotal counts blocks that crossed the payload cap and
	// were force-streamed as plain text.
	DowngradedBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_downgraded_blocks_total",
		Help: "Blocks downgraded to passthrough after exceeding the payload cap",
	})

	// RoutingFaultsTotal counts defensive downgrades such as a call block
	// arriving with an empty recipient.
	RoutingFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harmony_bridge_routing_faults_total",
		Help: "Defensive routing downgrades",
	})
)
