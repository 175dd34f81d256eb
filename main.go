package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"harmony-bridge/config"
	"harmony-bridge/logger"
	"harmony-bridge/proxy"
)

func main() {
	// Print version information
	fmt.Println(GetBuildInfo())
	fmt.Println()

	// Load configuration with .env support
	cfg, err := config.LoadConfigWithEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	table, err := cfg.MarkerTable()
	if err != nil {
		log.Fatalf("Failed to load marker table: %v", err)
	}

	obsLogger, err := logger.NewObservabilityLogger("logs")
	if err != nil {
		log.Fatalf("Failed to initialize structured logging: %v", err)
	}
	defer obsLogger.Close()
	if cfg.Debug {
		obsLogger.SetDebug()
	}

	obsLogger.Info(logger.ComponentConfig, logger.CategoryRequest, "", "Harmony Bridge configuration loaded", map[string]interface{}{
		"port":            cfg.Port,
		"upstream":        cfg.UpstreamURL,
		"output_format":   cfg.OutputFormat,
		"max_block_bytes": cfg.MaxBlockBytes,
		"markers_file":    cfg.MarkersFile,
		"version":         GetVersionInfo(),
		"git_commit":      GetGitCommit(),
	})

	// Create proxy handler
	handler := proxy.NewHandler(cfg, table, obsLogger)

	// Setup HTTP routes: /v1 plus the /api/v0 aliases some clients use
	http.HandleFunc("/", handleRoot)
	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/v1/chat/completions", handler.HandleChatCompletions)
	http.HandleFunc("/v1/models", handler.HandleModels)
	http.HandleFunc("/api/v0/chat/completions", handler.HandleChatCompletions)
	http.HandleFunc("/api/v0/models", handler.HandleModels)
	http.Handle("/metrics", promhttp.Handler())

	// Setup HTTP server with reasonable timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // Long timeout for streaming responses
		IdleTimeout:  60 * time.Second,
	}

	fmt.Printf("🌉 Harmony Bridge listening on http://localhost:%s (upstream %s, format=%s)\n",
		cfg.Port, cfg.UpstreamURL, cfg.OutputFormat)

	obsLogger.Info(logger.ComponentBridge, logger.CategoryRequest, "", "Harmony Bridge started", map[string]interface{}{
		"address":  fmt.Sprintf("http://localhost:%s", cfg.Port),
		"endpoint": fmt.Sprintf("http://localhost:%s/v1/chat/completions", cfg.Port),
	})

	// Start server
	if err := server.ListenAndServe(); err != nil {
		obsLogger.Error(logger.ComponentProxy, logger.CategoryError, "", "Server failed to start", map[string]interface{}{"error": err.Error()})
		log.Fatalf("Server failed to start: %v", err)
	}
}

// handleRoot provides basic information about the bridge
func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
	"service": "Harmony Bridge",
	"version": "1.0.0",
	"status": "running",
	"endpoints": [
		"GET /health - Health check",
		"POST /v1/chat/completions - OpenAI-compatible chat completions",
		"GET /v1/models - Upstream model list"
	]
}`)
}

// handleHealth provides a simple health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
	"status": "ok",
	"timestamp": "%s"
}`, time.Now().UTC().Format(time.RFC3339))
}
