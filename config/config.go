// Package config loads the bridge configuration from a .env file and an
// optional markers.yaml override for the delimiter vocabulary.
package config

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"harmony-bridge/tokenizer"
)

// Config represents the bridge configuration - all settings from .env
type Config struct {
	Port string `json:"port"`

	// Upstream OpenAI-compatible model server (e.g. LM Studio)
	UpstreamURL string `json:"upstream_url"`

	// Output format for tool calls: "xml" (Cline) or "json" (OpenAI tool_calls)
	OutputFormat string `json:"output_format"`

	// MaxBlockBytes caps the buffered payload of one channel block; a block
	// crossing it is force-streamed as plain text. 0 disables the cap.
	MaxBlockBytes int `json:"max_block_bytes"`

	// MarkersFile optionally overrides the delimiter vocabulary
	MarkersFile string `json:"markers_file"`

	// LogLevel is the minimum console log level (debug|info|warn|error)
	LogLevel string `json:"log_level"`

	// Debug settings
	Debug              bool `json:"debug"`                // Enable debug logging
	LogSuppressedText  bool `json:"log_suppressed_text"`  // Log dropped analysis text at debug level
	PrintUpstreamLines bool `json:"print_upstream_lines"` // Print raw upstream SSE lines for troubleshooting
}

// GetDefaultConfig returns a default configuration for testing
func GetDefaultConfig() *Config {
	return &Config{
		Port:          "8000",
		UpstreamURL:   "http://localhost:1234",
		OutputFormat:  "xml",
		MaxBlockBytes: 1 << 20, // 1MB
		LogLevel:      "info",
	}
}

// LoadConfigWithEnv loads configuration from a .env file in the current
// directory, falling back to defaults for anything unset.
func LoadConfigWithEnv() (*Config, error) {
	cfg := GetDefaultConfig()

	envVars, err := loadEnvFile()
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("⚙️ No .env file found, using defaults")
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read .env file: %v", err)
	}

	if port, exists := envVars["PORT"]; exists && port != "" {
		cfg.Port = port
	}
	if upstream, exists := envVars["UPSTREAM_URL"]; exists && upstream != "" {
		cfg.UpstreamURL = strings.TrimRight(upstream, "/")
	}
	if format, exists := envVars["OUTPUT_FORMAT"]; exists && format != "" {
		format = strings.ToLower(strings.TrimSpace(format))
		if format != "xml" && format != "json" {
			return nil, fmt.Errorf("OUTPUT_FORMAT must be xml or json, got %q", format)
		}
		cfg.OutputFormat = format
	}
	if raw, exists := envVars["MAX_BLOCK_BYTES"]; exists && raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("MAX_BLOCK_BYTES must be a non-negative integer, got %q", raw)
		}
		cfg.MaxBlockBytes = n
	}
	if markers, exists := envVars["MARKERS_FILE"]; exists {
		cfg.MarkersFile = markers
	}
	if level, exists := envVars["LOG_LEVEL"]; exists && level != "" {
		cfg.LogLevel = level
	}
	cfg.Debug = parseBool(envVars["DEBUG"])
	cfg.LogSuppressedText = parseBool(envVars["LOG_SUPPRESSED_TEXT"])
	cfg.PrintUpstreamLines = parseBool(envVars["PRINT_UPSTREAM_LINES"])

	log.Printf("🔧 Configured upstream: %s (format=%s, port=%s)", cfg.UpstreamURL, cfg.OutputFormat, cfg.Port)
	return cfg, nil
}

// MarkerTable returns the delimiter vocabulary: the markers file when
// configured, the built-in Harmony spellings otherwise.
func (c *Config) MarkerTable() (*tokenizer.MarkerTable, error) {
	if c.MarkersFile == "" {
		return tokenizer.HarmonyTable(), nil
	}
	return LoadMarkerTable(c.MarkersFile)
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// loadEnvFile loads environment variables from .env file in current directory
func loadEnvFile() (map[string]string, error) {
	envVars := make(map[string]string)

	file, err := os.Open(".env")
	if err != nil {
		return envVars, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		envVars[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}

	return envVars, scanner.Err()
}
