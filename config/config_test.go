package config

import (
	"os"
	"path/filepath"
	"testing"

	"harmony-bridge/tokenizer"
)

func TestDefaults(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Port != "8000" {
		t.Errorf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.UpstreamURL != "http://localhost:1234" {
		t.Errorf("UpstreamURL = %q", cfg.UpstreamURL)
	}
	if cfg.OutputFormat != "xml" {
		t.Errorf("OutputFormat = %q, want xml", cfg.OutputFormat)
	}
	if cfg.MaxBlockBytes != 1<<20 {
		t.Errorf("MaxBlockBytes = %d, want 1MB", cfg.MaxBlockBytes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Debug {
		t.Error("Debug should be off by default")
	}
}

func TestLoadConfigWithEnv(t *testing.T) {
	envContent := `# bridge settings
PORT=9999
UPSTREAM_URL=http://model-host:1234/
OUTPUT_FORMAT=json
MAX_BLOCK_BYTES=4096
LOG_LEVEL=debug
DEBUG=true
`
	if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
		t.Fatalf("failed to write test .env: %v", err)
	}
	defer os.Remove(".env")

	cfg, err := LoadConfigWithEnv()
	if err != nil {
		t.Fatalf("LoadConfigWithEnv() error = %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.UpstreamURL != "http://model-host:1234" {
		t.Errorf("UpstreamURL = %q, trailing slash should be trimmed", cfg.UpstreamURL)
	}
	if cfg.OutputFormat != "json" {
		t.Errorf("OutputFormat = %q, want json", cfg.OutputFormat)
	}
	if cfg.MaxBlockBytes != 4096 {
		t.Errorf("MaxBlockBytes = %d, want 4096", cfg.MaxBlockBytes)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Debug {
		t.Error("Debug should be enabled")
	}
}

func TestLoadConfigRejectsBadFormat(t *testing.T) {
	if err := os.WriteFile(".env", []byte("OUTPUT_FORMAT=html\n"), 0644); err != nil {
		t.Fatalf("failed to write test .env: %v", err)
	}
	defer os.Remove(".env")

	if _, err := LoadConfigWithEnv(); err == nil {
		t.Error("expected error for unsupported OUTPUT_FORMAT")
	}
}

func TestMarkerTableDefault(t *testing.T) {
	cfg := GetDefaultConfig()
	table, err := cfg.MarkerTable()
	if err != nil {
		t.Fatalf("MarkerTable() error = %v", err)
	}
	if !table.Detect("<|channel|>final") {
		t.Error("default table should recognize Harmony spellings")
	}
}

func TestLoadMarkerTableFromYAML(t *testing.T) {
	content := `markers:
  - {kind: channel, prefix: "<channel:", suffix: ">"}
  - {kind: recipient, prefix: "<to:", suffix: ">"}
  - {kind: message, prefix: "<message>"}
  - {kind: end, prefix: "<end>"}
`
	path := filepath.Join(t.TempDir(), "markers.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write markers file: %v", err)
	}

	table, err := LoadMarkerTable(path)
	if err != nil {
		t.Fatalf("LoadMarkerTable() error = %v", err)
	}

	tokens, tail := tokenizer.Lex(table, "<channel:final><message>Hi<end>")
	if tail != "" {
		t.Fatalf("unexpected tail %q", tail)
	}
	want := []tokenizer.Kind{tokenizer.KindChannel, tokenizer.KindMessage, tokenizer.KindLiteral, tokenizer.KindEnd}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want kinds %v", tokens, want)
	}
	for i, k := range want {
		if tokens[i].Kind != k {
			t.Errorf("token %d kind = %v, want %v", i, tokens[i].Kind, k)
		}
	}
	if tokens[0].Value != "final" {
		t.Errorf("channel value = %q, want final", tokens[0].Value)
	}
}

func TestLoadMarkerTableErrors(t *testing.T) {
	if _, err := LoadMarkerTable("does-not-exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("markers:\n  - {kind: bogus, prefix: x}\n"), 0644)
	if _, err := LoadMarkerTable(path); err == nil {
		t.Error("expected error for unknown marker kind")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	os.WriteFile(empty, []byte("markers: []\n"), 0644)
	if _, err := LoadMarkerTable(empty); err == nil {
		t.Error("expected error for empty marker list")
	}
}
