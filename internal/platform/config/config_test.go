package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StreamAddr != ":8081" || cfg.CORSOrigin != "*" {
		t.Fatalf("unexpected addrs: %+v", cfg)
	}
	if cfg.TurnTimeout != 30*time.Second {
		t.Fatalf("turn timeout = %s, want 30s", cfg.TurnTimeout)
	}
	if cfg.RoundInterval != time.Second {
		t.Fatalf("round interval = %s, want 1s", cfg.RoundInterval)
	}
	if cfg.OTelSampleRatio != 1 {
		t.Fatalf("sample ratio = %v, want 1", cfg.OTelSampleRatio)
	}
	if cfg.JournalBuffer != 256 {
		t.Fatalf("journal buffer = %d, want 256", cfg.JournalBuffer)
	}
	if !cfg.StreamEnabled {
		t.Fatalf("stream should default to enabled")
	}
	if cfg.MCPStdio {
		t.Fatalf("mcp stdio should default to false")
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Fatalf("level = %s, want info", cfg.Level())
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TURNKEEP_HTTP_ADDR", ":9000")
	t.Setenv("TURNKEEP_STREAM_ENABLED", "false")
	t.Setenv("TURNKEEP_TURN_TIMEOUT", "5s")
	t.Setenv("TURNKEEP_ROUND_INTERVAL", "250ms")
	t.Setenv("TURNKEEP_LOG_LEVEL", "debug")
	t.Setenv("TURNKEEP_MCP_STDIO", "true")
	t.Setenv("TURNKEEP_JOURNAL_BUFFER", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.StreamEnabled {
		t.Fatalf("stream should be disabled")
	}
	if cfg.TurnTimeout != 5*time.Second || cfg.RoundInterval != 250*time.Millisecond {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if !cfg.MCPStdio || cfg.JournalBuffer != 8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Level() != zerolog.DebugLevel {
		t.Fatalf("level = %s, want debug", cfg.Level())
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"zero timeout":   {"TURNKEEP_TURN_TIMEOUT", "0s"},
		"bad duration":   {"TURNKEEP_TURN_TIMEOUT", "soon"},
		"bad level":      {"TURNKEEP_LOG_LEVEL", "loud"},
		"zero buffer":    {"TURNKEEP_JOURNAL_BUFFER", "0"},
		"negative pause": {"TURNKEEP_ROUND_INTERVAL", "-1s"},
		"zero pause":     {"TURNKEEP_ROUND_INTERVAL", "0s"},
		"sample ratio":   {"TURNKEEP_OTEL_SAMPLE_RATIO", "2"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
