package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = prev })
	return logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	prev := logger
	t.Cleanup(func() { logger = prev })
	t.Setenv(LogLevelEnvVar, "")

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent without a level")
	}
}

func TestInitializeFromEnv(t *testing.T) {
	prev := logger
	t.Cleanup(func() { logger = prev })
	t.Setenv(LogLevelEnvVar, "warn")

	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) || !core.Enabled(zapcore.WarnLevel) {
		t.Error("level from environment not applied")
	}
}

func TestLogWireMessage(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogWireMessage("legacy", "send", []byte("100,!R1D2F1\r\n"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["content"] != "100,!R1D2F1.." {
		t.Errorf("content = %v", fields["content"])
	}
	if fields["hex_dump"] == nil {
		t.Error("hex_dump missing at debug level")
	}
	if fields["link"] != "legacy" || fields["direction"] != "send" {
		t.Errorf("fields = %v", fields)
	}
}

func TestLogConnection(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogConnection("smart", "wss://example", "connected")

	if logs.FilterField(zap.String("event", "connected")).Len() != 1 {
		t.Errorf("connection event not logged: %v", logs.All())
	}
}

func TestDumpsAreCapped(t *testing.T) {
	data := []byte(strings.Repeat("A", maxDumpBytes+10))

	if got := asciiDump(data); len(got) != maxDumpBytes {
		t.Errorf("asciiDump length = %d, want %d", len(got), maxDumpBytes)
	}
	if got := hexDump(data); !strings.HasSuffix(got, "...") || len(got) != 2*maxDumpBytes+3 {
		t.Errorf("hexDump length = %d", len(got))
	}
	if hexDump(nil) != "" || asciiDump(nil) != "" {
		t.Error("empty input should dump to empty strings")
	}
}
