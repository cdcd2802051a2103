package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

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
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestHostCore(t *testing.T) {
	var lines []string
	log := zap.New(NewHostCore(func(s string) { lines = append(lines, s) }, zapcore.InfoLevel))

	log.Debug("hidden")
	log.With(zap.String("key", "K")).Info("stored", zap.Int("bytes", 3))
	log.Info("two\nlines")

	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2 entries", lines)
	}
	if lines[0] != `stored {"key": "K", "bytes": 3}` {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if strings.Contains(lines[1], "\n") {
		t.Errorf("lines[1] contains a newline: %q", lines[1])
	}
}

func TestInit_FileOutputAndHost(t *testing.T) {
	out := filepath.Join(t.TempDir(), "remote.log")
	if err := Init("debug", "json", out); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	var lines []string
	log := WithHost(GetZapLogger(), func(s string) { lines = append(lines, s) })
	log.Debug("hello", zap.String("k", "v"))
	Sync()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %s", data)
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "hello") {
		t.Errorf("host lines = %q", lines)
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("loud", "text", ""); err == nil {
		t.Error("expected error for invalid level")
	}
}
