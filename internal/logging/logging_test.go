package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/justestif/go-chart-quiz/internal/config"
)

func TestNewLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LogConfig{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("round started")
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not a single JSON object: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "round started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "round started")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := newLogger(config.LogConfig{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Error("newLogger() with invalid level should fail")
	}
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chart-quiz.log")

	logger, err := newLogger(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Contains(data, []byte("to file")) {
		t.Errorf("log file = %q, want it to contain the message", data)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Error("OrNop(nil) returned nil")
	}
}
