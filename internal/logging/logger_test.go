// Package logging includes tests for the zap logger helpers.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Development: true})
	if err != nil {
		t.Fatalf("New(dev) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Level: "warn"})
	if err != nil {
		t.Fatalf("New(prod) error = %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled at warn level")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Warn("production logger ready")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// TestNewTeesToFile checks entries reach the rotating log file as JSON.
func TestNewTeesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "webtopdf.log")
	logger, err := New(Config{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New(file) error = %v", err)
	}
	logger.Info("batch processed")
	logger.Debug("hidden detail")
	_ = logger.Sync()

	data, err := os.ReadFile(path) // #nosec G304 -- temp dir
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"batch processed"`) {
		t.Fatalf("expected info entry in file, got %s", out)
	}
	if !strings.Contains(out, `"ts":`) {
		t.Fatalf("expected ts key in file, got %s", out)
	}
	if strings.Contains(out, "hidden detail") {
		t.Fatalf("debug entry leaked past info level: %s", out)
	}
}
