package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCreatesLogFile(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "logs", "replink.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Get().Info("hello", "key", "value")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing entry, got: %s", data)
	}
	if !strings.Contains(string(data), "key=value") {
		t.Errorf("log file missing structured field, got: %s", data)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first := filepath.Join(t.TempDir(), "first.log")
	second := filepath.Join(t.TempDir(), "second.log")

	if err := Init(first); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Second Init must not re-point the logger
	if err := Init(second); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if Path() != first {
		t.Errorf("Path = %q, want %q", Path(), first)
	}
}

func TestWithComponentAddsField(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "replink.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	WithComponent("discovery").Info("port found", "port", 7888)
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "component=discovery") {
		t.Errorf("log file missing component field, got: %s", data)
	}
}

func TestSetDebugTogglesLevel(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	path := filepath.Join(t.TempDir(), "replink.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}

	Get().Debug("hidden")
	SetDebug(true)
	Get().Debug("visible")
	SetDebug(false)
	Get().Debug("hidden again")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("debug entry logged while debug disabled: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("debug entry missing while debug enabled: %s", out)
	}
}
