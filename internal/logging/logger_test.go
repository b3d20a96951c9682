package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "logs", "nosotros.log")

	logger, err := New(Config{Debug: true, LogFile: logFile})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("pairing restored", zap.String("couple", "ABC123"))
	_ = logger.Sync()

	raw, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "pairing restored") {
		t.Fatalf("log file missing message: %s", raw)
	}
	if !strings.Contains(string(raw), `"couple":"ABC123"`) {
		t.Fatalf("log file missing field: %s", raw)
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug level should be disabled without Debug")
	}
}
