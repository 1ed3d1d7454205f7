package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sumcheck/internal/config"
	"sumcheck/internal/logging"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "console"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("pdf filed", logging.String(logging.FieldIdentifier, "111"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "sumcheck.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", content, err)
	}
	if record["msg"] != "pdf filed" || record["level"] != "info" || record["identifier"] != "111" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key in %v", record)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "watcher").Info("download moved",
		logging.String(logging.FieldPDF, "/papers/kinase.pdf"),
		logging.String(logging.FieldCorrelationID, "abc"),
		logging.String("destination", "/papers/kinase.pdf"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
	if !strings.Contains(text, "INFO [watcher] kinase.pdf – download moved") {
		t.Fatalf("expected header with component and subject, got %q", text)
	}
	if !strings.Contains(text, "    - destination: /papers/kinase.pdf") {
		t.Fatalf("expected indented field, got %q", text)
	}
	if strings.Contains(text, "correlation_id") {
		t.Fatalf("expected correlation id hidden at info, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("settle wait", logging.String(logging.FieldCorrelationID, "abc"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "logger_test.go:") {
		t.Fatalf("expected caller in debug output, got %q", text)
	}
	if !strings.Contains(text, "correlation_id: abc") {
		t.Fatalf("expected correlation id at debug, got %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestAutoFormatUsesJSONForFiles(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "auto.log")
	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello")
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !json.Valid(bytes.TrimSpace(content)) {
		t.Fatalf("expected JSON output, got %q", content)
	}
}

func TestForComponentAppliesOverride(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.Default()
	cfg.Logging.ComponentOverrides = map[string]string{"watcher": "warn"}

	watcherLogger := logging.ForComponent(base, &cfg, "watcher")
	watcherLogger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed by override, got %q", buf.String())
	}
	watcherLogger.Warn("root missing")
	if !strings.Contains(buf.String(), `"component":"watcher"`) {
		t.Fatalf("expected component attr preserved, got %q", buf.String())
	}

	buf.Reset()
	logging.ForComponent(base, &cfg, "filer").Debug("visible")
	if buf.Len() == 0 {
		t.Fatal("expected components without override to use base level")
	}
}
