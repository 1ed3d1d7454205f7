package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := slog.New(newTeeHandler(infoHandler, debugHandler)).With(slog.String("component", "filer"))
	logger.Debug("debug only")
	if infoBuf.Len() != 0 {
		t.Fatal("info handler should not receive debug messages")
	}
	if !strings.Contains(debugBuf.String(), `"component":"filer"`) {
		t.Fatalf("expected attrs forwarded to debug handler, got %q", debugBuf.String())
	}

	logger.Info("both")
	if !strings.Contains(infoBuf.String(), "both") || !strings.Contains(debugBuf.String(), "both") {
		t.Fatal("expected info record in both handlers")
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var buf bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&buf, nil)).Info("no base")
	if buf.Len() == 0 {
		t.Fatal("expected output in tee buffer")
	}
}

func TestLevelOverrideCloneKeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := WithLevelOverride(base.With(slog.String("component", "match")), slog.LevelInfo)
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug suppressed, got %q", buf.String())
	}

	relaxed := WithLevelOverride(logger, slog.LevelDebug)
	relaxed.Debug("shown")
	if !strings.Contains(buf.String(), `"component":"match"`) {
		t.Fatalf("expected attrs to survive re-override, got %q", buf.String())
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "root skipped", "root_inaccessible", String(FieldErrorHint, "create the directory"))
	out := buf.String()
	for _, want := range []string{`"event_type":"root_inaccessible"`, `"error_hint":"create the directory"`, `"impact":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
	WarnWithContext(nil, "ignored", "noop")
}

func TestWithContextAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithCorrelationID(context.Background(), " run-1 ")
	WithContext(ctx, logger).Info("matched")
	if !strings.Contains(buf.String(), `"correlation_id":"run-1"`) {
		t.Fatalf("expected correlation id, got %q", buf.String())
	}
	if _, ok := CorrelationIDFromContext(WithCorrelationID(context.Background(), "  ")); ok {
		t.Fatal("blank correlation id must not be stored")
	}
}

func TestPrettyHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.WithGroup("match").Info("decision", slog.Float64("score", 0.95), slog.String("title", "a \"quoted\" title"))
	out := buf.String()
	if !strings.Contains(out, "match.score: 0.950") {
		t.Fatalf("expected flattened group key, got %q", out)
	}
	if !strings.Contains(out, `match.title: "a \"quoted\" title"`) {
		t.Fatalf("expected quoted value, got %q", out)
	}
}

func TestRetentionPrunesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "sumcheck-old.log")
	fresh := filepath.Join(dir, "sumcheck.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{old, fresh, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if n := (Retention{Dir: dir, Days: 0}).Prune(NewNop(), time.Now()); n != 0 {
		t.Fatalf("zero days must disable pruning, removed %d", n)
	}
	if n := RetentionFromConfig(dir, 5).Prune(NewNop(), time.Now()); n != 1 {
		t.Fatalf("expected one file pruned, got %d", n)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log pruned, stat err=%v", err)
	}
	for _, path := range []string{fresh, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
}
