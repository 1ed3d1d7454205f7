package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Retention prunes aged files from a log directory.
type Retention struct {
	Dir string
	// Pattern is a filepath.Match pattern on base names; empty matches all.
	Pattern string
	// Keep lists paths never removed, typically the active log file.
	Keep []string
	Days int
}

// RetentionFromConfig returns the retention policy for the configured log
// directory, keeping the active sumcheck.log.
func RetentionFromConfig(dir string, days int) Retention {
	return Retention{
		Dir:     dir,
		Pattern: "sumcheck*.log*",
		Keep:    []string{filepath.Join(dir, "sumcheck.log")},
		Days:    days,
	}
}

// Prune removes matching files older than the policy allows and returns how
// many were removed. Days <= 0 disables pruning.
func (r Retention) Prune(logger *slog.Logger, now time.Time) int {
	dir := strings.TrimSpace(r.Dir)
	if r.Days <= 0 || dir == "" {
		return 0
	}
	cutoff := now.AddDate(0, 0, -r.Days)

	keep := make(map[string]struct{}, len(r.Keep))
	for _, path := range r.Keep {
		if abs, err := filepath.Abs(strings.TrimSpace(path)); err == nil {
			keep[abs] = struct{}{}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if r.Pattern != "" {
			if ok, err := filepath.Match(r.Pattern, name); err != nil || !ok {
				continue
			}
		}
		path := filepath.Join(dir, name)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "old log not removed", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check ownership of paths.log_dir"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", path))
		}
	}
	return removed
}
