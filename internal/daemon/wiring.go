package daemon

import (
	"log/slog"
	"strings"

	"github.com/gofrs/flock"

	"sumcheck/internal/config"
	"sumcheck/internal/filer"
	"sumcheck/internal/journal"
	"sumcheck/internal/logging"
	"sumcheck/internal/match"
	"sumcheck/internal/metadata"
	"sumcheck/internal/naming"
	"sumcheck/internal/pdfmeta"
	"sumcheck/internal/titlecache"
)

// NewEngine builds the match engine for cfg, backed by the PDF reader and the
// sidecar title cache.
func NewEngine(cfg *config.Config, logger *slog.Logger) *match.Engine {
	cache := titlecache.New(logging.OverrideFor(logger, cfg, "titlecache"))
	reader := pdfmeta.NewReader(logging.OverrideFor(logger, cfg, "pdfmeta"))
	scheme := naming.NewScheme(cfg.Filing.IdentifierPrefix)
	return match.NewEngine(reader, reader, cache, scheme, logging.OverrideFor(logger, cfg, "match"))
}

// NewFiler builds a Filer for cfg. j may be nil when the journal is disabled.
func NewFiler(cfg *config.Config, logger *slog.Logger, j *journal.Journal) *filer.Filer {
	opts := filer.Options{
		Matcher:    NewEngine(cfg, logger),
		Source:     SourceFor(cfg),
		Cache:      titlecache.New(logging.OverrideFor(logger, cfg, "titlecache")),
		Scheme:     naming.NewScheme(cfg.Filing.IdentifierPrefix),
		PDFDir:     cfg.Paths.PDFDir,
		AutoRename: cfg.Filing.AutoRename,
		Logger:     logging.OverrideFor(logger, cfg, "filer"),
	}
	if j != nil {
		opts.Journal = j
	}
	return filer.New(opts)
}

// SourceFor returns the record source configured by cfg. Without a records
// file the source is empty.
func SourceFor(cfg *config.Config) metadata.Source {
	if path := strings.TrimSpace(cfg.SourcePath()); path != "" {
		return metadata.FileSource{Path: path}
	}
	return metadata.Static(nil)
}

// LockHeld reports whether a running instance holds the lock for cfg.
func LockHeld(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
