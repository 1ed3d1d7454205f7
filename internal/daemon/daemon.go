package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sumcheck/internal/config"
	"sumcheck/internal/filer"
	"sumcheck/internal/journal"
	"sumcheck/internal/logging"
	"sumcheck/internal/watcher"
)

// Daemon owns the watcher and filer lifecycle.
type Daemon struct {
	mu      sync.Mutex
	cfg     *config.Config
	logger  *slog.Logger
	journal *journal.Journal
	filer   *filer.Filer
	watcher *watcher.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	runDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Roots        []watcher.Root
	Records      int
	Hint         string
	PDFDir       string
	JournalPath  string
	LockFilePath string
}

// New constructs a daemon and its collaborators. The journal is opened here
// so a schema mismatch is reported before anything is watched.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var j *journal.Journal
	if cfg.Journal.Enabled {
		opened, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		j = opened
	}

	f := NewFiler(cfg, logger, j)
	w := watcher.New(f, watcher.OptionsFromConfig(cfg, logging.OverrideFor(logger, cfg, "watcher")))
	f.SetSuppressor(w)

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.ForComponent(logger, cfg, "daemon"),
		journal:  j,
		filer:    f,
		watcher:  w,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, loads records, and begins watching.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another sumcheck instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if strings.TrimSpace(d.cfg.SourcePath()) == "" {
		logging.WarnWithContext(d.logger, "no records file configured", "records_missing",
			logging.String(logging.FieldErrorHint, "set paths.project_file or paths.records_file"),
			logging.String(logging.FieldImpact, "downloads are filed but never matched"),
		)
	}
	_ = d.filer.Reload(runCtx)

	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.filer.Run(runCtx)
	}()
	d.filer.RequestScan()

	d.cancel = cancel
	d.runDone = done
	d.running.Store(true)
	d.logger.Info("sumcheck daemon started",
		logging.String("lock", d.lockPath),
		logging.String("downloads", d.cfg.Paths.DownloadsDir),
		logging.String("pdf_dir", d.cfg.Paths.PDFDir),
	)
	return nil
}

// Stop stops watching, waits for in-flight filing, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.runDone != nil {
		<-d.runDone
		d.runDone = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no sumcheck process is running"),
			logging.String(logging.FieldImpact, "the next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("sumcheck daemon stopped")
}

// Close stops the daemon and closes the journal.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// ApplyConfig switches to a new configuration snapshot: watched paths, filing
// mode, and the record source. Records are reloaded and the PDF folder is
// rescanned.
func (d *Daemon) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.filer.SetPDFDir(cfg.Paths.PDFDir)
	d.filer.SetSource(SourceFor(cfg))
	if err := d.watcher.ApplyConfig(cfg); err != nil {
		return fmt.Errorf("update watcher: %w", err)
	}
	_ = d.filer.Reload(ctx)
	d.filer.RequestScan()
	d.logger.Info("configuration applied", logging.String(logging.FieldEventType, "config_applied"))
	return nil
}

// SetHint forwards a manual identifier hint to the filer.
func (d *Daemon) SetHint(identifier string) {
	d.filer.SetHint(identifier)
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		Roots:        d.watcher.Roots(),
		Records:      len(d.filer.Records()),
		Hint:         d.filer.Hint(),
		PDFDir:       cfg.Paths.PDFDir,
		LockFilePath: d.lockPath,
	}
	if d.journal != nil {
		status.JournalPath = filepath.Clean(d.journal.Path())
	}
	return status
}
