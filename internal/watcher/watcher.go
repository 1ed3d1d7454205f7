package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"sumcheck/internal/config"
	"sumcheck/internal/fileutil"
	"sumcheck/internal/logging"
	"sumcheck/internal/naming"
	"sumcheck/internal/titlecache"
)

// Options configures a Watcher.
type Options struct {
	Paths          Paths
	CopyOnFile     bool
	DebounceWindow time.Duration
	DownloadSettle time.Duration
	ProjectSettle  time.Duration
	Scheme         *naming.Scheme
	Logger         *slog.Logger
}

// OptionsFromConfig maps configuration onto watcher options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Paths:          PathsFromConfig(cfg),
		CopyOnFile:     cfg.CopyOnFile(),
		DebounceWindow: cfg.DebounceWindow(),
		DownloadSettle: cfg.DownloadSettle(),
		ProjectSettle:  cfg.ProjectSettle(),
		Scheme:         naming.NewScheme(cfg.Filing.IdentifierPrefix),
		Logger:         logger,
	}
}

// PathsFromConfig extracts the watched locations from cfg.
func PathsFromConfig(cfg *config.Config) Paths {
	return Paths{
		DownloadsDir: cfg.Paths.DownloadsDir,
		PDFDir:       cfg.Paths.PDFDir,
		ProjectFile:  cfg.Paths.ProjectFile,
	}
}

// Watcher observes the configured roots and forwards logical events to a
// Handler.
type Watcher struct {
	handler   Handler
	logger    *slog.Logger
	debouncer *Debouncer
	scheme    *naming.Scheme
	moveFile  func(src, dst string) error
	copyFile  func(src, dst string) error

	// processing serializes the download pipeline: existence check, settle
	// wait, and move or copy.
	processing sync.Mutex

	lifecycle sync.Mutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	fsw       *fsnotify.Watcher
	loopDone  chan struct{}
	inflight  sync.WaitGroup

	mu         sync.RWMutex
	paths      Paths
	roots      []Root
	copyOnFile bool
	settle     time.Duration

	recentMu sync.Mutex
	recent   map[string]time.Time
}

// New returns a Watcher for opts. Nothing is observed until Start.
func New(handler Handler, opts Options) *Watcher {
	if handler == nil {
		handler = HandlerFuncs{}
	}
	scheme := opts.Scheme
	if scheme == nil {
		scheme = naming.NewScheme("")
	}
	settle := opts.DownloadSettle
	if settle <= 0 {
		settle = DefaultDownloadSettle
	}
	return &Watcher{
		handler:    handler,
		logger:     logging.NewComponentLogger(opts.Logger, "watcher"),
		debouncer:  NewDebouncer(opts.DebounceWindow, opts.ProjectSettle),
		scheme:     scheme,
		moveFile:   fileutil.MoveFile,
		copyFile:   fileutil.CopyFileVerified,
		ctx:        context.Background(),
		paths:      opts.Paths,
		copyOnFile: opts.CopyOnFile,
		settle:     settle,
		recent:     make(map[string]time.Time),
	}
}

// Debouncer exposes the watcher's debouncer, mainly so tests can control its
// clock.
func (w *Watcher) Debouncer() *Debouncer { return w.debouncer }

// Start validates the roots and begins observing them. Calling Start on a
// running Watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("watcher unavailable")
	}
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.running {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	if err := w.subscribe(); err != nil {
		w.cancel()
		return err
	}
	w.running = true
	return nil
}

// Stop ends observation and waits for in-flight handling to finish. It is
// idempotent and safe on a Watcher that was never started.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.lifecycle.Lock()
	if w.running {
		w.running = false
		w.unsubscribe()
		w.cancel()
	}
	w.lifecycle.Unlock()
	w.inflight.Wait()
}

// UpdatePaths replaces the watched locations, revalidates the roots, and
// restarts the subscription when running.
func (w *Watcher) UpdatePaths(paths Paths) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	w.paths = paths
	w.mu.Unlock()

	if !w.running {
		w.refreshRoots()
		return nil
	}
	w.unsubscribe()
	return w.subscribe()
}

// ApplyConfig applies a new configuration snapshot: filing mode, settle
// delay, and watched paths.
func (w *Watcher) ApplyConfig(cfg *config.Config) error {
	w.mu.Lock()
	w.copyOnFile = cfg.CopyOnFile()
	if settle := cfg.DownloadSettle(); settle > 0 {
		w.settle = settle
	}
	w.mu.Unlock()
	return w.UpdatePaths(PathsFromConfig(cfg))
}

// Roots returns the current root states.
func (w *Watcher) Roots() []Root {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Root, len(w.roots))
	copy(out, w.roots)
	return out
}

// Suppress marks paths as written by sumcheck itself so the next create
// notification for each does not produce PdfFolderChanged.
func (w *Watcher) Suppress(paths ...string) {
	w.recentMu.Lock()
	defer w.recentMu.Unlock()
	now := time.Now()
	for _, p := range paths {
		w.recent[cleanPath(p)] = now
	}
}

// refreshRoots recomputes roots and reports the inaccessible ones.
func (w *Watcher) refreshRoots() []Root {
	w.mu.RLock()
	paths := w.paths
	w.mu.RUnlock()

	roots := computeRoots(paths)
	w.mu.Lock()
	w.roots = roots
	w.mu.Unlock()

	for _, root := range roots {
		if root.Accessible {
			continue
		}
		logging.WarnWithContext(w.logger, "watch root unavailable; skipping", "root_inaccessible",
			logging.String(logging.FieldRoot, root.Path),
			logging.String(logging.FieldRole, root.Role.String()),
			logging.Error(root.Err),
			logging.String(logging.FieldErrorHint, "create the directory or fix its permissions, then update the paths"),
			logging.String(logging.FieldImpact, "files in this location are not processed"),
		)
		w.handler.Problem(Problem{
			Kind:     ProblemRootInaccessible,
			Severity: SeverityWarning,
			Path:     root.Path,
			Err:      root.Err,
		})
	}
	return roots
}

// subscribe must be called with lifecycle held.
func (w *Watcher) subscribe() error {
	roots := w.refreshRoots()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	watched := 0
	for _, root := range roots {
		if !root.Accessible {
			continue
		}
		if root.Recursive {
			w.addRecursive(root.Path, false)
		} else {
			w.addWatch(root.Path)
		}
		watched++
	}
	if watched == 0 {
		logging.WarnWithContext(w.logger, "no accessible roots; nothing is being watched", "watch_idle",
			logging.String(logging.FieldErrorHint, "check paths.downloads_dir and paths.pdf_dir"),
			logging.String(logging.FieldImpact, "downloads are not filed"),
		)
	}

	done := make(chan struct{})
	w.loopDone = done
	go w.loop(fsw, done)

	w.logger.Info("watching",
		logging.Int("roots", watched),
		logging.String(logging.FieldEventType, "watch_started"),
	)
	return nil
}

// unsubscribe must be called with lifecycle held.
func (w *Watcher) unsubscribe() {
	w.mu.Lock()
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = fsw.Close()
	if w.loopDone != nil {
		<-w.loopDone
		w.loopDone = nil
	}
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if raw, ok := translate(ev); ok {
				w.Dispatch(raw)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "filesystem notification error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches if this repeats"),
				logging.String(logging.FieldImpact, "some file changes may be missed"),
			)
		}
	}
}

func translate(ev fsnotify.Event) (RawEvent, bool) {
	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(ev.Name)
		return RawEvent{Kind: Created, Path: ev.Name, IsDir: err == nil && info.IsDir()}, true
	case ev.Has(fsnotify.Write):
		return RawEvent{Kind: Modified, Path: ev.Name}, true
	case ev.Has(fsnotify.Remove):
		return RawEvent{Kind: Deleted, Path: ev.Name}, true
	case ev.Has(fsnotify.Rename):
		return RawEvent{Kind: Moved, Path: ev.Name}, true
	default:
		return RawEvent{}, false
	}
}

func (w *Watcher) addWatch(dir string) {
	w.mu.RLock()
	fsw := w.fsw
	w.mu.RUnlock()
	if fsw == nil {
		return
	}
	if err := fsw.Add(dir); err != nil {
		logging.WarnWithContext(w.logger, "failed to watch directory", "watch_add_failed",
			logging.String("dir", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check directory permissions and inotify limits"),
			logging.String(logging.FieldImpact, "files created in this directory are not seen"),
		)
	}
}

// addRecursive watches root and every directory beneath it. With replay set,
// files already present are dispatched as creates, covering files written
// before the new directory's watch was in place.
func (w *Watcher) addRecursive(root string, replay bool) {
	var existing []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			w.addWatch(path)
			return nil
		}
		if replay {
			existing = append(existing, path)
		}
		return nil
	})
	for _, path := range existing {
		w.Dispatch(RawEvent{Kind: Created, Path: path})
	}
}

type snapshot struct {
	downloads   string
	pdfDir      string
	projectFile string
	recursive   []string
}

func (w *Watcher) snapshot() snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var s snapshot
	for _, root := range w.roots {
		if !root.Accessible {
			continue
		}
		switch root.Role {
		case RoleDownloads:
			s.downloads = root.Path
		case RolePdfFolder:
			s.pdfDir = root.Path
		case RoleProjectFileDir:
			s.projectFile = cleanPath(w.paths.ProjectFile)
		}
		if root.Recursive {
			s.recursive = append(s.recursive, root.Path)
		}
	}
	return s
}

// Dispatch routes one raw notification. The fsnotify loop feeds it; callers
// may also inject events directly.
func (w *Watcher) Dispatch(ev RawEvent) {
	ev.Path = cleanPath(ev.Path)
	ev.Dest = cleanPath(ev.Dest)
	s := w.snapshot()

	if ev.Kind == Created && ev.IsDir {
		for _, root := range s.recursive {
			if within(root, ev.Path) {
				w.addRecursive(ev.Path, true)
				return
			}
		}
		return
	}

	target := ev.Path
	if ev.Kind == Moved && ev.Dest != "" {
		target = ev.Dest
	}

	if s.projectFile != "" && (target == s.projectFile || ev.Path == s.projectFile) {
		w.onProjectEvent(ev, s.projectFile)
		return
	}

	if strings.HasPrefix(filepath.Base(target), ".") || titlecache.IsSidecar(target) {
		return
	}

	if s.pdfDir != "" && (within(s.pdfDir, ev.Path) || within(s.pdfDir, ev.Dest)) {
		w.onPdfFolderEvent(ev)
		return
	}

	if s.downloads != "" && within(s.downloads, target) {
		if ev.Kind == Created || (ev.Kind == Moved && ev.Dest != "") {
			w.onDownload(target)
		}
	}
}

func (w *Watcher) onProjectEvent(ev RawEvent, projectFile string) {
	switch ev.Kind {
	case Modified, Created:
	case Moved:
		if ev.Dest != projectFile {
			return
		}
	default:
		return
	}
	if !w.debouncer.AllowProjectModify(projectFile) {
		w.logger.Debug("project change debounced", logging.String("path", projectFile))
		return
	}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		if !w.debouncer.ProjectFileSettled(projectFile) {
			logging.WarnWithContext(w.logger, "project file empty or missing after save; not reloading", "project_file_empty",
				logging.String("path", projectFile),
				logging.String(logging.FieldErrorHint, "the next save of the project file triggers a reload"),
				logging.String(logging.FieldImpact, "records stay at the previous snapshot"),
			)
			return
		}
		w.logger.Info("project file changed", logging.String("path", projectFile))
		w.handler.ProjectFileChanged(projectFile)
	}()
}

func (w *Watcher) onPdfFolderEvent(ev RawEvent) {
	name := ev.Path
	if ev.Kind == Moved && ev.Dest != "" {
		name = ev.Dest
	}
	if !naming.IsPDF(name) && !(ev.Kind == Moved && naming.IsPDF(ev.Path)) {
		return
	}
	switch ev.Kind {
	case Created:
		if w.consumeRecent(ev.Path) {
			return
		}
	case Moved:
		if !w.debouncer.AllowMove(ev.Path, ev.Dest) {
			w.logger.Debug("move debounced", logging.String("src", ev.Path), logging.String("dest", ev.Dest))
			return
		}
		own := w.consumeRecent(ev.Path)
		if ev.Dest != "" && w.consumeRecent(ev.Dest) {
			own = true
		}
		if own {
			return
		}
	case Deleted:
	default:
		return
	}
	w.logger.Debug("pdf folder changed",
		logging.String("path", ev.Path),
		logging.String("kind", ev.Kind.String()),
	)
	w.handler.PdfFolderChanged()
}

// consumeRecent reports whether path was written by the Watcher or marked via
// Suppress within the debounce window, forgetting it either way.
func (w *Watcher) consumeRecent(path string) bool {
	w.recentMu.Lock()
	defer w.recentMu.Unlock()
	at, ok := w.recent[path]
	if !ok {
		return false
	}
	delete(w.recent, path)
	return time.Since(at) < DefaultDebounceWindow*5
}

func (w *Watcher) forgetRecent(path string) {
	w.recentMu.Lock()
	delete(w.recent, path)
	w.recentMu.Unlock()
}

func (w *Watcher) onDownload(path string) {
	if !naming.IsPDF(path) {
		return
	}
	if w.scheme.IsTagged(path) {
		w.logger.Debug("tagged download ignored", logging.String(logging.FieldPDF, path))
		return
	}
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()
		w.processDownload(path)
	}()
}

func (w *Watcher) processDownload(src string) {
	ctx := logging.WithCorrelationID(w.ctx, uuid.NewString())
	logger := logging.WithContext(ctx, w.logger).With(logging.String(logging.FieldPDF, src))

	w.processing.Lock()
	dest, ok := w.fileDownload(src, logger)
	w.processing.Unlock()

	if ok {
		w.handler.PdfArrived(dest)
	}
}

// fileDownload runs with the processing lock held.
func (w *Watcher) fileDownload(src string, logger *slog.Logger) (string, bool) {
	info, err := os.Stat(src)
	if err != nil {
		logger.Debug("download vanished before processing")
		return "", false
	}
	if w.debouncer.RecentlyFiled(src, info) {
		logger.Debug("repeat notification for filed download ignored")
		return "", false
	}

	w.mu.RLock()
	settle := w.settle
	copyMode := w.copyOnFile
	w.mu.RUnlock()

	time.Sleep(settle)
	info, err = os.Stat(src)
	if err != nil {
		logger.Debug("download vanished during settle")
		return "", false
	}

	pdfDir := w.snapshot().pdfDir
	if pdfDir == "" {
		w.fail(src, errors.New("pdf folder unavailable"), logger)
		return "", false
	}

	name := filepath.Base(src)
	dest := filepath.Join(pdfDir, name)
	if fileutil.Exists(dest) {
		if copyMode && fileutil.SameSize(src, dest) {
			logger.Debug("download already filed", logging.String("destination", dest))
			w.debouncer.MarkFiled(src, info)
			return "", false
		}
		unique, err := fileutil.UniquePath(pdfDir, name)
		if err != nil {
			w.fail(src, err, logger)
			return "", false
		}
		dest = unique
	}

	op, verb := w.moveFile, "moved"
	if copyMode {
		op, verb = w.copyFile, "copied"
	}
	dest = cleanPath(dest)
	w.Suppress(dest)
	if err := op(src, dest); err != nil {
		w.forgetRecent(dest)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("download vanished during file operation", logging.Error(err))
			return "", false
		}
		w.fail(src, err, logger)
		return "", false
	}
	w.debouncer.MarkFiled(src, info)

	logger.Info("download "+verb+" to pdf folder",
		logging.String("destination", dest),
		logging.String(logging.FieldEventType, "download_filed"),
	)
	return dest, true
}

func (w *Watcher) fail(src string, err error, logger *slog.Logger) {
	logging.ErrorWithContext(logger, "download could not be filed; left in place", "download_file_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions on the pdf folder"),
	)
	w.handler.Problem(Problem{
		Kind:     ProblemFileOperation,
		Severity: SeverityError,
		Path:     src,
		Err:      err,
	})
}
