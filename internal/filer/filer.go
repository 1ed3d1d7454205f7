package filer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"sumcheck/internal/fileutil"
	"sumcheck/internal/journal"
	"sumcheck/internal/logging"
	"sumcheck/internal/match"
	"sumcheck/internal/metadata"
	"sumcheck/internal/naming"
	"sumcheck/internal/watcher"
)

// ViaHint marks a result forced by a manual identifier hint.
const ViaHint match.Via = "hint"

var (
	// ErrAlreadyTagged is returned by File for a PDF that already carries an
	// identifier tag.
	ErrAlreadyTagged = errors.New("pdf is already tagged")
	// ErrNotPDF is returned by File for a path without a .pdf extension.
	ErrNotPDF = errors.New("not a pdf")
)

// Matcher decides which record a PDF represents.
type Matcher interface {
	Match(ctx context.Context, pdfPath string, records []metadata.Record) match.Result
}

// Invalidator drops cached extraction results for a PDF.
type Invalidator interface {
	Invalidate(pdfPath string) error
}

// Recorder persists filing history.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// Suppressor is told about renames the Filer performs so they are not
// reported back as folder changes.
type Suppressor interface {
	Suppress(paths ...string)
}

// Options wires a Filer. Matcher and Source are required.
type Options struct {
	Matcher    Matcher
	Source     metadata.Source
	Cache      Invalidator
	Journal    Recorder
	Scheme     *naming.Scheme
	PDFDir     string
	AutoRename bool
	Logger     *slog.Logger
	// Move renames a PDF to its tagged name. Nil selects fileutil.MoveFile.
	Move func(src, dst string) error
}

// Outcome describes what File did with one PDF.
type Outcome struct {
	Source  string
	Filed   string
	Result  match.Result
	Renamed bool
}

// Summary totals one Scan.
type Summary struct {
	Scanned   int
	Matched   int
	Unmatched int
	Failed    int
}

// Filer implements watcher.Handler.
type Filer struct {
	matcher    Matcher
	source     metadata.Source
	cache      Invalidator
	journal    Recorder
	scheme     *naming.Scheme
	autoRename bool
	logger     *slog.Logger
	move       func(src, dst string) error

	// filing serializes File so an arrival and a rescan never rename the
	// same PDF at once.
	filing sync.Mutex

	mu         sync.RWMutex
	records    []metadata.Record
	pdfDir     string
	hint       string
	suppressor Suppressor
	base       context.Context

	rescan chan struct{}
}

var _ watcher.Handler = (*Filer)(nil)

// New returns a Filer with an empty record snapshot. Call Reload to populate it.
func New(opts Options) *Filer {
	scheme := opts.Scheme
	if scheme == nil {
		scheme = naming.NewScheme("")
	}
	move := opts.Move
	if move == nil {
		move = fileutil.MoveFile
	}
	return &Filer{
		move:       move,
		matcher:    opts.Matcher,
		source:     opts.Source,
		cache:      opts.Cache,
		journal:    opts.Journal,
		scheme:     scheme,
		autoRename: opts.AutoRename,
		logger:     logging.NewComponentLogger(opts.Logger, "filer"),
		pdfDir:     opts.PDFDir,
		base:       context.Background(),
		rescan:     make(chan struct{}, 1),
	}
}

// SetSuppressor registers the component notified of the Filer's own renames.
func (f *Filer) SetSuppressor(s Suppressor) {
	f.mu.Lock()
	f.suppressor = s
	f.mu.Unlock()
}

// SetSource replaces the record source. The snapshot is unchanged until the
// next Reload.
func (f *Filer) SetSource(source metadata.Source) {
	f.mu.Lock()
	f.source = source
	f.mu.Unlock()
}

// SetPDFDir changes the folder Scan walks.
func (f *Filer) SetPDFDir(dir string) {
	f.mu.Lock()
	f.pdfDir = dir
	f.mu.Unlock()
}

// SetHint force-associates the next filed PDF with identifier. An empty
// identifier clears the hint.
func (f *Filer) SetHint(identifier string) {
	f.mu.Lock()
	f.hint = strings.TrimSpace(identifier)
	f.mu.Unlock()
}

// Hint returns the pending hint, if any.
func (f *Filer) Hint() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hint
}

func (f *Filer) takeHint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	hint := f.hint
	f.hint = ""
	return hint
}

// restoreHint puts back a hint whose filing failed, unless a newer one was
// set in the meantime.
func (f *Filer) restoreHint(hint string) {
	if hint == "" {
		return
	}
	f.mu.Lock()
	if f.hint == "" {
		f.hint = hint
	}
	f.mu.Unlock()
}

// Records returns the current record snapshot.
func (f *Filer) Records() []metadata.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.records
}

// Reload replaces the record snapshot from the source. On failure the
// previous snapshot stays in effect.
func (f *Filer) Reload(ctx context.Context) error {
	f.mu.RLock()
	source := f.source
	f.mu.RUnlock()
	if source == nil {
		return errors.New("no record source configured")
	}
	records, err := source.Load(ctx)
	if err != nil {
		logging.WarnWithContext(f.logger, "record reload failed; keeping previous snapshot", "records_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.records_file and its YAML/JSON syntax"),
			logging.String(logging.FieldImpact, "matching uses the previous records"),
		)
		return fmt.Errorf("load records: %w", err)
	}
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
	f.logger.Info("records loaded",
		logging.Int("records", len(records)),
		logging.String(logging.FieldEventType, "records_loaded"),
	)
	return nil
}

// File matches one PDF and, on a match, renames it to its tagged name. A
// pending hint takes precedence over the match cascade and is consumed.
func (f *Filer) File(ctx context.Context, path string) (Outcome, error) {
	return f.file(ctx, path, true)
}

func (f *Filer) file(ctx context.Context, path string, useHint bool) (Outcome, error) {
	if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
		ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	}
	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldPDF, path))
	out := Outcome{Source: path}

	if !naming.IsPDF(path) {
		return out, fmt.Errorf("%s: %w", path, ErrNotPDF)
	}
	if f.scheme.IsTagged(path) {
		return out, fmt.Errorf("%s: %w", path, ErrAlreadyTagged)
	}

	f.filing.Lock()
	defer f.filing.Unlock()

	if _, err := os.Stat(path); err != nil {
		return out, err
	}

	records := f.Records()
	hint := ""
	if useHint {
		hint = f.takeHint()
	}
	if hint != "" {
		rec, ok := metadata.FindByIdentifier(records, hint)
		if !ok {
			rec = metadata.Record{Identifier: hint}
		}
		out.Result = match.Result{Record: rec, Score: 1, Via: ViaHint, Matched: true}
		attrs := append(logging.DecisionAttrs("filing", "matched", "manual hint"),
			logging.String(logging.FieldIdentifier, hint))
		logger.Info("hint applied", logging.Args(attrs...)...)
	} else {
		out.Result = f.matcher.Match(ctx, path, records)
	}

	if !out.Result.Matched {
		f.record(ctx, journal.Entry{Kind: journal.KindUnmatched, PDFPath: path})
		return out, nil
	}
	if !f.autoRename {
		f.recordMatch(ctx, out)
		return out, nil
	}

	dest, err := f.rename(path, out.Result.Record.Identifier)
	if err != nil {
		logging.ErrorWithContext(logger, "rename failed; pdf left under its original name", "rename_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the pdf folder"),
		)
		f.record(ctx, journal.Entry{Kind: journal.KindProblem, PDFPath: path, Detail: err.Error()})
		f.restoreHint(hint)
		return out, err
	}
	out.Filed = dest
	out.Renamed = true
	if f.cache != nil {
		if err := f.cache.Invalidate(path); err != nil {
			logger.Debug("sidecar cleanup failed", logging.Error(err))
		}
	}
	logger.Info("pdf filed",
		logging.String("destination", dest),
		logging.String(logging.FieldIdentifier, out.Result.Record.Identifier),
		logging.String("via", string(out.Result.Via)),
		logging.String(logging.FieldEventType, "pdf_filed"),
	)
	f.recordMatch(ctx, out)
	return out, nil
}

func (f *Filer) rename(path, identifier string) (string, error) {
	name, err := f.scheme.TaggedName(path, identifier)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	dest := filepath.Join(dir, name)
	if fileutil.Exists(dest) {
		if dest, err = fileutil.UniquePath(dir, name); err != nil {
			return "", err
		}
	}

	f.mu.RLock()
	suppressor := f.suppressor
	f.mu.RUnlock()
	if suppressor != nil {
		suppressor.Suppress(path, dest)
	}
	if err := f.move(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Filer) recordMatch(ctx context.Context, out Outcome) {
	f.record(ctx, journal.Entry{
		Kind:       journal.KindMatched,
		PDFPath:    out.Source,
		FiledPath:  out.Filed,
		Identifier: out.Result.Record.Identifier,
		Title:      out.Result.Record.Title,
		Via:        string(out.Result.Via),
		Score:      out.Result.Score,
	})
}

func (f *Filer) record(ctx context.Context, e journal.Entry) {
	if f.journal == nil {
		return
	}
	if id, ok := logging.CorrelationIDFromContext(ctx); ok {
		e.CorrelationID = id
	}
	if _, err := f.journal.Record(ctx, e); err != nil {
		logging.WarnWithContext(f.logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldPDF, e.PDFPath),
			logging.String(logging.FieldErrorHint, "check journal.path and free disk space"),
			logging.String(logging.FieldImpact, "history for this pdf is incomplete"),
		)
	}
}

// Scan files every untagged PDF under the PDF folder. Hints are not consumed
// by scans.
func (f *Filer) Scan(ctx context.Context) (Summary, error) {
	f.mu.RLock()
	root := f.pdfDir
	f.mu.RUnlock()

	var summary Summary
	if strings.TrimSpace(root) == "" {
		return summary, errors.New("pdf folder not configured")
	}

	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !naming.IsPDF(path) || f.scheme.IsTagged(path) {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("walk pdf folder: %w", err)
	}

	ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		out, err := f.file(ctx, path, false)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			summary.Scanned--
		case err != nil:
			summary.Failed++
		case out.Result.Matched:
			summary.Matched++
		default:
			summary.Unmatched++
		}
	}
	f.logger.Info("scan complete",
		logging.Int("scanned", summary.Scanned),
		logging.Int("matched", summary.Matched),
		logging.Int("unmatched", summary.Unmatched),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "scan_complete"),
	)
	return summary, nil
}

// RequestScan schedules a rescan for Run. Requests made while one is already
// pending are merged.
func (f *Filer) RequestScan() {
	select {
	case f.rescan <- struct{}{}:
	default:
	}
}

// Run performs requested rescans until ctx is done.
func (f *Filer) Run(ctx context.Context) error {
	f.mu.Lock()
	f.base = ctx
	f.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-f.rescan:
			if _, err := f.Scan(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(f.logger, "rescan failed", "scan_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check that paths.pdf_dir exists and is readable"),
					logging.String(logging.FieldImpact, "untagged pdfs stay unfiled until the next change"),
				)
			}
		}
	}
}

func (f *Filer) context() context.Context {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.base
}

// PdfArrived files a PDF the watcher just moved into the PDF folder.
func (f *Filer) PdfArrived(path string) {
	ctx := f.context()
	f.record(ctx, journal.Entry{Kind: journal.KindArrived, PDFPath: path})
	if _, err := f.File(ctx, path); err != nil && !errors.Is(err, ErrAlreadyTagged) {
		f.logger.Debug("arrival not filed", logging.String(logging.FieldPDF, path), logging.Error(err))
	}
}

// ProjectFileChanged reloads records and rescans, since previously unmatched
// PDFs may match the new snapshot.
func (f *Filer) ProjectFileChanged(string) {
	if err := f.Reload(f.context()); err != nil {
		return
	}
	f.RequestScan()
}

// PdfFolderChanged schedules a rescan.
func (f *Filer) PdfFolderChanged() {
	f.RequestScan()
}

// Problem logs and journals a watcher problem.
func (f *Filer) Problem(p watcher.Problem) {
	attrs := []logging.Attr{
		logging.String("kind", p.Kind.String()),
		logging.String("path", p.Path),
		logging.Error(p.Err),
	}
	switch p.Kind {
	case watcher.ProblemRootInaccessible:
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, "create the directory or fix its permissions"),
			logging.String(logging.FieldImpact, "this location is not watched"),
		)
	case watcher.ProblemFileOperation:
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, "check free space and permissions on the pdf folder"),
			logging.String(logging.FieldImpact, "the download stays where it is"),
		)
	}
	if p.Severity == watcher.SeverityError {
		logging.ErrorWithContext(f.logger, "watcher problem", "watcher_problem", attrs...)
	} else {
		logging.WarnWithContext(f.logger, "watcher problem", "watcher_problem", attrs...)
	}
	f.record(f.context(), journal.Entry{Kind: journal.KindProblem, PDFPath: p.Path, Detail: p.Error()})
}
