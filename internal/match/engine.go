package match

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"sumcheck/internal/logging"
	"sumcheck/internal/metadata"
	"sumcheck/internal/naming"
	"sumcheck/internal/pdfmeta"
	"sumcheck/internal/textutil"
)

// Via names the cascade step that produced a match.
type Via string

const (
	ViaNone          Via = ""
	ViaMetadataTitle Via = "metadata_title"
	ViaFilename      Via = "filename"
	ViaContentTitle  Via = "content_title"
)

// Result is the outcome of one Match call.
type Result struct {
	Record  metadata.Record
	Score   float64
	Via     Via
	Matched bool
}

// MetadataReader reads the embedded title of a PDF.
type MetadataReader interface {
	EmbeddedTitle(path string) pdfmeta.TitleResult
}

// TitleExtractor guesses a title from a PDF's visible text.
type TitleExtractor interface {
	ExtractTitle(ctx context.Context, path string) (string, error)
}

// TitleCache persists content-title extraction results per PDF.
type TitleCache interface {
	Read(pdfPath string) (string, bool, error)
	Write(pdfPath, title string) error
}

// Engine runs the matching cascade. It is safe for concurrent use.
type Engine struct {
	meta      MetadataReader
	extractor TitleExtractor
	cache     TitleCache
	scheme    *naming.Scheme
	logger    *slog.Logger
	flight    singleflight.Group
}

// NewEngine wires an Engine. A nil scheme uses the default identifier prefix.
func NewEngine(meta MetadataReader, extractor TitleExtractor, cache TitleCache, scheme *naming.Scheme, logger *slog.Logger) *Engine {
	if scheme == nil {
		scheme = naming.NewScheme("")
	}
	return &Engine{
		meta:      meta,
		extractor: extractor,
		cache:     cache,
		scheme:    scheme,
		logger:    logging.NewComponentLogger(logger, "match"),
	}
}

// Match returns the record pdfPath represents, if any. Match never fails: read
// errors and panics inside the cascade become "no match".
func (e *Engine) Match(ctx context.Context, pdfPath string, records []metadata.Record) (result Result) {
	logger := logging.WithContext(ctx, e.logger).With(logging.String(logging.FieldPDF, pdfPath))
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(logger, "match panicked; treating pdf as unmatched", "match_panic",
				logging.String("panic", fmt.Sprint(rec)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "inspect the pdf; it may be damaged"),
			)
			result = Result{}
		}
	}()

	if res, decided := e.byEmbeddedTitle(pdfPath, records, logger); decided {
		return res
	}
	if res, ok := e.byFilename(pdfPath, records, logger); ok {
		return res
	}
	if res, ok := e.byContentTitle(ctx, pdfPath, records, logger); ok {
		return res
	}
	logger.Info("no matching record", logging.Args(logging.DecisionAttrs("match", "unmatched", "cascade exhausted")...)...)
	return Result{}
}

// byEmbeddedTitle reports decided=true when the embedded title is long enough
// to settle the outcome, whether or not it matched.
func (e *Engine) byEmbeddedTitle(pdfPath string, records []metadata.Record, logger *slog.Logger) (Result, bool) {
	if e.meta == nil {
		return Result{}, false
	}
	title := e.meta.EmbeddedTitle(pdfPath)
	if !title.OK() {
		if title.Status != pdfmeta.TitleMissing {
			logger.Debug("embedded title unavailable",
				logging.String("status", title.Status.String()),
				logging.Error(title.Err),
			)
		}
		return Result{}, false
	}
	if utf8.RuneCountInString(textutil.Normalize(title.Title)) < MinEmbeddedTitleLength {
		logger.Debug("embedded title too short to trust", logging.String("title", title.Title))
		return Result{}, false
	}
	rec, score, ok := FindBestMatch(title.Title, records, EmbeddedTitleThreshold)
	if !ok {
		attrs := append(logging.DecisionAttrs("match", "unmatched", "embedded title is authoritative"),
			logging.String("title", title.Title))
		logger.Info("embedded title matched no record", logging.Args(attrs...)...)
		return Result{}, true
	}
	return e.matched(rec, score, ViaMetadataTitle, logger), true
}

func (e *Engine) byFilename(pdfPath string, records []metadata.Record, logger *slog.Logger) (Result, bool) {
	candidate := naming.FilenameCandidate(pdfPath)
	rec, score, ok := FindBestMatch(candidate, records, FilenameThreshold)
	if !ok {
		return Result{}, false
	}
	return e.matched(rec, score, ViaFilename, logger), true
}

func (e *Engine) byContentTitle(ctx context.Context, pdfPath string, records []metadata.Record, logger *slog.Logger) (Result, bool) {
	if e.cache == nil {
		return Result{}, false
	}
	title, cached, err := e.cache.Read(pdfPath)
	if err != nil {
		logging.WarnWithContext(logger, "title sidecar unreadable; skipping content match", "title_cache_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the .title file next to the pdf"),
			logging.String(logging.FieldImpact, "pdf stays unmatched until the sidecar is readable"),
		)
		return Result{}, false
	}
	if !cached {
		if e.scheme.IsTagged(pdfPath) {
			return Result{}, false
		}
		title = e.extract(ctx, pdfPath, logger)
	}
	if title == "" {
		return Result{}, false
	}
	rec, score, ok := FindBestMatch(title, records, ContentTitleThreshold)
	if !ok {
		return Result{}, false
	}
	return e.matched(rec, score, ViaContentTitle, logger), true
}

// extract runs the extractor at most once per path at a time and records the
// outcome, empty on failure, so later calls never extract again.
func (e *Engine) extract(ctx context.Context, pdfPath string, logger *slog.Logger) string {
	v, _, _ := e.flight.Do(pdfPath, func() (any, error) {
		if title, cached, err := e.cache.Read(pdfPath); err == nil && cached {
			return title, nil
		}
		var title string
		if e.extractor != nil {
			extracted, err := e.safeExtract(ctx, pdfPath)
			if err != nil {
				logger.Debug("content title extraction failed", logging.Error(err))
			} else {
				title = textutil.CollapseSpace(extracted)
			}
		}
		if err := e.cache.Write(pdfPath, title); err != nil {
			logging.WarnWithContext(logger, "title sidecar write failed", "title_cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the pdf folder is writable"),
				logging.String(logging.FieldImpact, "content extraction will repeat for this pdf"),
			)
		}
		return title, nil
	})
	title, _ := v.(string)
	return title
}

func (e *Engine) safeExtract(ctx context.Context, pdfPath string) (title string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			title, err = "", fmt.Errorf("title extractor panicked: %v", rec)
		}
	}()
	return e.extractor.ExtractTitle(ctx, pdfPath)
}

func (e *Engine) matched(rec metadata.Record, score float64, via Via, logger *slog.Logger) Result {
	attrs := append(logging.DecisionAttrs("match", "matched", string(via)),
		logging.String(logging.FieldIdentifier, rec.Identifier),
		logging.Float64("score", score),
	)
	logger.Info("pdf matched", logging.Args(attrs...)...)
	return Result{Record: rec, Score: score, Via: via, Matched: true}
}
