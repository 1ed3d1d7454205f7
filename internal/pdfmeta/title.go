package pdfmeta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"sumcheck/internal/logging"
)

// TitleStatus enumerates the outcomes of reading an embedded title.
type TitleStatus int

const (
	// TitleFound means the information dictionary carries a non-empty title.
	TitleFound TitleStatus = iota
	// TitleMissing means the file parsed but has no usable title.
	TitleMissing
	// TitleUnreadable means the file could not be opened or parsed.
	TitleUnreadable
	// TitleMalformed means the title entry exists but is not a string, or the
	// document structure broke while reading it.
	TitleMalformed
)

func (s TitleStatus) String() string {
	switch s {
	case TitleFound:
		return "found"
	case TitleMissing:
		return "missing"
	case TitleUnreadable:
		return "unreadable"
	case TitleMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("TitleStatus(%d)", int(s))
	}
}

// TitleResult is the outcome of EmbeddedTitle. Title is set only when Status
// is TitleFound; Err carries the cause for the failure statuses.
type TitleResult struct {
	Title  string
	Status TitleStatus
	Err    error
}

// OK reports whether a title was found.
func (r TitleResult) OK() bool { return r.Status == TitleFound }

// ErrStructure is wrapped into errors raised while walking a damaged file.
var ErrStructure = errors.New("pdf structure error")

// Reader reads PDF titles.
type Reader struct {
	logger *slog.Logger
}

// NewReader returns a Reader that logs through logger.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logging.NewComponentLogger(logger, "pdfmeta")}
}

// EmbeddedTitle returns the /Title entry of the document information
// dictionary.
func (r *Reader) EmbeddedTitle(path string) (result TitleResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = TitleResult{Status: TitleMalformed, Err: fmt.Errorf("%w: %v", ErrStructure, rec)}
		}
		r.logger.Debug("embedded title read",
			logging.String(logging.FieldPDF, path),
			logging.String("status", result.Status.String()),
		)
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return TitleResult{Status: TitleUnreadable, Err: err}
	}
	defer file.Close()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return TitleResult{Status: TitleMissing}
	}
	if info.Kind() != pdf.Dict {
		return TitleResult{Status: TitleMalformed, Err: fmt.Errorf("%w: info is %v", ErrStructure, info.Kind())}
	}
	value := info.Key("Title")
	switch value.Kind() {
	case pdf.Null:
		return TitleResult{Status: TitleMissing}
	case pdf.String:
	default:
		return TitleResult{Status: TitleMalformed, Err: fmt.Errorf("%w: title is %v", ErrStructure, value.Kind())}
	}
	title := strings.TrimSpace(value.Text())
	if title == "" {
		return TitleResult{Status: TitleMissing}
	}
	return TitleResult{Title: title, Status: TitleFound}
}

// ExtractTitle guesses a title from the text of the first page. It returns ""
// with a nil error when the page has no text that looks like a title.
func (r *Reader) ExtractTitle(ctx context.Context, path string) (title string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer func() {
		if rec := recover(); rec != nil {
			title, err = "", fmt.Errorf("%w: %v", ErrStructure, rec)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	if reader.NumPage() < 1 {
		return "", nil
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "", nil
	}
	box := mediaBox(page.V)
	title = titleFromGlyphs(page.Content().Text, box)
	r.logger.Debug("content title extracted",
		logging.String(logging.FieldPDF, path),
		logging.Bool("found", title != ""),
	)
	return title, nil
}

// pageBox is the vertical extent of a page in default user space.
type pageBox struct {
	bottom float64
	height float64
}

const defaultPageHeight = 792

func mediaBox(v pdf.Value) pageBox {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			lly := box.Index(1).Float64()
			ury := box.Index(3).Float64()
			if ury > lly {
				return pageBox{bottom: lly, height: ury - lly}
			}
		}
		v = v.Key("Parent")
	}
	return pageBox{height: defaultPageHeight}
}
