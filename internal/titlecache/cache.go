// Package titlecache persists content-title extraction results in sidecar
// files next to each PDF.
//
// A sidecar <dir>/<basename>.title holds the extracted title. An empty sidecar
// records that extraction ran and found nothing, so the expensive extraction
// is attempted at most once per PDF. Sidecars are written atomically; a reader
// never observes a partial title.
package titlecache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sumcheck/internal/fileutil"
	"sumcheck/internal/logging"
)

// Extension is the sidecar file suffix.
const Extension = ".title"

// Cache reads and writes title sidecars.
type Cache struct {
	logger *slog.Logger
}

// New returns a Cache that logs through logger.
func New(logger *slog.Logger) *Cache {
	return &Cache{logger: logging.NewComponentLogger(logger, "titlecache")}
}

// SidecarPath returns the sidecar location for pdfPath.
func SidecarPath(pdfPath string) string {
	base := filepath.Base(pdfPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(pdfPath), stem+Extension)
}

// IsSidecar reports whether path names a title sidecar.
func IsSidecar(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}

// Read returns the cached title for pdfPath. The bool reports whether a
// sidecar exists; an existing sidecar may hold an empty title.
func (c *Cache) Read(pdfPath string) (string, bool, error) {
	data, err := os.ReadFile(SidecarPath(pdfPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read title sidecar: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Write stores title as the sidecar for pdfPath. An empty title marks the PDF
// as already examined.
func (c *Cache) Write(pdfPath, title string) error {
	sidecar := SidecarPath(pdfPath)
	if err := fileutil.WriteFileAtomic(sidecar, []byte(strings.TrimSpace(title)), 0o644); err != nil {
		return fmt.Errorf("write title sidecar: %w", err)
	}
	c.logger.Debug("title sidecar written",
		logging.String(logging.FieldPDF, pdfPath),
		logging.Bool("empty", strings.TrimSpace(title) == ""),
	)
	return nil
}

// Invalidate removes the sidecar for pdfPath. A missing sidecar is not an
// error.
func (c *Cache) Invalidate(pdfPath string) error {
	err := os.Remove(SidecarPath(pdfPath))
	if err == nil {
		c.logger.Debug("title sidecar removed", logging.String(logging.FieldPDF, pdfPath))
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove title sidecar: %w", err)
}
