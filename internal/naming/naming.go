// Package naming builds and recognizes the identifier-tagged filenames given
// to filed PDFs.
//
// A tagged name is <prefix>_<identifier>_<original>, for example
// PMID_12345_smith2021.pdf. Names written by the older downloader,
// PMID:12345-downloaded.pdf, are recognized as tagged too.
package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"sumcheck/internal/textutil"
)

// DefaultPrefix is the identifier prefix used when none is configured.
const DefaultPrefix = "PMID"

var (
	// ErrNoIdentifier is returned when a filename carries no identifier tag.
	ErrNoIdentifier = errors.New("naming: filename has no identifier tag")
	// ErrInvalidIdentifier is returned when an identifier has no filename-safe characters.
	ErrInvalidIdentifier = errors.New("naming: identifier is empty after sanitizing")
)

// Scheme tags and parses filenames for one identifier prefix.
type Scheme struct {
	prefix string
	tagged *regexp.Regexp
	legacy *regexp.Regexp
}

// NewScheme returns a Scheme for prefix. An empty prefix selects DefaultPrefix.
func NewScheme(prefix string) *Scheme {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	quoted := regexp.QuoteMeta(prefix)
	return &Scheme{
		prefix: prefix,
		tagged: regexp.MustCompile(`(?i)^` + quoted + `_([A-Za-z0-9.\-]+)_`),
		legacy: regexp.MustCompile(`(?i)^` + quoted + `:([A-Za-z0-9.]+)-`),
	}
}

// Prefix returns the configured identifier prefix.
func (s *Scheme) Prefix() string { return s.prefix }

// IsTagged reports whether the base name of path already carries an
// identifier tag in either the current or the legacy form.
func (s *Scheme) IsTagged(path string) bool {
	_, err := s.Identifier(path)
	return err == nil
}

// Identifier extracts the identifier from a tagged filename.
func (s *Scheme) Identifier(path string) (string, error) {
	base := filepath.Base(path)
	if m := s.tagged.FindStringSubmatch(base); m != nil {
		return m[1], nil
	}
	if m := s.legacy.FindStringSubmatch(base); m != nil {
		return m[1], nil
	}
	return "", ErrNoIdentifier
}

// TaggedName returns the tagged form of the base name of path. An already
// tagged name is re-tagged from its original portion so a PDF never carries
// two identifiers.
func (s *Scheme) TaggedName(path, identifier string) (string, error) {
	id := textutil.SanitizeIdentifier(identifier)
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, identifier)
	}
	original := s.Original(path)
	if original == "" {
		original = "document.pdf"
	}
	return s.prefix + "_" + id + "_" + original, nil
}

// Original strips any identifier tag from the base name of path and sanitizes
// the remainder.
func (s *Scheme) Original(path string) string {
	base := filepath.Base(path)
	if loc := s.tagged.FindStringIndex(base); loc != nil {
		base = base[loc[1]:]
	} else if loc := s.legacy.FindStringIndex(base); loc != nil {
		base = base[loc[1]:]
	}
	return textutil.SanitizeFileName(base)
}

// IsPDF reports whether path has a .pdf extension, ignoring case.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// FilenameCandidate turns a PDF filename into a title candidate: the extension
// is stripped and underscores and hyphens become spaces.
func FilenameCandidate(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.NewReplacer("_", " ", "-", " ").Replace(stem)
}
