// Package metadata defines the bibliographic records PDFs are matched against
// and the sources that load them.
package metadata

import (
	"context"
	"strings"
)

// Record is one bibliographic entry. Records are immutable snapshot values;
// consumers only read them.
type Record struct {
	Title      string   `yaml:"title" json:"title"`
	Identifier string   `yaml:"identifier" json:"identifier"`
	Authors    []string `yaml:"authors,omitempty" json:"authors,omitempty"`
	Year       int      `yaml:"year,omitempty" json:"year,omitempty"`
}

// Source supplies the current record snapshot.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Record, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]Record, error) { return f(ctx) }

// Static is a Source that always returns the same records.
type Static []Record

// Load returns a copy of the records.
func (s Static) Load(context.Context) ([]Record, error) {
	out := make([]Record, len(s))
	copy(out, s)
	return out, nil
}

// FindByIdentifier returns the first record whose identifier equals id after
// trimming.
func FindByIdentifier(records []Record, id string) (Record, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, false
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.Identifier) == id {
			return rec, true
		}
	}
	return Record{}, false
}
