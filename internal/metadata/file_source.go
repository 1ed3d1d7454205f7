package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoSourceFile is returned when a FileSource has no path configured.
var ErrNoSourceFile = errors.New("metadata: no records file configured")

// FileSource loads records from a YAML or JSON file. The document is either a
// list of records or a mapping with a "records" list. The legacy "pmid" key is
// accepted in place of "identifier".
type FileSource struct {
	Path string
}

type fileRecord struct {
	Title      string   `yaml:"title"`
	Identifier string   `yaml:"identifier"`
	PMID       string   `yaml:"pmid"`
	Authors    []string `yaml:"authors"`
	Year       int      `yaml:"year"`
}

type fileDocument struct {
	Records []fileRecord `yaml:"records"`
}

// Load reads and parses the file. Entries without a title or identifier are
// skipped.
func (s FileSource) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return nil, ErrNoSourceFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	entries, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parse records %s: %w", path, err)
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.Identifier)
		if id == "" {
			id = strings.TrimSpace(entry.PMID)
		}
		title := strings.TrimSpace(entry.Title)
		if id == "" || title == "" {
			continue
		}
		records = append(records, Record{
			Title:      title,
			Identifier: id,
			Authors:    entry.Authors,
			Year:       entry.Year,
		})
	}
	return records, nil
}

func decodeRecords(data []byte) ([]fileRecord, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []fileRecord
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var doc fileDocument
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		return doc.Records, nil
	default:
		return nil, fmt.Errorf("unexpected document kind %d", root.Kind)
	}
}
