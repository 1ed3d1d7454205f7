package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a journal entry.
type Kind string

const (
	KindArrived   Kind = "arrived"
	KindMatched   Kind = "matched"
	KindUnmatched Kind = "unmatched"
	KindProblem   Kind = "problem"
)

// Entry is one row of filing history.
type Entry struct {
	ID            int64
	Kind          Kind
	PDFPath       string
	FiledPath     string
	Identifier    string
	Title         string
	Via           string
	Score         float64
	Detail        string
	CorrelationID string
	CreatedAt     time.Time
}

// timestampLayout is fixed-width so stored timestamps compare lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultRecentLimit bounds Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// Record appends e. A zero CreatedAt is stamped with the current time.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if strings.TrimSpace(string(e.Kind)) == "" {
		return 0, fmt.Errorf("record entry: kind is required")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := j.execWithRetry(ctx,
		`INSERT INTO entries (
            kind, pdf_path, filed_path, identifier, title, via, score, detail, correlation_id, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind),
		e.PDFPath,
		nullableString(e.FiledPath),
		nullableString(e.Identifier),
		nullableString(e.Title),
		nullableString(e.Via),
		e.Score,
		nullableString(e.Detail),
		nullableString(e.CorrelationID),
		created.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := j.db.QueryContext(ensureContext(ctx),
		`SELECT id, kind, pdf_path, filed_path, identifier, title, via, score, detail, correlation_id, created_at
         FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForPDF returns every entry that mentions path as source or filed location,
// oldest first.
func (j *Journal) ForPDF(ctx context.Context, path string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ensureContext(ctx),
		`SELECT id, kind, pdf_path, filed_path, identifier, title, via, score, detail, correlation_id, created_at
         FROM entries WHERE pdf_path = ? OR filed_path = ? ORDER BY id`, path, path)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Counts returns the number of entries per kind.
func (j *Journal) Counts(ctx context.Context) (map[Kind]int, error) {
	rows, err := j.db.QueryContext(ensureContext(ctx), "SELECT kind, COUNT(*) FROM entries GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()
	counts := make(map[Kind]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Kind(kind)] = count
	}
	return counts, rows.Err()
}

// Prune deletes entries older than cutoff and reports how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.execWithRetry(ctx, "DELETE FROM entries WHERE created_at < ?", cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("prune entries: %w", err)
	}
	return res.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e                                                    Entry
			kind, created                                        string
			filed, identifier, title, via, detail, correlationID sql.NullString
		)
		if err := rows.Scan(&e.ID, &kind, &e.PDFPath, &filed, &identifier, &title, &via, &e.Score, &detail, &correlationID, &created); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.FiledPath = filed.String
		e.Identifier = identifier.String
		e.Title = title.String
		e.Via = via.String
		e.Detail = detail.String
		e.CorrelationID = correlationID.String
		if ts, err := time.Parse(timestampLayout, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
