package match

import (
	"sumcheck/internal/metadata"
	"sumcheck/internal/textutil"
)

// Thresholds for each cascade step.
const (
	EmbeddedTitleThreshold = 0.9
	FilenameThreshold      = 0.6
	ContentTitleThreshold  = 0.9
)

// MinEmbeddedTitleLength is the normalized rune count at which an embedded
// title decides the match on its own.
const MinEmbeddedTitleLength = 8

// FindBestMatch scores candidate against every record title and returns the
// highest-scoring record at or above threshold. Ties go to the earliest
// record. An empty candidate never matches.
func FindBestMatch(candidate string, records []metadata.Record, threshold float64) (metadata.Record, float64, bool) {
	if candidate == "" {
		return metadata.Record{}, 0, false
	}
	normalized := textutil.Normalize(candidate)

	var (
		best      metadata.Record
		bestScore float64
		found     bool
	)
	for _, rec := range records {
		score := textutil.SequenceRatio(normalized, textutil.Normalize(rec.Title))
		if score < threshold {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = rec, score, true
		}
	}
	return best, bestScore, found
}
