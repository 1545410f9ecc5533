package techwatch

import (
	"sort"
	"time"
)

// FormatVersion is the current dataset envelope format.
const FormatVersion = "2.0"

// Metadata annotates a persisted dataset. Every field is derived from the
// articles; nothing here is authoritative on its own.
type Metadata struct {
	GeneratedAt   time.Time
	TotalArticles int
	Sources       []string
	FormatVersion string
	Earliest      time.Time
	Latest        time.Time
}

// Envelope is the persisted unit: the full current dataset plus its
// metadata. A fresh envelope supersedes the previous one atomically on
// each completed run.
type Envelope struct {
	Metadata Metadata
	Articles []Post
}

// BuildMetadata recomputes envelope metadata from a set of articles.
// Sources come out sorted; earliest/latest stay zero when no article
// carries a date.
func BuildMetadata(articles []Post, generatedAt time.Time) Metadata {
	meta := Metadata{
		GeneratedAt:   generatedAt,
		TotalArticles: len(articles),
		FormatVersion: FormatVersion,
	}
	seen := make(map[string]struct{}, len(articles))
	for _, p := range articles {
		if _, ok := seen[p.Source]; !ok {
			seen[p.Source] = struct{}{}
			meta.Sources = append(meta.Sources, p.Source)
		}
		if p.Date.IsZero() {
			continue
		}
		if meta.Earliest.IsZero() || p.Date.Before(meta.Earliest) {
			meta.Earliest = p.Date
		}
		if meta.Latest.IsZero() || p.Date.After(meta.Latest) {
			meta.Latest = p.Date
		}
	}
	sort.Strings(meta.Sources)
	return meta
}

// EmptyEnvelope returns the envelope a reader sees before any run has
// ever persisted data.
func EmptyEnvelope() Envelope {
	return Envelope{Metadata: Metadata{FormatVersion: FormatVersion}}
}
