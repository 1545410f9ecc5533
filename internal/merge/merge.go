// Package merge folds freshly crawled posts into an existing archive
// without ever duplicating an article.
package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Merger deduplicates and orders the combined post set. Identity is the
// (source, normalized URL) pair, so a re-crawl of an unchanged window is
// a no-op on the archive.
type Merger struct {
	clock  techwatch.Clock
	logger *zap.Logger
}

func New(clock techwatch.Clock, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{clock: clock, logger: logger}
}

// Merge returns a new envelope holding the union of existing articles
// and fresh posts, plus the count of genuinely new articles. Ordering
// is date descending, then source, then URL, so output is stable
// across runs.
func (m *Merger) Merge(existing techwatch.Envelope, fresh []techwatch.Post) (techwatch.Envelope, int) {
	seen := make(map[string]int, len(existing.Articles)+len(fresh))
	merged := make([]techwatch.Post, 0, len(existing.Articles)+len(fresh))

	for _, p := range existing.Articles {
		key := p.Key()
		if _, dup := seen[key]; dup {
			// Legacy archives written before dedupe may carry repeats.
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, p)
	}

	added := 0
	for _, p := range fresh {
		key := p.Key()
		if idx, dup := seen[key]; dup {
			// The freshly crawled copy wins so upstream corrections
			// (retitles, edited summaries) propagate.
			merged[idx] = p
			continue
		}
		seen[key] = len(merged)
		merged = append(merged, p)
		added++
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.URL < b.URL
	})

	return techwatch.Envelope{
		Metadata: techwatch.BuildMetadata(merged, m.clock.Now()),
		Articles: merged,
	}, added
}
