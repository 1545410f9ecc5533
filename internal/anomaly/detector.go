// Package anomaly tells "this source legitimately had nothing new" apart
// from "this source's parser is silently broken". Its findings are
// advisories for operators; they never block aggregation or persistence.
package anomaly

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// Thresholds are the heuristic knobs. They are policy, not semantics;
// all of them come from configuration.
type Thresholds struct {
	// MinHistoryRuns is how many recorded runs a source needs before
	// yield comparisons are trusted.
	MinHistoryRuns int
	// MaxConsecutiveEmpty flags a source once it has been empty this
	// many runs in a row.
	MaxConsecutiveEmpty int
	// LowYieldRatio flags a non-empty run yielding less than this
	// fraction of the recent average.
	LowYieldRatio float64
}

// DefaultThresholds mirror the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHistoryRuns:      3,
		MaxConsecutiveEmpty: 2,
		LowYieldRatio:       0.25,
	}
}

// Detector inspects per-source yields against recent history.
type Detector struct {
	history techwatch.HistoryStore
	thr     Thresholds
	logger  *zap.Logger
}

// New builds a Detector on top of a history store.
func New(history techwatch.HistoryStore, thr Thresholds, logger *zap.Logger) *Detector {
	if thr.MinHistoryRuns <= 0 {
		thr.MinHistoryRuns = 1
	}
	return &Detector{history: history, thr: thr, logger: logger}
}

// Probe is the fallback yield of a source: how many posts an unfiltered
// fetch produced, when a probe ran at all.
type Probe struct {
	Ran   bool
	Posts int
}

// Inspect evaluates one source's yield for the run. found is the number
// of in-range posts the crawler returned.
func (d *Detector) Inspect(ctx context.Context, source string, r techwatch.DateRange, found int, probe Probe) []techwatch.Advisory {
	var advisories []techwatch.Advisory

	recent := d.recentYields(ctx, source)

	if found == 0 {
		if n := leadingEmpty(recent); n+1 >= d.thr.MaxConsecutiveEmpty && d.thr.MaxConsecutiveEmpty > 0 {
			advisories = append(advisories, techwatch.Advisory{
				Source: source,
				Kind:   techwatch.AdvisoryConsecutiveEmpty,
				Message: fmt.Sprintf("empty for %d consecutive runs including this one, check the source's markup",
					n+1),
			})
		}
		if avg := averageYield(recent, d.thr.MinHistoryRuns); avg > 0 {
			advisories = append(advisories, techwatch.Advisory{
				Source: source,
				Kind:   techwatch.AdvisorySuspectedParseFailure,
				Message: fmt.Sprintf("no posts for %s but the source averaged %.1f posts over recent runs",
					r, avg),
			})
		}
		if probe.Ran && probe.Posts > 0 {
			advisories = append(advisories, techwatch.Advisory{
				Source: source,
				Kind:   techwatch.AdvisoryFallbackMismatch,
				Message: fmt.Sprintf("unfiltered probe found %d posts but none matched %s, check date parsing",
					probe.Posts, r),
			})
		}
		return advisories
	}

	if avg := averageYield(recent, d.thr.MinHistoryRuns); avg > 0 && float64(found) < avg*d.thr.LowYieldRatio {
		advisories = append(advisories, techwatch.Advisory{
			Source: source,
			Kind:   techwatch.AdvisoryLowYield,
			Message: fmt.Sprintf("%d posts is well below the recent average of %.1f, check the selectors",
				found, avg),
		})
	}
	return advisories
}

func (d *Detector) recentYields(ctx context.Context, source string) []techwatch.YieldRecord {
	if d.history == nil {
		return nil
	}
	limit := d.thr.MinHistoryRuns
	if d.thr.MaxConsecutiveEmpty > limit {
		limit = d.thr.MaxConsecutiveEmpty
	}
	recs, err := d.history.RecentYields(ctx, source, limit)
	if err != nil {
		d.logger.Warn("yield history unavailable, skipping comparisons",
			zap.String("source", source), zap.Error(err))
		return nil
	}
	return recs
}

// leadingEmpty counts how many of the most recent runs yielded zero.
func leadingEmpty(recs []techwatch.YieldRecord) int {
	n := 0
	for _, rec := range recs {
		if rec.Posts != 0 {
			break
		}
		n++
	}
	return n
}

// averageYield returns the mean yield over the recorded runs, or 0 when
// fewer than minRuns are recorded.
func averageYield(recs []techwatch.YieldRecord, minRuns int) float64 {
	if len(recs) < minRuns {
		return 0
	}
	total := 0
	for _, rec := range recs {
		total += rec.Posts
	}
	return float64(total) / float64(len(recs))
}
