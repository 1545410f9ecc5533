package techwatch

import (
	"encoding/json"
	"time"
)

// SourceStatus classifies the outcome of one crawler invocation.
type SourceStatus string

// Per-source outcomes recorded in the run report. A run never has a
// single global status: each source succeeds or fails on its own.
const (
	SourceStatusOK      SourceStatus = "ok"
	SourceStatusEmpty   SourceStatus = "empty"
	SourceStatusTimeout SourceStatus = "timeout"
	SourceStatusPanic   SourceStatus = "panic"
)

// AdvisoryKind labels anomaly-detector findings.
type AdvisoryKind string

// Advisory kinds surfaced by the anomaly detector.
const (
	AdvisorySuspectedParseFailure AdvisoryKind = "suspected_parse_failure"
	AdvisoryConsecutiveEmpty      AdvisoryKind = "consecutive_empty"
	AdvisoryLowYield              AdvisoryKind = "low_yield"
	AdvisoryFallbackMismatch      AdvisoryKind = "fallback_mismatch"
)

// Advisory is a non-fatal operator signal about one source. It never
// blocks aggregation or persistence.
type Advisory struct {
	Source  string       `json:"source"`
	Kind    AdvisoryKind `json:"kind"`
	Message string       `json:"message"`
}

// SourceReport captures the outcome of one source in one run.
type SourceReport struct {
	Source     string        `json:"source"`
	Status     SourceStatus  `json:"status"`
	Posts      int           `json:"posts"`
	Elapsed    time.Duration `json:"-"`
	Error      string        `json:"error,omitempty"`
	Advisories []Advisory    `json:"advisories,omitempty"`
}

// MarshalJSON renders Elapsed as a human-readable duration string
// instead of raw nanoseconds.
func (s SourceReport) MarshalJSON() ([]byte, error) {
	type plain SourceReport
	return json.Marshal(struct {
		plain
		Elapsed string `json:"elapsed"`
	}{plain(s), s.Elapsed.Round(time.Millisecond).String()})
}

// RunReport is the aggregate outcome of one crawl run. A run with one
// failing source and sixteen healthy ones is a partial success, reported
// per source, never a failure of the whole run.
type RunReport struct {
	RunID    string         `json:"run_id"`
	Range    DateRange      `json:"-"`
	Started  time.Time      `json:"started_at"`
	Finished time.Time      `json:"finished_at"`
	Sources  []SourceReport `json:"sources"`
	Fetched  int            `json:"fetched"`
	NewPosts int            `json:"new_posts"`
	Total    int            `json:"total_articles"`
}

// Succeeded counts sources that produced at least one post.
func (r RunReport) Succeeded() int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == SourceStatusOK {
			n++
		}
	}
	return n
}

// Elapsed returns the wall time of the run.
func (r RunReport) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}
