package techwatch

import (
	"context"
	"time"
)

// Crawler is the capability every source adapter implements. SourceName
// is a stable, human-readable identifier unique across all crawlers.
//
// FetchPostsInRange must never fail upward: any internal error (network,
// malformed markup, unexpected schema) is logged by the crawler itself
// and degrades to an empty result. Returned posts already satisfy the
// range filter; the orchestrator re-filters defensively anyway.
type Crawler interface {
	SourceName() string
	FetchPostsInRange(ctx context.Context, r DateRange) []Post
}

// FallbackProber is optionally implemented by crawlers that can fetch
// recent posts without a date filter. The anomaly detector uses it to
// tell "source had nothing new" apart from "date parsing is broken".
type FallbackProber interface {
	RecentPosts(ctx context.Context) []Post
}

// PostRepository persists and loads the dataset envelope. Save is atomic
// from the point of view of any concurrent reader. LoadLatest returns an
// empty envelope, not an error, when nothing has been saved yet.
type PostRepository interface {
	Save(ctx context.Context, env Envelope) error
	LoadLatest(ctx context.Context) (Envelope, error)
}

// Archiver stores an immutable copy of a serialized envelope under a
// name, e.g. one object per run in a bucket.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) error
}

// Publisher pushes run-completion events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// YieldRecord is one source's post count for one run, kept so the
// anomaly detector can compare a run against recent history.
type YieldRecord struct {
	RunID      string
	Source     string
	RangeStart time.Time
	RangeEnd   time.Time
	Posts      int
	RecordedAt time.Time
}

// HistoryStore records per-source yields and serves them back newest
// first. Implementations must tolerate concurrent readers.
type HistoryStore interface {
	Record(ctx context.Context, recs []YieldRecord) error
	RecentYields(ctx context.Context, source string, limit int) ([]YieldRecord, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}
