package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/anomaly"
	"github.com/nmoreaux/techwatch/internal/history/memory"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeCrawler struct {
	name       string
	posts      []techwatch.Post
	panicMsg   string
	delay      time.Duration
	probePosts []techwatch.Post
	probed     bool
}

func (f *fakeCrawler) SourceName() string { return f.name }

func (f *fakeCrawler) FetchPostsInRange(ctx context.Context, r techwatch.DateRange) []techwatch.Post {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil
		}
	}
	return f.posts
}

func (f *fakeCrawler) RecentPosts(ctx context.Context) []techwatch.Post {
	f.probed = true
	return f.probePosts
}

func post(t *testing.T, source, slug string, date time.Time) techwatch.Post {
	t.Helper()
	p, err := techwatch.NewPost("Post "+slug, "https://example.com/"+slug, date, source, "")
	require.NoError(t, err)
	return p
}

func testRange(t *testing.T) techwatch.DateRange {
	t.Helper()
	r, err := techwatch.NewDateRange(
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return r
}

func newTestOrchestrator(crawlers map[string]techwatch.Crawler, cfg Config) *Orchestrator {
	hist := memory.New()
	det := anomaly.New(hist, anomaly.DefaultThresholds(), zap.NewNop())
	return New(crawlers, det, hist, fakeClock{now: time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)}, cfg, zap.NewNop())
}

func TestRunIsolatesFailureDomains(t *testing.T) {
	r := testRange(t)
	inRange := time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)
	healthy := &fakeCrawler{name: "Alpha", posts: []techwatch.Post{
		post(t, "Alpha", "a1", inRange),
		post(t, "Alpha", "a2", inRange),
		post(t, "Alpha", "a3", inRange),
	}}
	panicky := &fakeCrawler{name: "Bravo", panicMsg: "boom"}
	sluggish := &fakeCrawler{name: "Charlie", delay: 2 * time.Second}

	orch := newTestOrchestrator(map[string]techwatch.Crawler{
		"Alpha": healthy, "Bravo": panicky, "Charlie": sluggish,
	}, Config{Workers: 3, SourceTimeout: 100 * time.Millisecond})

	posts, report, err := orch.Run(context.Background(), r, nil)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Equal(t, 3, report.Fetched)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Sources, 3)
	assert.Equal(t, "Alpha", report.Sources[0].Source)
	assert.Equal(t, techwatch.SourceStatusOK, report.Sources[0].Status)
	assert.Equal(t, 3, report.Sources[0].Posts)
	assert.Equal(t, "Bravo", report.Sources[1].Source)
	assert.Equal(t, techwatch.SourceStatusPanic, report.Sources[1].Status)
	assert.Equal(t, "Charlie", report.Sources[2].Source)
	assert.Equal(t, techwatch.SourceStatusTimeout, report.Sources[2].Status)
	assert.Equal(t, 1, report.Succeeded())
}

func TestRunDropsOutOfRangePosts(t *testing.T) {
	r := testRange(t)
	leaky := &fakeCrawler{name: "Leaky", posts: []techwatch.Post{
		post(t, "Leaky", "in", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)),
		post(t, "Leaky", "out", time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)),
	}}
	orch := newTestOrchestrator(map[string]techwatch.Crawler{"Leaky": leaky},
		Config{Workers: 1, SourceTimeout: time.Second})

	posts, report, err := orch.Run(context.Background(), r, nil)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://example.com/in", posts[0].URL)
	assert.Equal(t, 1, report.Sources[0].Posts)
}

func TestRunCancellationDiscardsPartialResults(t *testing.T) {
	r := testRange(t)
	slow := &fakeCrawler{name: "Slow", delay: 5 * time.Second}
	orch := newTestOrchestrator(map[string]techwatch.Crawler{"Slow": slow},
		Config{Workers: 1, SourceTimeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	posts, report, err := orch.Run(ctx, r, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, posts)
	assert.Empty(t, report.RunID)
}

func TestRunSourceFilter(t *testing.T) {
	r := testRange(t)
	inRange := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	a := &fakeCrawler{name: "Alpha", posts: []techwatch.Post{post(t, "Alpha", "a", inRange)}}
	b := &fakeCrawler{name: "Bravo", posts: []techwatch.Post{post(t, "Bravo", "b", inRange)}}
	orch := newTestOrchestrator(map[string]techwatch.Crawler{"Alpha": a, "Bravo": b},
		Config{Workers: 2, SourceTimeout: time.Second})

	posts, report, err := orch.Run(context.Background(), r, []string{"Bravo", "Nonexistent"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Bravo", posts[0].Source)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, "Bravo", report.Sources[0].Source)
}

func TestRunProbesEmptySource(t *testing.T) {
	r := testRange(t)
	quiet := &fakeCrawler{name: "Quiet", probePosts: []techwatch.Post{
		post(t, "Quiet", "old", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}}
	orch := newTestOrchestrator(map[string]techwatch.Crawler{"Quiet": quiet},
		Config{Workers: 1, SourceTimeout: time.Second, ProbeOnEmpty: true})

	_, report, err := orch.Run(context.Background(), r, nil)
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, techwatch.SourceStatusEmpty, report.Sources[0].Status)
	assert.True(t, quiet.probed)
}

func TestRunRecordsYieldHistory(t *testing.T) {
	r := testRange(t)
	inRange := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	a := &fakeCrawler{name: "Alpha", posts: []techwatch.Post{post(t, "Alpha", "a", inRange)}}

	hist := memory.New()
	det := anomaly.New(hist, anomaly.DefaultThresholds(), zap.NewNop())
	orch := New(map[string]techwatch.Crawler{"Alpha": a}, det, hist,
		fakeClock{now: time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)},
		Config{Workers: 1, SourceTimeout: time.Second}, zap.NewNop())

	_, report, err := orch.Run(context.Background(), r, nil)
	require.NoError(t, err)

	recs, err := hist.RecentYields(context.Background(), "Alpha", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, report.RunID, recs[0].RunID)
	assert.Equal(t, 1, recs[0].Posts)
}

func TestSourcesSorted(t *testing.T) {
	orch := newTestOrchestrator(map[string]techwatch.Crawler{
		"Zulu":  &fakeCrawler{name: "Zulu"},
		"Alpha": &fakeCrawler{name: "Alpha"},
	}, Config{})
	assert.Equal(t, []string{"Alpha", "Zulu"}, orch.Sources())
}
