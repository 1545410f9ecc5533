package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

func newMerger() *Merger {
	return New(fakeClock{now: testNow}, zap.NewNop())
}

func mustPost(t *testing.T, title, url string, date time.Time, source string) techwatch.Post {
	t.Helper()
	p, err := techwatch.NewPost(title, url, date, source, "")
	require.NoError(t, err)
	return p
}

func TestMergeSameArticleTwiceDoesNotGrowArchive(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	p := mustPost(t, "Announcing widgets", "https://example.com/widgets", date, "Alpha")

	m := newMerger()
	env, added := m.Merge(techwatch.EmptyEnvelope(), []techwatch.Post{p})
	require.Equal(t, 1, added)
	require.Len(t, env.Articles, 1)

	env2, added2 := m.Merge(env, []techwatch.Post{p})
	assert.Zero(t, added2)
	assert.Len(t, env2.Articles, 1)
	assert.Equal(t, 1, env2.Metadata.TotalArticles)
}

func TestMergeCountsOnlyNewArticles(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	existing := mustPost(t, "Old news", "https://example.com/old", date, "Alpha")
	fresh := mustPost(t, "Breaking", "https://example.com/new", date, "Alpha")

	m := newMerger()
	base, _ := m.Merge(techwatch.EmptyEnvelope(), []techwatch.Post{existing})

	env, added := m.Merge(base, []techwatch.Post{existing, fresh})
	assert.Equal(t, 1, added)
	assert.Len(t, env.Articles, 2)
}

func TestMergeFreshCopyWinsOnConflict(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	stale := mustPost(t, "Draft title", "https://example.com/post", date, "Alpha")
	corrected := mustPost(t, "Final title", "https://example.com/post", date, "Alpha")

	m := newMerger()
	base, _ := m.Merge(techwatch.EmptyEnvelope(), []techwatch.Post{stale})

	env, added := m.Merge(base, []techwatch.Post{corrected})
	assert.Zero(t, added)
	require.Len(t, env.Articles, 1)
	assert.Equal(t, "Final title", env.Articles[0].Title)
}

func TestMergeNormalizedURLVariantsCollapse(t *testing.T) {
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	plain := mustPost(t, "Widgets", "https://example.com/widgets", date, "Alpha")
	slashed := mustPost(t, "Widgets", "HTTPS://Example.com/widgets/", date, "Alpha")

	m := newMerger()
	env, added := m.Merge(techwatch.EmptyEnvelope(), []techwatch.Post{plain, slashed})
	assert.Equal(t, 1, added)
	assert.Len(t, env.Articles, 1)
}

func TestMergeOrdering(t *testing.T) {
	old := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	posts := []techwatch.Post{
		mustPost(t, "B same day", "https://example.com/b", old, "Bravo"),
		mustPost(t, "Newest", "https://example.com/n", recent, "Alpha"),
		mustPost(t, "A same day", "https://example.com/a", old, "Alpha"),
	}

	m := newMerger()
	env, _ := m.Merge(techwatch.EmptyEnvelope(), posts)
	require.Len(t, env.Articles, 3)
	assert.Equal(t, "Newest", env.Articles[0].Title)
	assert.Equal(t, "A same day", env.Articles[1].Title)
	assert.Equal(t, "B same day", env.Articles[2].Title)
}

func TestMergeMetadataRecomputed(t *testing.T) {
	early := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	posts := []techwatch.Post{
		mustPost(t, "Early", "https://example.com/e", early, "Alpha"),
		mustPost(t, "Late", "https://example.com/l", late, "Bravo"),
	}

	m := newMerger()
	env, _ := m.Merge(techwatch.EmptyEnvelope(), posts)
	assert.Equal(t, 2, env.Metadata.TotalArticles)
	assert.Equal(t, []string{"Alpha", "Bravo"}, env.Metadata.Sources)
	assert.Equal(t, testNow, env.Metadata.GeneratedAt)
	assert.Equal(t, techwatch.FormatVersion, env.Metadata.FormatVersion)
}
