package crawlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/crawlers"
	"github.com/nmoreaux/techwatch/internal/fetch"
	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

const korbenRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Korben</title>
  <item>
    <title>Inside the range</title>
    <link>https://korben.info/inside.html</link>
    <pubDate>Tue, 02 Sep 2025 10:14:03 +0000</pubDate>
    <description>first</description>
  </item>
  <item>
    <title>Also inside</title>
    <link>https://korben.info/also-inside.html</link>
    <pubDate>Mon, 08 Sep 2025 08:00:00 +0000</pubDate>
    <description>second</description>
  </item>
  <item>
    <title>Too old</title>
    <link>https://korben.info/too-old.html</link>
    <pubDate>Sat, 16 Aug 2025 12:00:00 +0000</pubDate>
  </item>
  <item>
    <title>No date, dropped</title>
    <link>https://korben.info/undated.html</link>
  </item>
</channel>
</rss>`

const jduhListing = `<!DOCTYPE html>
<html><body>
<ol class="stories">
  <li class="story">
    <span class="link"><a href="/s/abc/go-126">Go 1.26 est sorti</a></span>
    <time datetime="2025-09-03T09:30:00Z"></time>
    <div class="description">notes de version</div>
  </li>
  <li class="story">
    <span class="link"><a href="https://example.com/elsewhere">Hors fenetre</a></span>
    <time datetime="2025-08-01T09:30:00Z"></time>
  </li>
  <li class="story">
    <span class="link"><a href="/s/def/sans-date">Sans date</a></span>
  </li>
</ol>
</body></html>`

func testDeps(t *testing.T) registry.Deps {
	t.Helper()
	client, err := fetch.NewClient(fetch.ClientConfig{
		UserAgent:      "techwatch-test/1.0",
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return registry.Deps{
		Fetcher: client,
		Logger:  zap.NewNop(),
	}
}

func weekRange(t *testing.T) techwatch.DateRange {
	t.Helper()
	r, err := techwatch.NewDateRange(
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return r
}

func TestKorbenCrawler(t *testing.T) {
	t.Run("FiltersByRange", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(korbenRSS))
		}))
		defer srv.Close()

		c := crawlers.NewKorben(testDeps(t), srv.URL)
		posts := c.FetchPostsInRange(context.Background(), weekRange(t))

		require.Len(t, posts, 2)
		assert.Equal(t, "Inside the range", posts[0].Title)
		assert.Equal(t, "Korben Blog", posts[0].Source)
		assert.Equal(t, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), posts[0].Date)
		assert.Equal(t, "first", posts[0].Description)
	})

	t.Run("ServerErrorDegradesToEmpty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := crawlers.NewKorben(testDeps(t), srv.URL)
		assert.Empty(t, c.FetchPostsInRange(context.Background(), weekRange(t)))
	})

	t.Run("MalformedFeedDegradesToEmpty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>not a feed at all</html>"))
		}))
		defer srv.Close()

		c := crawlers.NewKorben(testDeps(t), srv.URL)
		assert.Empty(t, c.FetchPostsInRange(context.Background(), weekRange(t)))
	})

	t.Run("RecentPostsIgnoresRange", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(korbenRSS))
		}))
		defer srv.Close()

		c := crawlers.NewKorben(testDeps(t), srv.URL)
		// Three items carry dates; the undated one is still dropped.
		assert.Len(t, c.RecentPosts(context.Background()), 3)
	})
}

func TestRedditPHPCrawlerParsesAtom(t *testing.T) {
	const atom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>posts in r/PHP</title>
  <entry>
    <title>PHP 9 rumors</title>
    <link href="https://www.reddit.com/r/PHP/comments/abc/php_9_rumors/"/>
    <updated>2025-09-05T16:20:00+00:00</updated>
  </entry>
</feed>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atom))
	}))
	defer srv.Close()

	c := crawlers.NewRedditPHP(testDeps(t), srv.URL)
	posts := c.FetchPostsInRange(context.Background(), weekRange(t))

	require.Len(t, posts, 1)
	assert.Equal(t, "PHP 9 rumors", posts[0].Title)
	assert.Equal(t, "r/PHP", posts[0].Source)
}

func TestJournalDuHackerCrawler(t *testing.T) {
	t.Run("ParsesListing", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(jduhListing))
		}))
		defer srv.Close()

		c := crawlers.NewJournalDuHacker(testDeps(t), srv.URL)
		posts := c.FetchPostsInRange(context.Background(), weekRange(t))

		require.Len(t, posts, 1)
		assert.Equal(t, "Go 1.26 est sorti", posts[0].Title)
		assert.Equal(t, srv.URL+"/s/abc/go-126", posts[0].URL)
		assert.Equal(t, "notes de version", posts[0].Description)
	})

	t.Run("UnreachableHostDegradesToEmpty", func(t *testing.T) {
		c := crawlers.NewJournalDuHacker(testDeps(t), "http://127.0.0.1:1/")
		assert.Empty(t, c.FetchPostsInRange(context.Background(), weekRange(t)))
	})
}
