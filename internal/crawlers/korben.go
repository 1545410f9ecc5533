package crawlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

const (
	korbenSourceName = "Korben Blog"
	korbenFeedURL    = "https://korben.info/feed"
)

func init() {
	registry.Register(korbenSourceName, func(deps registry.Deps) (techwatch.Crawler, error) {
		return NewKorben(deps, korbenFeedURL), nil
	})
}

// KorbenCrawler reads the Korben blog RSS feed.
type KorbenCrawler struct {
	Base
	feedURL string
}

// NewKorben builds the Korben crawler against feedURL, which tests point
// at a local server.
func NewKorben(deps registry.Deps, feedURL string) *KorbenCrawler {
	if feedURL == "" {
		feedURL = korbenFeedURL
	}
	return &KorbenCrawler{
		Base:    NewBase(korbenSourceName, deps),
		feedURL: feedURL,
	}
}

// FetchPostsInRange returns the feed entries published inside r. Any
// failure degrades to an empty result.
func (c *KorbenCrawler) FetchPostsInRange(ctx context.Context, r techwatch.DateRange) (posts []techwatch.Post) {
	defer c.RecoverToEmpty(&posts)

	feed, err := c.FetchFeed(ctx, c.feedURL)
	if err != nil {
		c.Logger().Error("feed fetch failed", zap.String("url", c.feedURL), zap.Error(err))
		return nil
	}
	posts = c.PostsFromFeed(feed, r)
	c.Logger().Info("feed crawled",
		zap.String("range", r.String()),
		zap.Int("items", len(feed.Items)),
		zap.Int("in_range", len(posts)),
	)
	return posts
}

// RecentPosts fetches the feed without a date filter so the anomaly
// detector can cross-check date parsing.
func (c *KorbenCrawler) RecentPosts(ctx context.Context) (posts []techwatch.Post) {
	defer c.RecoverToEmpty(&posts)

	feed, err := c.FetchFeed(ctx, c.feedURL)
	if err != nil {
		c.Logger().Warn("fallback probe failed", zap.Error(err))
		return nil
	}
	return capPosts(c.PostsFromFeed(feed, techwatch.DateRange{}), recentProbeLimit)
}
