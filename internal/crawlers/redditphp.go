package crawlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

const (
	redditPHPSourceName = "r/PHP"
	// Reddit serves an Atom document on the .rss endpoint; gofeed detects
	// the format, so the same plumbing as RSS applies.
	redditPHPFeedURL = "https://www.reddit.com/r/PHP/.rss"
)

func init() {
	registry.Register(redditPHPSourceName, func(deps registry.Deps) (techwatch.Crawler, error) {
		return NewRedditPHP(deps, redditPHPFeedURL), nil
	})
}

// RedditPHPCrawler reads the r/PHP subreddit feed.
type RedditPHPCrawler struct {
	Base
	feedURL string
}

// NewRedditPHP builds the r/PHP crawler against feedURL.
func NewRedditPHP(deps registry.Deps, feedURL string) *RedditPHPCrawler {
	if feedURL == "" {
		feedURL = redditPHPFeedURL
	}
	return &RedditPHPCrawler{
		Base:    NewBase(redditPHPSourceName, deps),
		feedURL: feedURL,
	}
}

// FetchPostsInRange returns subreddit entries published inside r.
func (c *RedditPHPCrawler) FetchPostsInRange(ctx context.Context, r techwatch.DateRange) (posts []techwatch.Post) {
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

// RecentPosts fetches the feed without a date filter.
func (c *RedditPHPCrawler) RecentPosts(ctx context.Context) (posts []techwatch.Post) {
	defer c.RecoverToEmpty(&posts)

	feed, err := c.FetchFeed(ctx, c.feedURL)
	if err != nil {
		c.Logger().Warn("fallback probe failed", zap.Error(err))
		return nil
	}
	return capPosts(c.PostsFromFeed(feed, techwatch.DateRange{}), recentProbeLimit)
}
