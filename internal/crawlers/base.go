// Package crawlers contains the source adapters. Every crawler embeds
// Base, which carries the injected fetching stack and the fail-soft
// helpers that keep a broken source from signaling anything upward
// except "produced nothing".
package crawlers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// recentProbeLimit caps how many posts a fallback probe returns.
const recentProbeLimit = 20

// Base carries the shared dependencies and helpers for one source.
type Base struct {
	name   string
	deps   registry.Deps
	logger *zap.Logger
}

// NewBase builds the scaffolding for a crawler named name.
func NewBase(name string, deps registry.Deps) Base {
	if deps.Feeds == nil {
		deps.Feeds = gofeed.NewParser()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return Base{
		name:   name,
		deps:   deps,
		logger: logger.With(zap.String("source", name)),
	}
}

// SourceName returns the stable source identifier.
func (b Base) SourceName() string { return b.name }

// Logger returns the source-scoped logger.
func (b Base) Logger() *zap.Logger { return b.logger }

// RecoverToEmpty converts a panicking crawler into an empty result. Use
// as `defer b.RecoverToEmpty(&posts)` at the top of FetchPostsInRange.
func (b Base) RecoverToEmpty(posts *[]techwatch.Post) {
	if r := recover(); r != nil {
		b.logger.Error("crawler panicked, degrading to empty result", zap.Any("panic", r))
		*posts = nil
	}
}

// FetchFeed retrieves and parses an RSS or Atom feed through the shared
// HTTP client, so retries and timeouts apply uniformly.
func (b Base) FetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	page, err := b.deps.Fetcher.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	feed, err := b.deps.Feeds.ParseString(string(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// FetchDocument retrieves an HTML page and parses it with goquery,
// escalating to the headless renderer when the body looks script-built
// and a renderer is configured.
func (b Base) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	page, err := b.deps.Fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if b.deps.Detector.NeedsJS(page.Body) && b.deps.Renderer != nil {
		b.logger.Info("page looks script-rendered, escalating to headless fetch",
			zap.String("url", pageURL))
		rendered, rerr := b.deps.Renderer.Render(ctx, pageURL)
		if rerr != nil {
			b.logger.Warn("headless fetch failed, using plain body", zap.Error(rerr))
		} else {
			page = rendered
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// PostFromFeedItem converts one feed item into a Post. Items without a
// usable date or that fail validation are dropped with a debug log.
func (b Base) PostFromFeedItem(item *gofeed.Item) (techwatch.Post, bool) {
	if item == nil {
		return techwatch.Post{}, false
	}
	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published == nil {
		b.logger.Debug("feed item has no parseable date", zap.String("title", item.Title))
		return techwatch.Post{}, false
	}
	post, err := techwatch.NewPost(item.Title, item.Link, *published, b.name, item.Description)
	if err != nil {
		b.logger.Debug("feed item rejected", zap.String("title", item.Title), zap.Error(err))
		return techwatch.Post{}, false
	}
	return post, true
}

// PostsFromFeed converts every usable feed item, optionally filtered by
// r. A zero DateRange keeps everything, which is what fallback probes
// want.
func (b Base) PostsFromFeed(feed *gofeed.Feed, r techwatch.DateRange) []techwatch.Post {
	if feed == nil {
		return nil
	}
	var posts []techwatch.Post
	for _, item := range feed.Items {
		post, ok := b.PostFromFeedItem(item)
		if !ok {
			continue
		}
		if !r.IsZero() && !r.Contains(post.Date) {
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

// FilterByRange keeps only posts whose date falls inside r.
func (b Base) FilterByRange(posts []techwatch.Post, r techwatch.DateRange) []techwatch.Post {
	var kept []techwatch.Post
	for _, p := range posts {
		if r.Contains(p.Date) {
			kept = append(kept, p)
		}
	}
	return kept
}

// AbsoluteURL resolves href against base for listings with relative links.
func AbsoluteURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}

func capPosts(posts []techwatch.Post, limit int) []techwatch.Post {
	if len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
