package crawlers

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

const (
	jduhSourceName = "Journal du Hacker"
	jduhBaseURL    = "https://www.journalduhacker.net/"
)

func init() {
	registry.Register(jduhSourceName, func(deps registry.Deps) (techwatch.Crawler, error) {
		return NewJournalDuHacker(deps, jduhBaseURL), nil
	})
}

// JournalDuHackerCrawler scrapes the Journal du Hacker front page, an
// HTML listing without a usable feed for our window. It is the one
// crawler exercising the goquery/headless path.
type JournalDuHackerCrawler struct {
	Base
	baseURL string
}

// NewJournalDuHacker builds the crawler against baseURL.
func NewJournalDuHacker(deps registry.Deps, baseURL string) *JournalDuHackerCrawler {
	if baseURL == "" {
		baseURL = jduhBaseURL
	}
	return &JournalDuHackerCrawler{
		Base:    NewBase(jduhSourceName, deps),
		baseURL: baseURL,
	}
}

// FetchPostsInRange scrapes the listing and keeps stories dated inside r.
func (c *JournalDuHackerCrawler) FetchPostsInRange(ctx context.Context, r techwatch.DateRange) (posts []techwatch.Post) {
	defer c.RecoverToEmpty(&posts)

	doc, err := c.FetchDocument(ctx, c.baseURL)
	if err != nil {
		c.Logger().Error("listing fetch failed", zap.String("url", c.baseURL), zap.Error(err))
		return nil
	}
	all := c.parseListing(doc)
	posts = c.FilterByRange(all, r)
	c.Logger().Info("listing crawled",
		zap.String("range", r.String()),
		zap.Int("stories", len(all)),
		zap.Int("in_range", len(posts)),
	)
	return posts
}

// RecentPosts scrapes the listing without a date filter.
func (c *JournalDuHackerCrawler) RecentPosts(ctx context.Context) (posts []techwatch.Post) {
	defer c.RecoverToEmpty(&posts)

	doc, err := c.FetchDocument(ctx, c.baseURL)
	if err != nil {
		c.Logger().Warn("fallback probe failed", zap.Error(err))
		return nil
	}
	return capPosts(c.parseListing(doc), recentProbeLimit)
}

func (c *JournalDuHackerCrawler) parseListing(doc *goquery.Document) []techwatch.Post {
	var posts []techwatch.Post
	doc.Find("li.story").Each(func(_ int, s *goquery.Selection) {
		link := s.Find(".link a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")

		stamp, _ := s.Find("time").First().Attr("datetime")
		published, ok := parseStoryDate(stamp)
		if !ok {
			c.Logger().Debug("story without parseable date skipped", zap.String("title", title))
			return
		}

		desc := strings.TrimSpace(s.Find(".description").First().Text())
		post, err := techwatch.NewPost(title, AbsoluteURL(c.baseURL, href), published, c.SourceName(), desc)
		if err != nil {
			c.Logger().Debug("story rejected", zap.String("title", title), zap.Error(err))
			return
		}
		posts = append(posts, post)
	})
	return posts
}

func parseStoryDate(stamp string) (time.Time, bool) {
	stamp = strings.TrimSpace(stamp)
	if stamp == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05 -0700", "2006-01-02"} {
		if t, err := time.Parse(layout, stamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
