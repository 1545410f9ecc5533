// Package techwatch defines the core domain types shared across subsystems:
// posts, date ranges, dataset envelopes and the contracts every source
// crawler and persistence adapter must satisfy.
package techwatch

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// futureSkew is how far past "now" a publication date may sit before it is
// rejected as malformed source data. Feeds routinely publish with clock skew
// of a few hours; anything beyond two days is garbage.
const futureSkew = 48 * time.Hour

// Post is one normalized article from an external source. Posts are
// immutable after construction; build them through NewPost so the
// invariants hold everywhere downstream.
type Post struct {
	Title       string
	URL         string
	Date        time.Time
	Source      string
	Description string
}

// NewPost validates and builds a Post. Title and URL must be non-empty,
// the URL must be an absolute http(s) URL, and the publication date may
// not sit further in the future than the skew tolerance.
func NewPost(title, rawURL string, date time.Time, source, description string) (Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Post{}, fmt.Errorf("%w: post title is empty", ErrValidation)
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Post{}, fmt.Errorf("%w: post url is empty", ErrValidation)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return Post{}, fmt.Errorf("%w: post url %q: %v", ErrValidation, rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Post{}, fmt.Errorf("%w: post url %q is not an absolute http(s) url", ErrValidation, rawURL)
	}
	if source = strings.TrimSpace(source); source == "" {
		return Post{}, fmt.Errorf("%w: post source is empty", ErrValidation)
	}
	day := Day(date)
	if !day.IsZero() && day.After(time.Now().UTC().Add(futureSkew)) {
		return Post{}, fmt.Errorf("%w: publication date %s is in the future", ErrValidation, day.Format("2006-01-02"))
	}
	return Post{
		Title:       title,
		URL:         rawURL,
		Date:        day,
		Source:      source,
		Description: strings.TrimSpace(description),
	}, nil
}

// Key returns the identity of the post: the pair (source, normalized URL).
// Two posts with the same key are the same logical article.
func (p Post) Key() string {
	return p.Source + "\x00" + NormalizeURL(p.URL)
}

// Same reports whether other is the same logical article.
func (p Post) Same(other Post) bool {
	return p.Key() == other.Key()
}

// NormalizeURL lowercases the scheme and host and strips a trailing slash
// from the path. Everything else (query, fragment, path case) is compared
// verbatim.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Day strips the time component, normalizing to midnight UTC. The zero
// time maps to the zero time.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
