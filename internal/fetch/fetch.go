// Package fetch provides the shared HTTP fetching stack injected into
// every crawler: a Colly-backed client with retry, a heuristic that spots
// script-rendered pages, and an optional headless renderer.
package fetch

import (
	"context"
	"net/http"
)

// Page is the result of fetching one URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Fetcher retrieves a single page.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (Page, error)
}

// Renderer produces a DOM snapshot of a page with JavaScript executed.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (Page, error)
}
