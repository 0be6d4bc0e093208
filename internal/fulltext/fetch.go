package fulltext

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/scicheck/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Document is the readable part of an article page.
type Document struct {
	URL    string
	Title  string
	Byline string
	Text   string
}

// Fetcher downloads article pages and extracts their readable text.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a fetcher with the given request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: timeout}}
}

// SourceURL picks the page to read for a: its first http(s) URL, or the DOI
// resolver link. Returns "" when the article has neither.
func SourceURL(a types.Article) string {
	for _, u := range a.URLs {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return u
		}
	}
	if a.DOI != "" {
		return "https://doi.org/" + strings.TrimPrefix(a.DOI, "https://doi.org/")
	}
	return ""
}

// Article fetches the readable text of a.
func (f *Fetcher) Article(ctx context.Context, a types.Article) (Document, error) {
	u := SourceURL(a)
	if u == "" {
		return Document{}, fmt.Errorf("article %s has no readable source", a.ID)
	}
	return f.Fetch(ctx, u)
}

// Fetch downloads rawURL and extracts readable text content.
// Returns an error for non-HTTP URLs or if extraction fails.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return Document{}, fmt.Errorf("skipping non-HTTP URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Document{}, fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, resp.Request.URL)
	if err != nil {
		return Document{}, fmt.Errorf("extract readable content from %s: %w", rawURL, err)
	}

	return Document{
		URL:    resp.Request.URL.String(),
		Title:  article.Title,
		Byline: article.Byline,
		Text:   strings.TrimSpace(article.TextContent),
	}, nil
}
