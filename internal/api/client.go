package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/types"
)

// ErrNotFound is returned when the API has no article with the requested id.
var ErrNotFound = errors.New("article not found")

const (
	defaultTimeout     = 15 * time.Second
	defaultRate        = 5
	defaultConcurrency = 5
	articleTTL         = 30 * time.Minute
)

// Client talks to the search and article API.
type Client struct {
	base        string
	http        *http.Client
	limiter     *rate.Limiter
	articles    *cache.Cache
	concurrency int

	// OnFetch, if set, is called with every article fetched from the API.
	OnFetch func(types.Article)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRate limits requests to rps per second. Zero disables limiting.
func WithRate(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New returns a client for the API rooted at base.
func New(base string, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(base, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRate), 1),
		articles:    cache.New(articleTTL, 10*time.Minute),
		concurrency: defaultConcurrency,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search returns the hits for query.
func (c *Client) Search(ctx context.Context, query string) ([]types.Article, error) {
	u := c.base + "/api/search?" + url.Values{"query": {query}}.Encode()
	var res types.SearchResult
	if err := c.getJSON(ctx, u, &res); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	applog.Info("api.search", "query", query, "hits", len(res.Hits))
	return res.Hits, nil
}

// Article returns the full article record for id.
func (c *Client) Article(ctx context.Context, id string) (types.Article, error) {
	if x, found := c.articles.Get(id); found {
		return x.(types.Article), nil
	}
	var a types.Article
	if err := c.getJSON(ctx, c.base+"/api/article/"+url.PathEscape(id), &a); err != nil {
		return types.Article{}, fmt.Errorf("article %s: %w", id, err)
	}
	if a.ID == "" {
		a.ID = id
	}
	c.articles.Set(id, a, cache.DefaultExpiration)
	if c.OnFetch != nil {
		c.OnFetch(a)
	}
	return a, nil
}

// Articles fetches every id in parallel. The result keeps the order of ids.
func (c *Client) Articles(ctx context.Context, ids []string) ([]types.Article, error) {
	out := make([]types.Article, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			a, err := c.Article(gctx, id)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		applog.Error("api.get", err, "url", u)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
