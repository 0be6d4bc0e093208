package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lotas/scicheck/internal/api"
	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/fulltext"
	"github.com/lotas/scicheck/internal/index"
	"github.com/lotas/scicheck/internal/storage"
	"github.com/lotas/scicheck/internal/types"
)

// Catalog is the article source used by the views and commands. Articles
// fetched from the API are cached in the database and indexed for offline
// search.
type Catalog struct {
	api     *api.Client
	db      *sql.DB
	index   *index.Index
	fetcher *fulltext.Fetcher
}

// New wires the catalog and indexes every cached article.
func New(client *api.Client, db *sql.DB, fetcher *fulltext.Fetcher) (*Catalog, error) {
	idx, err := index.New()
	if err != nil {
		return nil, err
	}
	c := &Catalog{api: client, db: db, index: idx, fetcher: fetcher}

	cached, err := storage.ListArticles(db)
	if err != nil {
		idx.Close()
		return nil, err
	}
	for _, a := range cached {
		if err := idx.Add(a); err != nil {
			applog.Error("catalog.index", err, "id", a.ID)
		}
	}
	applog.Info("catalog.loaded", "articles", len(cached))

	client.OnFetch = c.remember
	return c, nil
}

func (c *Catalog) remember(a types.Article) {
	if err := storage.SaveArticle(c.db, a); err != nil {
		applog.Error("catalog.save", err, "id", a.ID)
	}
	if err := c.index.Add(a); err != nil {
		applog.Error("catalog.index", err, "id", a.ID)
	}
}

// Search queries the API, falling back to the local index when offline is
// set or the API fails. The second result reports whether the local index
// answered.
func (c *Catalog) Search(ctx context.Context, query string, offline bool) ([]types.Article, bool, error) {
	if !offline {
		hits, err := c.api.Search(ctx, query)
		if err == nil {
			for _, h := range hits {
				if cached, _ := storage.GetArticle(c.db, h.ID); cached == nil {
					c.remember(h)
				}
			}
			return hits, false, nil
		}
		if ctx.Err() != nil {
			return nil, false, err
		}
		applog.Error("catalog.search", err, "query", query)
	}
	hits, err := c.index.Search(query, 0)
	if err != nil {
		return nil, true, err
	}
	return hits, true, nil
}

// Article returns the full record for id, from the API or the cache.
func (c *Catalog) Article(ctx context.Context, id string) (types.Article, error) {
	a, err := c.api.Article(ctx, id)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, api.ErrNotFound) || ctx.Err() != nil {
		return types.Article{}, err
	}
	cached, cerr := storage.GetArticle(c.db, id)
	if cerr != nil || cached == nil {
		return types.Article{}, err
	}
	applog.Info("catalog.cached", "id", id)
	return *cached, nil
}

// Articles fetches every id, keeping their order.
func (c *Catalog) Articles(ctx context.Context, ids []string) ([]types.Article, error) {
	out, err := c.api.Articles(ctx, ids)
	if err == nil {
		return out, nil
	}
	out = make([]types.Article, len(ids))
	for i, id := range ids {
		a, aerr := c.Article(ctx, id)
		if aerr != nil {
			return nil, fmt.Errorf("fetch articles: %w", aerr)
		}
		out[i] = a
	}
	return out, nil
}

// FullText returns the readable text of a, reading through the database.
func (c *Catalog) FullText(ctx context.Context, a types.Article) (string, error) {
	if text, err := storage.GetFullText(c.db, a.ID); err == nil && text != "" {
		return text, nil
	}
	doc, err := c.fetcher.Article(ctx, a)
	if err != nil {
		return "", err
	}
	if cached, _ := storage.GetArticle(c.db, a.ID); cached == nil {
		c.remember(a)
	}
	if err := storage.SaveFullText(c.db, a.ID, doc.Text); err != nil {
		applog.Error("catalog.fulltext", err, "id", a.ID)
	}
	return doc.Text, nil
}

// Close releases the index.
func (c *Catalog) Close() error {
	return c.index.Close()
}
