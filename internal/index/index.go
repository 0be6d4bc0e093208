package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/lotas/scicheck/internal/types"
)

const defaultLimit = 20

var markReplacer = strings.NewReplacer("<mark>", "<span class='hglt'>", "</mark>", "</span>")

// Index is an in-memory full-text index over cached articles, used when the
// search API is unreachable.
type Index struct {
	index bleve.Index

	mu       sync.RWMutex
	articles map[string]types.Article
}

// New returns an empty index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx, articles: make(map[string]types.Article)}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	id := bleve.NewTextFieldMapping()
	id.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("id", id)

	for _, name := range []string{"title", "abstract", "authors", "container"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		f.IncludeTermVectors = true
		doc.AddFieldMappingsAt(name, f)
	}

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Add indexes a, replacing any earlier version.
func (x *Index) Add(a types.Article) error {
	doc := map[string]any{
		"id":        a.ID,
		"title":     a.Title,
		"abstract":  a.Abstract,
		"authors":   strings.Join(a.Authors, ", "),
		"container": a.Container,
	}
	if err := x.index.Index(a.ID, doc); err != nil {
		return fmt.Errorf("index %s: %w", a.ID, err)
	}
	x.mu.Lock()
	x.articles[a.ID] = a
	x.mu.Unlock()
	return nil
}

// Len is the number of indexed articles.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.articles)
}

// Search returns the best matching articles, each carrying its score and
// highlight fragments marked up with <span class='hglt'>.
func (x *Index) Search(query string, limit int) ([]types.Article, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("title")
	req.Highlight.AddField("abstract")

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	hits := make([]types.Article, 0, len(res.Hits))
	for _, hit := range res.Hits {
		a, ok := x.articles[hit.ID]
		if !ok {
			continue
		}
		a.Score = hit.Score
		a.Highlights = types.Highlights{
			Title:    marked(hit.Fragments["title"]),
			Abstract: marked(hit.Fragments["abstract"]),
		}
		hits = append(hits, a)
	}
	return hits, nil
}

func marked(fragments []string) types.Fragments {
	if len(fragments) == 0 {
		return nil
	}
	out := make(types.Fragments, len(fragments))
	for i, f := range fragments {
		out[i] = markReplacer.Replace(f)
	}
	return out
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
