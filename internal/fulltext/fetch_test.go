package fulltext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lotas/scicheck/internal/types"
)

const page = `<!DOCTYPE html>
<html><head><title>Test Article</title></head>
<body>
<article>
<h1>Test Article</h1>
<p>This is the main content of the article. It has enough text to be considered readable content by the readability algorithm. The quick brown fox jumps over the lazy dog. This paragraph needs to be long enough for readability to pick it up as meaningful content.</p>
<p>Second paragraph with more meaningful content that helps the readability parser understand this is a real article and not just navigation or boilerplate. We need several sentences here to make this work properly.</p>
</article>
</body></html>`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	doc, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title == "" {
		t.Error("expected non-empty title")
	}
	if doc.Text == "" {
		t.Error("expected non-empty text")
	}
}

func TestFetch_SkipsNonHTTP(t *testing.T) {
	f := NewFetcher(time.Second)
	for _, u := range []string{"file:///home/user/paper.pdf", "data:text/html,hello", "ftp://example.org/x", "::"} {
		if _, err := f.Fetch(context.Background(), u); err == nil {
			t.Errorf("expected error for %q, got nil", u)
		}
	}
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html><html><head><title>T</title></head><body><p>text</p></body></html>`))
	}))
	defer srv.Close()

	NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("expected browser-like User-Agent, got %q", gotUA)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer srv.Close()

	if _, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestSourceURL(t *testing.T) {
	tests := []struct {
		a    types.Article
		want string
	}{
		{types.Article{URLs: []string{"ftp://x", "https://journal.org/a1"}}, "https://journal.org/a1"},
		{types.Article{DOI: "10.1000/xyz"}, "https://doi.org/10.1000/xyz"},
		{types.Article{DOI: "https://doi.org/10.1000/xyz"}, "https://doi.org/10.1000/xyz"},
		{types.Article{}, ""},
	}
	for _, tt := range tests {
		if got := SourceURL(tt.a); got != tt.want {
			t.Errorf("SourceURL(%+v) = %q, want %q", tt.a, got, tt.want)
		}
	}
}

func TestArticle_NoSource(t *testing.T) {
	if _, err := NewFetcher(time.Second).Article(context.Background(), types.Article{ID: "a1"}); err == nil {
		t.Error("expected error for article without source")
	}
}
