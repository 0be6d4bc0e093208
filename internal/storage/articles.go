package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lotas/scicheck/internal/types"
)

// SaveArticle inserts or replaces the cached copy of an article.
func SaveArticle(db *sql.DB, a types.Article) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article %s: %w", a.ID, err)
	}
	data, err := Compress(raw)
	if err != nil {
		return fmt.Errorf("compress article %s: %w", a.ID, err)
	}
	_, err = db.Exec(
		`INSERT INTO articles (id, title, data, fetched_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, data = excluded.data, fetched_at = excluded.fetched_at`,
		a.ID, a.Title, data,
	)
	if err != nil {
		return fmt.Errorf("save article %s: %w", a.ID, err)
	}
	return nil
}

// GetArticle returns the cached article, or nil when it is not cached.
func GetArticle(db *sql.DB, id string) (*types.Article, error) {
	var data []byte
	err := db.QueryRow("SELECT data FROM articles WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return decodeArticle(id, data)
}

// ListArticles returns every cached article, most recently fetched first.
// Rows that fail to decode are skipped.
func ListArticles(db *sql.DB) ([]types.Article, error) {
	rows, err := db.Query("SELECT id, data FROM articles ORDER BY fetched_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []types.Article
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a, err := decodeArticle(id, data)
		if err != nil {
			continue
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SaveFullText stores the extracted full text of a cached article.
func SaveFullText(db *sql.DB, id, text string) error {
	data, err := Compress([]byte(text))
	if err != nil {
		return fmt.Errorf("compress fulltext %s: %w", id, err)
	}
	res, err := db.Exec("UPDATE articles SET fulltext = ? WHERE id = ?", data, id)
	if err != nil {
		return fmt.Errorf("save fulltext %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save fulltext %s: article not cached", id)
	}
	return nil
}

// GetFullText returns the stored full text, or "" when none is stored.
func GetFullText(db *sql.DB, id string) (string, error) {
	var data []byte
	err := db.QueryRow("SELECT fulltext FROM articles WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && data == nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get fulltext %s: %w", id, err)
	}
	text, err := Decompress(data)
	if err != nil {
		return "", fmt.Errorf("decode fulltext %s: %w", id, err)
	}
	return string(text), nil
}

func decodeArticle(id string, data []byte) (*types.Article, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress article %s: %w", id, err)
	}
	var a types.Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshal article %s: %w", id, err)
	}
	return &a, nil
}
