package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/scicheck/internal/types"
)

type jsonHistory struct {
	ExportedAt time.Time          `json:"exported_at"`
	Questions  []jsonHistoryEntry `json:"questions"`
}

type jsonHistoryEntry struct {
	ID           int       `json:"id"`
	Question     string    `json:"question"`
	AnswersCount int       `json:"answers_count"`
	Date         time.Time `json:"date"`
	DatePretty   string    `json:"date_pretty"`
}

// HistoryJSON formats the question log as a JSON document.
func HistoryJSON(entries []types.HistoryEntry) (string, error) {
	out := jsonHistory{
		ExportedAt: time.Now(),
		Questions:  make([]jsonHistoryEntry, 0, len(entries)),
	}
	for _, e := range entries {
		out.Questions = append(out.Questions, jsonHistoryEntry{
			ID:           e.ID,
			Question:     e.Question,
			AnswersCount: e.AnswersCount,
			Date:         e.Date,
			DatePretty:   relativeTime(e.Date),
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

type jsonHit struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors,omitempty"`
	Date      string   `json:"date,omitempty"`
	Container string   `json:"container,omitempty"`
	Citations *int     `json:"citations"`
	Score     float64  `json:"score"`
	Keywords  []string `json:"keywords,omitempty"`
}

// HitsJSON formats search hits as a JSON array. keywords receives the
// highlight keywords of each hit.
func HitsJSON(hits []types.Article, keywords func(types.Article) []string) (string, error) {
	out := make([]jsonHit, 0, len(hits))
	for _, h := range hits {
		var cites *int
		if h.Citations != types.CitationsUnknown {
			n := h.Citations
			cites = &n
		}
		out = append(out, jsonHit{
			ID:        h.ID,
			Title:     h.Title,
			Authors:   h.Authors,
			Date:      h.PublicationDate,
			Container: h.Container,
			Citations: cites,
			Score:     h.Score,
			Keywords:  keywords(h),
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
