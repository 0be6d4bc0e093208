package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/types"
)

func TestHistoryMarkdown(t *testing.T) {
	now := time.Now()
	result := HistoryMarkdown([]types.HistoryEntry{
		{ID: 1, Question: "What is X?", AnswersCount: 1, Date: now.Add(-3 * time.Hour)},
		{ID: 2, Question: "Why Y?", AnswersCount: 4, Date: now.Add(-2 * 24 * time.Hour)},
	})

	assert.Contains(t, result, "# Question history")
	assert.Contains(t, result, "1. What is X? (1 answer) — 3h ago")
	assert.Contains(t, result, "2. Why Y? (4 answers) — 2d ago")
}

func TestHistoryMarkdown_Empty(t *testing.T) {
	assert.Contains(t, HistoryMarkdown(nil), "No questions asked yet")
}

func TestHistoryJSON(t *testing.T) {
	out, err := HistoryJSON([]types.HistoryEntry{{ID: 1, Question: "q", AnswersCount: 2, Date: time.Now()}})
	require.NoError(t, err)

	var parsed jsonHistory
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Questions, 1)
	assert.Equal(t, "q", parsed.Questions[0].Question)
	assert.Equal(t, 2, parsed.Questions[0].AnswersCount)
	assert.Equal(t, "just now", parsed.Questions[0].DatePretty)
}

func TestHitsJSON(t *testing.T) {
	out, err := HitsJSON([]types.Article{
		{ID: "a1", Title: "T", Citations: types.CitationsUnknown},
		{ID: "a2", Title: "U", Citations: 0},
	}, func(a types.Article) []string { return []string{"kw-" + a.ID} })
	require.NoError(t, err)

	var parsed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed, 2)
	assert.Nil(t, parsed[0]["citations"])
	assert.Equal(t, 0.0, parsed[1]["citations"])
	assert.Equal(t, []any{"kw-a2"}, parsed[1]["keywords"])
}

func TestCountWording(t *testing.T) {
	assert.Equal(t, "Number of citations unknown", Citations(-1))
	assert.Equal(t, "12 Citations", Citations(12))
	assert.Equal(t, "1 answer", Answers(1))
	assert.Equal(t, "0 answers", Answers(0))
}

func TestTranscript(t *testing.T) {
	v := discussion.View{
		Question:     "What is X?",
		TotalAnswers: 1,
		SpanIDs:      []string{"span-0-0"},
		Articles: []discussion.ArticleAnswer{{
			Article: types.Article{
				ID:      "a1",
				Title:   "On X",
				Content: `<p>We find that <span class='hglt__answer' id="span-0-0">X is Y</span> in practice.</p>`,
			},
			Answers:    1,
			HasAnswers: true,
		}},
	}

	out, err := Transcript(v)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# What is X?\n"))
	assert.Contains(t, out, "1 answer for this question.")
	assert.Contains(t, out, "## On X")
	assert.Contains(t, out, "**X is Y**")
	assert.NotContains(t, out, "span")
}
