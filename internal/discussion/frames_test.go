package discussion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/scicheck/internal/types"
)

func TestSelectArticlesNormalizes(t *testing.T) {
	msg, err := SelectArticles([]types.Article{{
		ID:       "a1",
		Title:    "Title",
		Abstract: "The abstract.",
		Content:  "ignored",
		Authors:  []string{"Ada"},
	}})
	require.NoError(t, err)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got struct {
		Type     string           `json:"type"`
		Articles []map[string]any `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeSelectArticles, got.Type)
	require.Len(t, got.Articles, 1)
	a := got.Articles[0]
	assert.Equal(t, "a1", a["id"])
	assert.Equal(t, "a1", a["_id"])
	assert.Equal(t, "The abstract.", a["content"])
	assert.Equal(t, "Title", a["title"])
	assert.Equal(t, []any{"Ada"}, a["authors"])
}

func TestDiscussMessage(t *testing.T) {
	data, err := json.Marshal(Discuss("What is X?"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"discuss","query":"What is X?"}`, string(data))
}

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"question.answered","data":[{"_id":"a1"}]}`))
	require.NoError(t, err)
	assert.Equal(t, TypeQuestionAnswered, f.Type)

	f, err = ParseFrame([]byte(`{"message":"Articles selected"}`))
	require.NoError(t, err)
	assert.Empty(t, f.Type)

	for _, bad := range []string{`not json`, `[1,2]`, `{"type":5}`, `{"type":"x","data":"nope"}`} {
		_, err := ParseFrame([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestAnswerCount(t *testing.T) {
	tests := []struct {
		raw   string
		count int
		has   bool
	}{
		{`{"_id":"a"}`, 1, false},
		{`{"_id":"a","answer":null}`, 1, false},
		{`{"_id":"a","answer":0}`, 1, false},
		{`{"_id":"a","answer":[]}`, 1, false},
		{`{"_id":"a","answer":["1"]}`, 1, true},
		{`{"_id":"a","answer":["1","2","3"]}`, 3, true},
	}
	for _, tt := range tests {
		var r Result
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
		assert.Equal(t, tt.count, r.AnswerCount(), tt.raw)
		assert.Equal(t, tt.has, r.HasAnswers(), tt.raw)
	}
}

func TestDecodeResults(t *testing.T) {
	results, err := DecodeResults(json.RawMessage(`[
		{"_id":"a1","content":"<span class='hglt__answer'>X</span>","answer":["1"],"score":0.7,"title":"T"}
	]`))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ID)
	assert.Equal(t, 0.7, results[0].Score)
	assert.Equal(t, "T", results[0].Title)
	assert.Contains(t, results[0].Content, "hglt__answer")

	_, err = DecodeResults(json.RawMessage(`{"not":"a list"}`))
	assert.Error(t, err)
}
