package discussion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lotas/scicheck/internal/types"
)

// Frame types exchanged with the answering backend.
const (
	TypeSelectArticles   = "select_articles"
	TypeDiscuss          = "discuss"
	TypeQuestionAnswered = "question.answered"
)

// Outbound is a message sent to the backend.
type Outbound struct {
	Type     string           `json:"type"`
	Query    string           `json:"query,omitempty"`
	Articles []map[string]any `json:"articles,omitempty"`
}

// Discuss builds the question message.
func Discuss(query string) Outbound {
	return Outbound{Type: TypeDiscuss, Query: query}
}

// SelectArticles builds the connect-time message. Each article is sent with
// its full metadata plus id and content, where content is the abstract.
func SelectArticles(articles []types.Article) (Outbound, error) {
	msg := Outbound{Type: TypeSelectArticles, Articles: make([]map[string]any, 0, len(articles))}
	for _, a := range articles {
		raw, err := json.Marshal(a)
		if err != nil {
			return Outbound{}, fmt.Errorf("marshal article %s: %w", a.ID, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return Outbound{}, fmt.Errorf("normalize article %s: %w", a.ID, err)
		}
		fields["_id"] = a.ID
		fields["id"] = a.ID
		fields["content"] = a.Abstract
		msg.Articles = append(msg.Articles, fields)
	}
	return msg, nil
}

// Frame is an inbound message envelope. Type is empty for the backend's
// untyped replies such as {"message": ...} and {"error": ...}.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const envelopeSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string"},
    "data": {"type": "array"}
  }
}`

var envelope = mustSchema(envelopeSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return s
}

// ParseFrame decodes and validates an inbound frame.
func ParseFrame(data []byte) (Frame, error) {
	res, err := envelope.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("parse frame: %w", err)
	}
	if !res.Valid() {
		var msgs []string
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Frame{}, fmt.Errorf("invalid frame: %s", strings.Join(msgs, "; "))
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// Result is one per-article entry of a question.answered frame.
type Result struct {
	types.Article
	Answer json.RawMessage
}

func (r *Result) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.Article); err != nil {
		return err
	}
	var extra struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	r.Answer = extra.Answer
	return nil
}

// answerList returns the answer list and whether the answer is a list at all.
func (r Result) answerList() ([]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(r.Answer)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, false
	}
	return list, true
}

// HasAnswers reports whether the answer is a non-empty list.
func (r Result) HasAnswers() bool {
	list, _ := r.answerList()
	return len(list) > 0
}

// AnswerCount is the number of answers the result stands for. A missing,
// null, scalar or empty answer list counts as one direct answer.
func (r Result) AnswerCount() int {
	list, _ := r.answerList()
	if len(list) == 0 {
		return 1
	}
	return len(list)
}

// DecodeResults decodes the data array of a question.answered frame.
func DecodeResults(data json.RawMessage) ([]Result, error) {
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}
