package highlight

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	openTag    = regexp.MustCompile(`<span[^>]*>`)
	answerTag  = regexp.MustCompile(`<span[^>]*class=["']hglt__answer["'][^>]*>`)
	idAttr     = regexp.MustCompile(`\s+id=("[^"]*"|'[^']*')`)
	closingTag = "</span>"
)

// Result is the outcome of a span scan.
type Result struct {
	Count     int
	IDs       []string
	Fragments []string
}

// CompleteHTML appends the closing tags a fragment is missing.
func CompleteHTML(fragment string) string {
	opened := len(openTag.FindAllStringIndex(fragment, -1))
	closed := strings.Count(fragment, closingTag)
	if opened <= closed {
		return fragment
	}
	return fragment + strings.Repeat(closingTag, opened-closed)
}

// SpanID is the navigation id of the j-th answer marker of fragment i.
func SpanID(i, j int) string {
	return fmt.Sprintf("span-%d-%d", i, j)
}

// Extract closes every fragment and tags each answer marker with its
// navigation id. Ids follow fragment order, then document order.
func Extract(fragments []string) Result {
	return ExtractSelected(fragments, nil)
}

// ExtractSelected is Extract restricted to the fragments for which include
// returns true. Skipped fragments are only closed; their index still counts.
// A nil include scans everything.
func ExtractSelected(fragments []string, include func(int) bool) Result {
	res := Result{Fragments: make([]string, len(fragments))}
	for i, frag := range fragments {
		frag = CompleteHTML(frag)
		if include != nil && !include(i) {
			res.Fragments[i] = frag
			continue
		}
		j := 0
		res.Fragments[i] = answerTag.ReplaceAllStringFunc(frag, func(tag string) string {
			id := SpanID(i, j)
			j++
			res.IDs = append(res.IDs, id)
			return withID(tag, id)
		})
	}
	res.Count = len(res.IDs)
	return res
}

func withID(tag, id string) string {
	tag = idAttr.ReplaceAllString(tag, "")
	body := strings.TrimSuffix(tag, ">")
	selfClosing := strings.HasSuffix(body, "/")
	body = strings.TrimSuffix(body, "/")
	body = strings.TrimRight(body, " ")
	if selfClosing {
		return body + ` id="` + id + `"/>`
	}
	return body + ` id="` + id + `">`
}

// Keywords returns the distinct text of every <span class="{class}"> marker
// across fragments, in first-seen order.
func Keywords(fragments []string, class string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, frag := range fragments {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(frag))
		if err != nil {
			continue
		}
		doc.Find("span." + class).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text == "" || seen[text] {
				return
			}
			seen[text] = true
			out = append(out, text)
		})
	}
	return out
}

// PlainText strips markup from an HTML fragment.
func PlainText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Marked is one run of text in a fragment. SpanID is set for text inside an
// answer marker.
type Marked struct {
	Text   string
	SpanID string
}

// Segments splits an extracted fragment into plain and answer runs, in
// document order. Markup other than answer markers is dropped.
func Segments(fragment string) []Marked {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return []Marked{{Text: fragment}}
	}
	var out []Marked
	var walk func(s *goquery.Selection, span string)
	walk = func(s *goquery.Selection, span string) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := c.Text(); t != "" {
					if n := len(out); n > 0 && out[n-1].SpanID == span {
						out[n-1].Text += t
					} else {
						out = append(out, Marked{Text: t, SpanID: span})
					}
				}
				return
			}
			id := span
			if c.Is("span.hglt__answer") {
				if v, ok := c.Attr("id"); ok {
					id = v
				}
			}
			walk(c, id)
		})
	}
	walk(doc.Find("body"), "")
	return out
}
