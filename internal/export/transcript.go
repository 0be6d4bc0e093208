package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"

	"github.com/lotas/scicheck/internal/discussion"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Transcript renders an answered discussion as markdown. Answer spans are
// rendered bold.
func Transcript(v discussion.View) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", v.Question)
	if v.Multi {
		fmt.Fprintf(&b, "%d answers for this question.\n", len(v.SpanIDs))
	} else {
		fmt.Fprintf(&b, "%s for this question.\n", Answers(v.TotalAnswers))
	}

	for _, a := range v.Articles {
		fmt.Fprintf(&b, "\n## %s\n\n", a.Title)
		if a.HasAnswers {
			fmt.Fprintf(&b, "_%s_\n\n", Answers(a.Answers))
		}
		body, err := answerMarkdown(a.Content)
		if err != nil {
			return "", fmt.Errorf("convert %s: %w", a.ID, err)
		}
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func answerMarkdown(fragment string) (string, error) {
	if strings.TrimSpace(fragment) == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	doc.Find("span.hglt__answer").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("<strong>" + html.EscapeString(s.Text()) + "</strong>")
	})
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}
	md, err := mdConverter.ConvertString(body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md) + "\n", nil
}
