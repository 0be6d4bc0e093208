package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/export"
	"github.com/lotas/scicheck/internal/highlight"
	"github.com/lotas/scicheck/internal/selection"
	"github.com/lotas/scicheck/internal/tui"
	"github.com/lotas/scicheck/internal/types"
)

// Run executes the tui command.
func (c *TUICmd) Run(deps *Dependencies) error {
	model := tui.NewModel(deps.Ctx, tui.Options{
		Library:    deps.Library,
		History:    deps.History,
		Controller: deps.Controller,
		Query:      strings.Join(c.Query, " "),
		Offline:    c.Offline,
		ExportDir:  deps.ExportDir,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(deps.Ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && deps.Ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

func keywords(a types.Article) []string {
	if kw := highlight.Keywords(a.Highlights.Title, "hglt"); len(kw) > 0 {
		return kw
	}
	return highlight.Keywords(a.Highlights.Abstract, "hglt")
}

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	query := strings.TrimSpace(strings.Join(c.Query, " "))
	if query == "" {
		return errors.New("search query is empty")
	}
	hits, usedIndex, err := deps.Library.Search(deps.Ctx, query, c.Offline)
	if err != nil {
		return err
	}
	if usedIndex && !c.Offline {
		fmt.Fprintln(deps.Stderr, "API unreachable, showing cached articles.")
	}

	if c.JSON {
		out, err := export.HitsJSON(hits, keywords)
		if err != nil {
			return err
		}
		fmt.Fprintln(deps.Stdout, out)
		return nil
	}

	if len(hits) == 0 {
		fmt.Fprintln(deps.Stdout, "No articles found.")
		return nil
	}
	for i, a := range hits {
		fmt.Fprintf(deps.Stdout, "%d. %s\n", i+1, highlight.PlainText(a.Title))
		if kw := keywords(a); len(kw) > 0 {
			fmt.Fprintf(deps.Stdout, "   matches: %s\n", strings.Join(kw, ", "))
		}
		meta := []string{a.ID}
		if len(a.Authors) > 0 {
			meta = append(meta, strings.Join(a.Authors, ", "))
		}
		if a.PublicationDate != "" {
			meta = append(meta, a.PublicationDate)
		}
		if a.Container != "" {
			meta = append(meta, a.Container)
		}
		meta = append(meta, export.Citations(a.Citations))
		fmt.Fprintf(deps.Stdout, "   %s\n", strings.Join(meta, " · "))
	}
	return nil
}

// Run executes the article command.
func (c *ArticleCmd) Run(deps *Dependencies) error {
	a, err := deps.Library.Article(deps.Ctx, c.ID)
	if err != nil {
		return err
	}

	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(deps.Stdout, "%-10s %s\n", label+":", value)
		}
	}
	field("Title", highlight.PlainText(a.Title))
	field("Published", a.PublicationDate)
	field("Authors", strings.Join(a.Authors, ", "))
	field("Venue", a.Container)
	field("DOI", a.DOI)
	field("URL", a.URL())
	field("Citations", export.Citations(a.Citations))
	if a.Abstract != "" {
		fmt.Fprintf(deps.Stdout, "\n%s\n", highlight.PlainText(a.Abstract))
	}

	if !c.FullText {
		return nil
	}
	text, err := deps.Library.FullText(deps.Ctx, a)
	if err != nil {
		return fmt.Errorf("full text: %w", err)
	}
	fmt.Fprintf(deps.Stdout, "\n--- Full text ---\n\n%s\n", text)
	return nil
}

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	var sel selection.Selection
	for _, id := range c.Articles {
		if err := sel.Add(id); err != nil {
			return err
		}
	}
	ids, err := sel.Require()
	if err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(c.Question, " "))
	if question == "" {
		return discussion.ErrEmptyQuestion
	}

	ctx, cancel := context.WithTimeout(deps.Ctx, c.Timeout)
	defer cancel()

	var articles []types.Article
	if len(ids) == 1 {
		a, err := deps.Library.Article(ctx, ids[0])
		if err != nil {
			return err
		}
		articles = []types.Article{a}
	} else if articles, err = deps.Library.Articles(ctx, ids); err != nil {
		return err
	}

	ctrl := deps.Controller
	if err := ctrl.Open(ctx, articles); err != nil {
		return fmt.Errorf("open discussion: %w", err)
	}
	defer ctrl.Close()

	if err := ctrl.Submit(question); err != nil {
		return err
	}
	if err := waitForAnswer(ctx, ctrl); err != nil {
		return err
	}

	out, err := export.Transcript(ctrl.Snapshot())
	if err != nil {
		return err
	}
	fmt.Fprint(deps.Stdout, out)
	return nil
}

func waitForAnswer(ctx context.Context, ctrl *discussion.Controller) error {
	for {
		select {
		case u := <-ctrl.Updates():
			switch u.Kind {
			case discussion.UpdateAnswered:
				return nil
			case discussion.UpdateFailed, discussion.UpdateDisconnected:
				if u.Err != nil {
					return fmt.Errorf("connection lost: %w", u.Err)
				}
				return errors.New("connection lost")
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for answer: %w", ctx.Err())
		}
	}
}

// Run executes the history command.
func (c *HistoryCmd) Run(deps *Dependencies) error {
	if c.Clear {
		deps.History.Clear()
		fmt.Fprintln(deps.Stdout, "History cleared.")
		return nil
	}
	entries := deps.History.Load()
	if c.JSON {
		out, err := export.HistoryJSON(entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(deps.Stdout, out)
		return nil
	}
	fmt.Fprint(deps.Stdout, export.HistoryMarkdown(entries))
	return nil
}

var citeFormats = map[string]types.CitationFormat{
	"bibtex": types.CiteBibtex,
	"apa":    types.CiteAPA,
	"mla":    types.CiteMLA,
	"iso690": types.CiteISO690,
}

// Run executes the cite command.
func (c *CiteCmd) Run(deps *Dependencies) error {
	a, err := deps.Library.Article(deps.Ctx, c.ID)
	if err != nil {
		return err
	}

	formats := types.CitationFormats()
	if f, ok := citeFormats[c.Format]; ok {
		formats = []types.CitationFormat{f}
	}
	for i, f := range formats {
		if i > 0 {
			fmt.Fprintln(deps.Stdout)
		}
		text := a.Citation(f)
		if text == "" {
			text = "(not available)"
		}
		if len(formats) == 1 {
			fmt.Fprintln(deps.Stdout, text)
			continue
		}
		fmt.Fprintf(deps.Stdout, "%s:\n%s\n", f, text)
	}
	return nil
}
