package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/lotas/scicheck/internal/config"
	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/history"
	"github.com/lotas/scicheck/internal/tui"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Library    tui.Library
	History    *history.Store
	Controller *discussion.Controller
	ExportDir  string
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	APIURL string `name:"api-url" help:"Search API base URL (overrides SCICHECK_API_URL)"`
	WSURL  string `name:"ws-url" help:"Discussion WebSocket base URL (overrides SCICHECK_WS_URL)"`
	DB     string `name:"db" help:"Database path (overrides SCICHECK_DB)"`

	TUI     TUICmd     `cmd:"" name:"tui" help:"Open the interactive interface"`
	Search  SearchCmd  `cmd:"" help:"Search articles"`
	Article ArticleCmd `cmd:"" help:"Show one article"`
	Ask     AskCmd     `cmd:"" help:"Ask a question about one or more articles"`
	History HistoryCmd `cmd:"" help:"Show, export or clear the question history"`
	Cite    CiteCmd    `cmd:"" help:"Print the stored citation strings of an article"`
}

func (c *CLI) apply(cfg *config.Config) {
	if c.APIURL != "" {
		cfg.APIURL = strings.TrimRight(c.APIURL, "/")
		cfg.WSURL = config.WebSocketURL(cfg.APIURL)
	}
	if c.WSURL != "" {
		cfg.WSURL = strings.TrimRight(c.WSURL, "/")
	}
	if c.DB != "" {
		cfg.DBPath = c.DB
	}
}

// TUICmd is the "tui" subcommand.
type TUICmd struct {
	Query   []string `arg:"" optional:"" help:"Initial search query"`
	Offline bool     `help:"Search the local article cache only"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query   []string `arg:"" help:"Search query"`
	Offline bool     `help:"Search the local article cache only"`
	JSON    bool     `name:"json" help:"Print hits as JSON"`
}

// ArticleCmd is the "article" subcommand.
type ArticleCmd struct {
	ID       string `arg:"" help:"Article id"`
	FullText bool   `name:"fulltext" help:"Also fetch the readable full text"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question []string      `arg:"" help:"Question to ask"`
	Articles []string      `name:"article" short:"a" required:"" help:"Article id (repeatable, at most 5)"`
	Timeout  time.Duration `default:"2m" help:"How long to wait for the answer"`
}

// HistoryCmd is the "history" subcommand.
type HistoryCmd struct {
	JSON  bool `name:"json" help:"Print the history as JSON"`
	Clear bool `help:"Delete the history"`
}

// CiteCmd is the "cite" subcommand.
type CiteCmd struct {
	ID     string `arg:"" help:"Article id"`
	Format string `short:"f" enum:"all,bibtex,apa,mla,iso690" default:"all" help:"Citation format (${enum})"`
}
