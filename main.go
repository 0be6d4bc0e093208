package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/lotas/scicheck/internal/api"
	"github.com/lotas/scicheck/internal/applog"
	"github.com/lotas/scicheck/internal/catalog"
	"github.com/lotas/scicheck/internal/config"
	"github.com/lotas/scicheck/internal/discussion"
	"github.com/lotas/scicheck/internal/fulltext"
	"github.com/lotas/scicheck/internal/history"
	"github.com/lotas/scicheck/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	Config *config.Config
	DB     *sql.DB

	catalog *catalog.Catalog
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases the catalog, database and log.
func (m *Main) Close() error {
	if m.catalog != nil {
		m.catalog.Close()
	}
	var err error
	if m.DB != nil {
		err = m.DB.Close()
	}
	applog.Close()
	return err
}

// Run executes the CLI with the given arguments. Without a command the TUI
// starts.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("scicheck"),
		kong.Description("Search research articles and ask questions about them."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		args = []string{"tui"}
	}
	switch args[0] {
	case "help", "--help", "-h":
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg := m.Config
	if cfg == nil {
		if cfg, err = config.Load(); err != nil {
			return err
		}
	}
	cli.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Config = cfg

	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(stderr, "warning: logging disabled: %v\n", err)
	}

	m.DB, err = storage.OpenDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(stderr, "Hint: Set SCICHECK_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", cfg.DBPath, err)
	}
	defer m.Close()

	client := api.New(cfg.APIURL, api.WithTimeout(cfg.HTTPTimeout), api.WithRate(cfg.Rate))
	m.catalog, err = catalog.New(client, m.DB, fulltext.NewFetcher(cfg.HTTPTimeout))
	if err != nil {
		return fmt.Errorf("failed to load article cache: %w", err)
	}

	deps.Library = m.catalog
	deps.History = history.NewStore(storage.KV{DB: m.DB}, cfg.HistoryMax)
	deps.Controller = discussion.NewController(discussion.NewConn(cfg.WSURL), deps.History)
	deps.ExportDir = cfg.ExportDir

	applog.Info("cli.run", "command", kongCtx.Command())
	return kongCtx.Run(deps)
}
