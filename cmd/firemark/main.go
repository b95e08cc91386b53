package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/firecrawl"
	"github.com/fwojciec/firemark/fs"
	firehttp "github.com/fwojciec/firemark/http"
	fireslog "github.com/fwojciec/firemark/slog"
)

func main() {
	ctx := context.Background()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Services, overridable for end-to-end testing. When nil, Run wires
	// the real implementations.
	Service  firemark.CrawlService
	Sitemaps firemark.SitemapService

	// Poll settings passed to crawl controllers. Zero values use the
	// crawl package defaults; tests shorten them.
	PollInterval time.Duration
	SubWaitCap   time.Duration
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("firemark"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	// Handle help flags using Kong
	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'firemark --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	service := m.Service
	if service == nil {
		opts := []firecrawl.Option{}
		if cli.APIKey != "" {
			opts = append(opts, firecrawl.WithAPIKey(cli.APIKey))
		}
		service = firecrawl.NewClient(cli.APIURL, opts...)
	}
	deps.Service = fireslog.NewLoggingCrawlService(service, deps.Logger)

	sitemaps := m.Sitemaps
	if sitemaps == nil {
		sitemaps = firehttp.NewSitemapService(nil)
	}
	deps.Sitemaps = fireslog.NewLoggingSitemapService(sitemaps, deps.Logger)

	deps.OutputDir = cli.Output
	deps.SectionConfig = cli.Section.Config
	deps.PollInterval = m.PollInterval
	deps.SubWaitCap = m.SubWaitCap
	deps.OpenStore = func(dir string) (firemark.CorpusStore, error) {
		return fs.NewStore(dir)
	}

	return kongCtx.Run(deps)
}
