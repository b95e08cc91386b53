package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Service  firemark.CrawlService
	Sitemaps firemark.SitemapService

	// OutputDir is the default corpus directory. Section commands use
	// their own per-section directories instead.
	OutputDir string

	// SectionConfig is the path to sections_config.json.
	SectionConfig string

	// OpenStore opens a corpus store rooted at dir.
	OpenStore func(dir string) (firemark.CorpusStore, error)

	// Poll settings for crawl controllers. Zero values use the crawl
	// package defaults.
	PollInterval time.Duration
	SubWaitCap   time.Duration
}

// controller builds a crawl controller over the given store.
func (d *Dependencies) controller(store firemark.CorpusStore, incremental bool) *crawl.Controller {
	return &crawl.Controller{
		Service:      d.Service,
		Store:        store,
		Logger:       d.Logger,
		PollInterval: d.PollInterval,
		SubWaitCap:   d.SubWaitCap,
		Incremental:  incremental,
	}
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	APIURL  string `name:"api-url" env:"FIRECRAWL_API_URL" default:"http://localhost:3002" help:"Crawl API base URL"`
	APIKey  string `name:"api-key" env:"FIRECRAWL_API_KEY" help:"API key for the crawl service"`
	Output  string `short:"o" env:"FIREMARK_OUTPUT" default:"./output" help:"Output directory for saved pages"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Scrape  ScrapeCmd  `cmd:"" help:"Scrape a single page and save it as markdown"`
	Crawl   CrawlCmd   `cmd:"" help:"Crawl a website and save all pages"`
	Update  UpdateCmd  `cmd:"" help:"Check the sitemap for pages that changed since they were saved"`
	Check   CheckCmd   `cmd:"" help:"Show the status of a crawl job"`
	Retry   RetryCmd   `cmd:"" help:"Re-poll a completed job whose data never arrived"`
	Section SectionCmd `cmd:"" help:"Work with named site sections from sections_config.json"`
}

// ScrapeCmd is the "scrape" subcommand.
type ScrapeCmd struct {
	URL         string        `arg:"" help:"Page URL to scrape"`
	WaitFor     time.Duration `help:"Extra page-load wait before scraping"`
	FullContent bool          `help:"Keep navigation and page chrome"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL           string        `arg:"" help:"Seed URL to crawl"`
	MaxDepth      int           `default:"2" help:"Maximum crawl depth"`
	Limit         int           `default:"10" help:"Maximum number of pages"`
	Timeout       time.Duration `default:"300s" help:"Wall-clock wait for completion (0 waits forever)"`
	FullContent   bool          `help:"Keep navigation and page chrome"`
	NoIncremental bool          `help:"Disable saving pages as they appear during polling"`
}

// UpdateCmd is the "update" subcommand.
type UpdateCmd struct {
	URL         string `arg:"" help:"Site or section URL to check"`
	ShowURLs    bool   `name:"show-urls" help:"List the URLs that need updating"`
	AutoUpdate  bool   `name:"auto-update" help:"Re-scrape the changed pages"`
	FullContent bool   `help:"Keep navigation and page chrome"`
}

// CheckCmd is the "check" subcommand.
type CheckCmd struct {
	JobID string `arg:"" optional:"" help:"Job ID to check (defaults to the last recorded job)"`
}

// RetryCmd is the "retry" subcommand.
type RetryCmd struct {
	JobID      string `arg:"" optional:"" help:"Job ID to retry (defaults to the last recorded job)"`
	MaxRetries int    `default:"10" help:"Maximum retry attempts"`
}

// SectionCmd groups the section subcommands.
type SectionCmd struct {
	Config string `default:"sections_config.json" help:"Path to the sections config file"`

	List     SectionListCmd     `cmd:"" help:"List configured sections"`
	Crawl    SectionCrawlCmd    `cmd:"" help:"Crawl one section"`
	CrawlAll SectionCrawlAllCmd `cmd:"" name:"crawl-all" help:"Crawl every section"`
	Update   SectionUpdateCmd   `cmd:"" help:"Check one section for updates"`
}

// SectionListCmd lists all configured sections.
type SectionListCmd struct{}

// SectionCrawlCmd crawls a single configured section.
type SectionCrawlCmd struct {
	Key string `arg:"" help:"Section key"`
}

// SectionCrawlAllCmd crawls every configured section in order.
type SectionCrawlAllCmd struct{}

// SectionUpdateCmd checks one section for updates.
type SectionUpdateCmd struct {
	Key        string `arg:"" help:"Section key"`
	ShowURLs   bool   `name:"show-urls" help:"List the URLs that need updating"`
	AutoUpdate bool   `name:"auto-update" help:"Re-scrape the changed pages"`
}

// reportError prints an error with an actionable hint for its class.
func reportError(w io.Writer, err error) {
	switch firemark.ErrorCode(err) {
	case firemark.ECONNECTION:
		fmt.Fprintf(w, "Connection error: %s\n", firemark.ErrorMessage(err))
		fmt.Fprintln(w, "Hint: make sure the crawl service is running and --api-url points at it")
	case firemark.ETIMEOUT:
		fmt.Fprintf(w, "Timeout: %s\n", firemark.ErrorMessage(err))
		fmt.Fprintln(w, "Hint: try increasing --timeout or reducing --limit")
	case firemark.ESTORAGE:
		fmt.Fprintf(w, "Storage error: %s\n", firemark.ErrorMessage(err))
		fmt.Fprintln(w, "Hint: check file permissions and disk space")
	default:
		fmt.Fprintf(w, "Error: %s\n", firemark.ErrorMessage(err))
	}
}
