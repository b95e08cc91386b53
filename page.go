package firemark

import (
	"context"
	"time"
)

// Page represents a single fetched page.
type Page struct {
	URL     string
	Title   string
	Content string // Markdown
}

// Validate returns an error if the page contains invalid fields.
func (p *Page) Validate() error {
	if p.URL == "" {
		return Errorf(EINVALID, "page URL required")
	}
	return nil
}

// JobStatus is the state of a crawl job as reported by the service on a
// single poll. It is a noisy signal, not ground truth: a job may report
// StatusCompleted with an empty result and later behave as if it were
// still scraping, so callers corroborate it with data before trusting it.
type JobStatus string

// Job statuses reported by the crawl service.
const (
	StatusQueued    JobStatus = "queued"
	StatusScraping  JobStatus = "scraping"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// CrawlSnapshot is one observation of a crawl job.
type CrawlSnapshot struct {
	Status JobStatus
	Pages  []*Page
	Total  int    // total page count reported by the service
	Err    string // server-reported error message, if any
}

// CrawlRequest describes a multi-page crawl job.
type CrawlRequest struct {
	URL      string
	MaxDepth int
	Limit    int

	// WaitTimeout bounds the wall-clock wait for job completion, measured
	// from loop entry. Zero or negative means wait indefinitely; that is a
	// valid configuration, not an error.
	WaitTimeout time.Duration

	// OnlyMainContent asks the service to strip navigation and chrome.
	OnlyMainContent bool
}

// ScrapeRequest describes a one-shot single-page fetch.
type ScrapeRequest struct {
	URL             string
	WaitFor         time.Duration // extra page-load wait, optional
	OnlyMainContent bool
}

// CrawlService is the gateway to the remote crawl API. Implementations own
// all per-call timeout and retry policy so that callers only see a clean
// result or a classified error.
type CrawlService interface {
	// StartCrawl submits a crawl job and returns its server-assigned ID.
	StartCrawl(ctx context.Context, req CrawlRequest) (string, error)

	// CrawlStatus fetches a single status observation for a job.
	// Transient connection errors are retried internally with bounded
	// backoff before an ECONNECTION error surfaces.
	CrawlStatus(ctx context.Context, jobID string) (*CrawlSnapshot, error)

	// Scrape fetches a single page. Request-timeout class failures are
	// retried with escalating per-attempt timeouts; other HTTP errors
	// are not retried.
	Scrape(ctx context.Context, req ScrapeRequest) (*Page, error)

	// CheckConnection reports whether the service looks reachable.
	// Best effort; never returns an error.
	CheckConnection(ctx context.Context) bool
}
