// Package crawl orchestrates crawl jobs against a remote crawl service.
// It drives the poll loop for a submitted job, interprets the service's
// noisy status signal, saves pages incrementally as they appear, and
// reconciles the final payload with everything saved along the way.
package crawl

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/firemark"
	"github.com/google/uuid"
)

// Polling defaults, tuned against the reference service's known flakiness.
// All of them are overridable on the Controller.
const (
	DefaultPollInterval        = 5 * time.Second
	DefaultSubWaitCap          = 60 * time.Second
	DefaultMaxEmptyCompletions = 3
	DefaultMaxConnFailures     = 5
)

// Controller drives a crawl job from submission to a terminal state.
//
// The service's "completed" signal is empirically unreliable. A job may
// report completed with an empty data array and later behave as if still
// scraping, so the controller treats completion as provisional until it is
// corroborated by data, while bounding how long it waits for that
// corroboration.
type Controller struct {
	Service firemark.CrawlService
	Store   firemark.CorpusStore
	Logger  *slog.Logger

	// PollInterval is the delay between status checks.
	PollInterval time.Duration

	// SubWaitCap bounds the aggressive wait for data after the first
	// completed-but-empty observation.
	SubWaitCap time.Duration

	// MaxEmptyCompletions bounds how many times a completed-but-empty
	// status may recur before the empty result is returned as-is.
	MaxEmptyCompletions int

	// MaxConnFailures bounds consecutive status-check connection failures
	// before the run is abandoned.
	MaxConnFailures int

	// Incremental enables saving pages to the store as they appear during
	// polling, before the job reaches a terminal state. This is the
	// primary mechanism by which partial results survive a timeout.
	Incremental bool
}

// Result is the outcome of a completed run.
type Result struct {
	JobID  string
	RunID  string
	Status firemark.JobStatus
	Pages  []*firemark.Page
	Total  int

	// SavedURLs lists the URLs saved incrementally during this run, in
	// save order.
	SavedURLs []string

	saved map[string]firemark.IndexEntry
}

// Saved reports whether the URL was saved during this run.
func (r *Result) Saved(url string) bool {
	_, ok := r.saved[url]
	return ok
}

// Run submits a crawl job and polls it to a terminal state.
//
// Pages may appear in more than one poll response, so every save path is
// idempotent: an in-memory per-run set tracks what has already been saved.
// With a positive WaitTimeout the loop raises ETIMEOUT when the budget is
// exhausted without a terminal state; zero or negative means wait forever.
func (c *Controller) Run(ctx context.Context, req firemark.CrawlRequest) (*Result, error) {
	jobID, err := c.Service.StartCrawl(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		JobID: jobID,
		RunID: uuid.NewString(),
		saved: make(map[string]firemark.IndexEntry),
	}

	// Record the handle so a diagnostic tool can resume the job later.
	// Bookkeeping only; a failure here must not abort the run.
	if err := c.Store.RecordJob(jobID, req.URL, res.RunID); err != nil {
		c.logger().Warn("record job handle", "job_id", jobID, "error", err)
	}

	c.logger().Info("crawl started", "job_id", jobID, "url", req.URL, "max_depth", req.MaxDepth, "limit", req.Limit)

	start := time.Now()
	emptyCompletions := 0
	connFailures := 0
	var lastStatus firemark.JobStatus

	for c.withinBudget(start, req.WaitTimeout) {
		snap, err := c.Service.CrawlStatus(ctx, jobID)
		if err != nil {
			if firemark.ErrorCode(err) != firemark.ECONNECTION {
				return nil, err
			}

			connFailures++
			if connFailures >= c.maxConnFailures() {
				return nil, firemark.Errorf(firemark.ECONNECTION,
					"crawl job %s abandoned after %d consecutive connection failures; the job may still be running on the server: %s",
					jobID, connFailures, firemark.ErrorMessage(err))
			}

			c.logger().Warn("status check failed, will retry",
				"job_id", jobID, "failures", connFailures, "max", c.maxConnFailures(), "error", err)
			if err := sleep(ctx, 2*c.pollInterval()); err != nil {
				return nil, err
			}
			continue
		}
		connFailures = 0
		lastStatus = snap.Status
		res.Status = snap.Status
		res.Total = snap.Total

		c.savePages(ctx, res, snap.Pages)

		switch snap.Status {
		case firemark.StatusFailed:
			msg := snap.Err
			if msg == "" {
				msg = "unknown error"
			}
			return nil, firemark.Errorf(firemark.EAPI, "crawl job %s failed: %s", jobID, msg)

		case firemark.StatusCompleted:
			if len(snap.Pages) > 0 {
				res.Pages = snap.Pages
				c.logger().Info("crawl completed", "job_id", jobID, "pages", len(snap.Pages))
				return res, nil
			}

			emptyCompletions++
			c.logger().Warn("completed but no data yet",
				"job_id", jobID, "attempt", emptyCompletions, "max", c.maxEmptyCompletions(), "total_reported", snap.Total)

			if emptyCompletions == 1 {
				snap, err := c.awaitData(ctx, res, start, req.WaitTimeout)
				if err != nil {
					return nil, err
				}
				if snap != nil {
					if len(snap.Pages) > 0 {
						res.Status = snap.Status
						res.Pages = snap.Pages
						res.Total = snap.Total
						return res, nil
					}
					if snap.Status != firemark.StatusCompleted {
						// Job sprang back to life; resume the outer loop.
						emptyCompletions = 0
						lastStatus = snap.Status
						continue
					}
				}
			}

			if emptyCompletions >= c.maxEmptyCompletions() {
				c.logger().Warn("giving up waiting for data, returning empty result",
					"job_id", jobID, "attempts", emptyCompletions, "saved_incrementally", len(res.SavedURLs))
				res.Pages = nil
				return res, nil
			}

			if err := sleep(ctx, c.pollInterval()); err != nil {
				return nil, err
			}

		default:
			emptyCompletions = 0
			c.logger().Debug("polling", "job_id", jobID, "status", snap.Status,
				"pages", len(snap.Pages), "total", snap.Total, "elapsed", time.Since(start).Round(time.Second))
			if err := sleep(ctx, c.pollInterval()); err != nil {
				return nil, err
			}
		}
	}

	return nil, firemark.Errorf(firemark.ETIMEOUT,
		"crawl job %s timed out after %s; last status: %s", jobID, req.WaitTimeout, statusOrUnknown(lastStatus))
}

// awaitData polls aggressively for data after the first completed-but-empty
// observation, for up to SubWaitCap or the remaining outer budget,
// whichever is smaller. It returns the last snapshot observed, or nil when
// the wait expired without any change.
func (c *Controller) awaitData(ctx context.Context, res *Result, start time.Time, budget time.Duration) (*firemark.CrawlSnapshot, error) {
	waitCap := c.subWaitCap()
	if budget > 0 {
		if remaining := budget - time.Since(start); remaining < waitCap {
			waitCap = remaining
		}
	}
	waitStart := time.Now()

	for time.Since(waitStart) < waitCap && c.withinBudget(start, budget) {
		snap, err := c.Service.CrawlStatus(ctx, res.JobID)
		if err != nil {
			return nil, err
		}

		if len(snap.Pages) > 0 {
			c.logger().Info("data now available", "job_id", res.JobID, "pages", len(snap.Pages))
			c.savePages(ctx, res, snap.Pages)
			return snap, nil
		}
		if snap.Status != firemark.StatusCompleted {
			return snap, nil
		}

		if err := sleep(ctx, c.pollInterval()); err != nil {
			return nil, err
		}
	}

	// One last look before giving up on this occurrence.
	snap, err := c.Service.CrawlStatus(ctx, res.JobID)
	if err != nil {
		return nil, err
	}
	if len(snap.Pages) > 0 {
		c.savePages(ctx, res, snap.Pages)
	}
	return snap, nil
}

// savePages upserts every page not yet saved this run. A failed save is
// logged and skipped; the rest of the batch still saves.
func (c *Controller) savePages(ctx context.Context, res *Result, pages []*firemark.Page) {
	if !c.Incremental || len(pages) == 0 {
		return
	}

	saved := 0
	for _, page := range pages {
		if _, ok := res.saved[page.URL]; ok {
			continue
		}
		if _, err := c.Store.UpsertPage(ctx, page); err != nil {
			c.logger().Warn("incremental save failed", "url", page.URL, "error", err)
			continue
		}
		res.saved[page.URL] = firemark.IndexEntry{
			Title: page.Title,
			URL:   page.URL,
			File:  c.savedFile(page.URL),
		}
		res.SavedURLs = append(res.SavedURLs, page.URL)
		saved++
	}
	if saved > 0 {
		c.logger().Info("saved pages incrementally", "count", saved, "total_saved", len(res.SavedURLs))
	}
}

// Reconcile merges the final payload with the pages saved incrementally
// during the run, then rebuilds the index from the union of both. The
// union matters: incremental saves may hold pages the final payload
// omitted, and the final payload may hold pages that never appeared in an
// intermediate poll. It returns the number of URLs in the reconciled set.
func (c *Controller) Reconcile(ctx context.Context, res *Result) (int, error) {
	for _, page := range res.Pages {
		if _, ok := res.saved[page.URL]; ok {
			continue
		}
		if _, err := c.Store.UpsertPage(ctx, page); err != nil {
			c.logger().Warn("save failed during reconciliation", "url", page.URL, "error", err)
			continue
		}
		res.saved[page.URL] = firemark.IndexEntry{
			Title: page.Title,
			URL:   page.URL,
			File:  c.savedFile(page.URL),
		}
		res.SavedURLs = append(res.SavedURLs, page.URL)
	}

	if len(res.saved) == 0 {
		return 0, nil
	}

	entries := make([]firemark.IndexEntry, 0, len(res.saved))
	for _, url := range res.SavedURLs {
		entries = append(entries, res.saved[url])
	}
	if err := c.Store.WriteIndex(entries); err != nil {
		return len(entries), err
	}
	return len(entries), nil
}

func (c *Controller) savedFile(url string) string {
	if entry, ok := c.Store.Lookup(url); ok {
		return entry.File
	}
	return ""
}

func (c *Controller) withinBudget(start time.Time, budget time.Duration) bool {
	return budget <= 0 || time.Since(start) < budget
}

func (c *Controller) pollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return DefaultPollInterval
}

func (c *Controller) subWaitCap() time.Duration {
	if c.SubWaitCap > 0 {
		return c.SubWaitCap
	}
	return DefaultSubWaitCap
}

func (c *Controller) maxEmptyCompletions() int {
	if c.MaxEmptyCompletions > 0 {
		return c.MaxEmptyCompletions
	}
	return DefaultMaxEmptyCompletions
}

func (c *Controller) maxConnFailures() int {
	if c.MaxConnFailures > 0 {
		return c.MaxConnFailures
	}
	return DefaultMaxConnFailures
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusOrUnknown(status firemark.JobStatus) string {
	if status == "" {
		return "unknown"
	}
	return string(status)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
