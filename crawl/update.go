package crawl

import (
	"context"
	"io"
	"log/slog"
	"net/url"

	"github.com/fwojciec/firemark"
)

// UpdateRunner re-fetches a planned list of URLs one page at a time.
// Requests go through a per-domain rate limiter so that a large worklist
// does not hammer one site.
type UpdateRunner struct {
	Service firemark.CrawlService
	Store   firemark.CorpusStore
	Limiter firemark.DomainLimiter
	Logger  *slog.Logger

	// OnlyMainContent is passed through to every scrape.
	OnlyMainContent bool
}

// UpdateResult summarizes an update run.
type UpdateResult struct {
	Updated int
	Failed  int
}

// Run scrapes and saves each URL in order. A failure on one URL is counted
// and the run moves on; only context cancellation stops it early.
func (r *UpdateRunner) Run(ctx context.Context, urls []string) (*UpdateResult, error) {
	res := &UpdateResult{}

	for i, rawURL := range urls {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		if r.Limiter != nil {
			domain := ""
			if u, err := url.Parse(rawURL); err == nil {
				domain = u.Host
			}
			if err := r.Limiter.Wait(ctx, domain); err != nil {
				return res, err
			}
		}

		r.logger().Info("updating page", "url", rawURL, "progress", i+1, "total", len(urls))

		page, err := r.Service.Scrape(ctx, firemark.ScrapeRequest{
			URL:             rawURL,
			OnlyMainContent: r.OnlyMainContent,
		})
		if err != nil {
			r.logger().Warn("update failed", "url", rawURL, "error", err)
			res.Failed++
			continue
		}

		if _, err := r.Store.UpsertPage(ctx, page); err != nil {
			r.logger().Warn("save failed", "url", rawURL, "error", err)
			res.Failed++
			continue
		}
		res.Updated++
	}

	return res, nil
}

func (r *UpdateRunner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
