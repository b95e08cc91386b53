package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/firemark"
)

// Ensure LoggingCrawlService implements firemark.CrawlService.
var _ firemark.CrawlService = (*LoggingCrawlService)(nil)

// LoggingCrawlService wraps a CrawlService with debug logging.
type LoggingCrawlService struct {
	next   firemark.CrawlService
	logger *slog.Logger
}

// NewLoggingCrawlService creates a new LoggingCrawlService.
func NewLoggingCrawlService(next firemark.CrawlService, logger *slog.Logger) *LoggingCrawlService {
	return &LoggingCrawlService{next: next, logger: logger}
}

// StartCrawl delegates to the wrapped service and logs the operation.
func (s *LoggingCrawlService) StartCrawl(ctx context.Context, req firemark.CrawlRequest) (jobID string, err error) {
	defer func(begin time.Time) {
		s.logger.Info("start crawl",
			"url", req.URL,
			"max_depth", req.MaxDepth,
			"limit", req.Limit,
			"job_id", jobID,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.StartCrawl(ctx, req)
}

// CrawlStatus delegates to the wrapped service and logs the observation.
func (s *LoggingCrawlService) CrawlStatus(ctx context.Context, jobID string) (snap *firemark.CrawlSnapshot, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"job_id", jobID,
			"duration", time.Since(begin),
			"err", err,
		}
		if snap != nil {
			attrs = append(attrs, "status", snap.Status, "pages", len(snap.Pages), "total", snap.Total)
		}
		s.logger.Debug("crawl status", attrs...)
	}(time.Now())
	return s.next.CrawlStatus(ctx, jobID)
}

// Scrape delegates to the wrapped service and logs the operation.
func (s *LoggingCrawlService) Scrape(ctx context.Context, req firemark.ScrapeRequest) (page *firemark.Page, err error) {
	defer func(begin time.Time) {
		s.logger.Info("scrape",
			"url", req.URL,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Scrape(ctx, req)
}

// CheckConnection delegates to the wrapped service and logs the result.
func (s *LoggingCrawlService) CheckConnection(ctx context.Context) (ok bool) {
	defer func(begin time.Time) {
		s.logger.Debug("connection check",
			"reachable", ok,
			"duration", time.Since(begin),
		)
	}(time.Now())
	return s.next.CheckConnection(ctx)
}
