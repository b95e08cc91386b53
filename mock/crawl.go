package mock

import (
	"context"

	"github.com/fwojciec/firemark"
)

var _ firemark.CrawlService = (*CrawlService)(nil)

// CrawlService is a mock implementation of firemark.CrawlService.
type CrawlService struct {
	StartCrawlFn      func(ctx context.Context, req firemark.CrawlRequest) (string, error)
	CrawlStatusFn     func(ctx context.Context, jobID string) (*firemark.CrawlSnapshot, error)
	ScrapeFn          func(ctx context.Context, req firemark.ScrapeRequest) (*firemark.Page, error)
	CheckConnectionFn func(ctx context.Context) bool
}

func (s *CrawlService) StartCrawl(ctx context.Context, req firemark.CrawlRequest) (string, error) {
	return s.StartCrawlFn(ctx, req)
}

func (s *CrawlService) CrawlStatus(ctx context.Context, jobID string) (*firemark.CrawlSnapshot, error) {
	return s.CrawlStatusFn(ctx, jobID)
}

func (s *CrawlService) Scrape(ctx context.Context, req firemark.ScrapeRequest) (*firemark.Page, error) {
	return s.ScrapeFn(ctx, req)
}

func (s *CrawlService) CheckConnection(ctx context.Context) bool {
	return s.CheckConnectionFn(ctx)
}
