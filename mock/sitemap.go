package mock

import (
	"context"

	"github.com/fwojciec/firemark"
)

var _ firemark.SitemapService = (*SitemapService)(nil)

// SitemapService is a mock implementation of firemark.SitemapService.
type SitemapService struct {
	EntriesFn func(ctx context.Context, baseURL string) ([]firemark.SitemapEntry, error)
}

func (s *SitemapService) Entries(ctx context.Context, baseURL string) ([]firemark.SitemapEntry, error) {
	return s.EntriesFn(ctx, baseURL)
}
