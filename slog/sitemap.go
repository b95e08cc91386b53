package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/firemark"
)

// Ensure LoggingSitemapService implements firemark.SitemapService.
var _ firemark.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService wraps a SitemapService with debug logging.
type LoggingSitemapService struct {
	next   firemark.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next firemark.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// Entries delegates to the wrapped service and logs the operation.
func (s *LoggingSitemapService) Entries(ctx context.Context, baseURL string) (entries []firemark.SitemapEntry, err error) {
	defer func(begin time.Time) {
		s.logger.Info("sitemap discovery",
			"url", baseURL,
			"count", len(entries),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Entries(ctx, baseURL)
}
