package firemark

import (
	"context"
	"strings"
	"time"
)

// SitemapEntry is one URL reported by a site's sitemap. LastMod is kept in
// its raw string form because parseability is significant: an entry whose
// lastmod cannot be parsed is treated as changed.
type SitemapEntry struct {
	URL     string
	LastMod string
}

// SitemapService discovers sitemap entries for a site.
type SitemapService interface {
	// Entries returns all entries from the site's sitemap. It checks
	// robots.txt for sitemap directives, falls back to /sitemap.xml, and
	// resolves sitemap indexes recursively. Returns an empty slice (not
	// nil) when no sitemap is found.
	Entries(ctx context.Context, baseURL string) ([]SitemapEntry, error)
}

// DomainLimiter throttles requests per domain.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled before the wait
	// completes.
	Wait(ctx context.Context, domain string) error
}

// lastModLayouts are the timestamp forms observed in real sitemaps.
var lastModLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseLastMod parses a sitemap lastmod value. The second return value
// reports whether the value was parseable.
func ParseLastMod(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PlanUpdates compares sitemap entries against the recorded scrape times
// and returns the URLs that need re-fetching, in sitemap order.
//
// A URL needs updating when it is absent from scraped, when its lastmod is
// parseable and strictly newer than its recorded scrape time, or when
// either timestamp is unparseable (fail open: re-fetching is preferred
// over silently missing an update). Entries with no lastmod at all carry
// no change signal and are skipped when already scraped.
//
// If pathFilter is non-empty, only entries whose URL contains it are
// considered.
func PlanUpdates(entries []SitemapEntry, scraped map[string]time.Time, pathFilter string) []string {
	var updated []string
	for _, entry := range entries {
		if pathFilter != "" && !strings.Contains(entry.URL, pathFilter) {
			continue
		}

		scrapedAt, known := scraped[entry.URL]
		if !known {
			updated = append(updated, entry.URL)
			continue
		}

		if entry.LastMod == "" {
			continue
		}

		lastMod, ok := ParseLastMod(entry.LastMod)
		if !ok || scrapedAt.IsZero() {
			// Unparseable on either side: assume changed.
			updated = append(updated, entry.URL)
			continue
		}

		if lastMod.After(scrapedAt) {
			updated = append(updated, entry.URL)
		}
	}
	return updated
}
