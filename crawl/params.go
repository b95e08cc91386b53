package crawl

import (
	"net/url"
	"strings"
	"time"

	"github.com/fwojciec/firemark"
)

// Params are crawl parameters derived from a sitemap.
type Params struct {
	MaxDepth    int
	Limit       int
	WaitTimeout time.Duration
}

// Fallback parameters used when the sitemap yields nothing.
const (
	FallbackMaxDepth    = 2
	FallbackLimit       = 50
	FallbackWaitTimeout = 10 * time.Minute
)

// Timeout estimate inputs: a fixed base, a per-page cost, and a per-depth
// cost, padded by half again to absorb server slowness.
const (
	timeoutBase     = 30 * time.Second
	timeoutPerPage  = 3 * time.Second
	timeoutPerDepth = 10 * time.Second
	timeoutPadding  = 1.5
	minWaitTimeout  = time.Minute
	maxWaitTimeout  = time.Hour
)

// AutoParams derives crawl parameters for a site section from its sitemap.
// The page limit is the number of sitemap entries under the section URL,
// the depth is the deepest path level below it, and the timeout is an
// estimate scaled by both. With no matching entries the fallbacks apply.
func AutoParams(sectionURL string, entries []firemark.SitemapEntry) Params {
	count, depth := analyzeSection(sectionURL, entries)
	if depth == 0 {
		depth = 1
	}
	if count == 0 {
		return Params{
			MaxDepth:    FallbackMaxDepth,
			Limit:       FallbackLimit,
			WaitTimeout: FallbackWaitTimeout,
		}
	}

	timeout := time.Duration(float64(timeoutBase+
		time.Duration(count)*timeoutPerPage+
		time.Duration(depth)*timeoutPerDepth) * timeoutPadding)
	timeout = max(minWaitTimeout, min(timeout, maxWaitTimeout))

	return Params{
		MaxDepth:    depth,
		Limit:       count,
		WaitTimeout: timeout,
	}
}

// analyzeSection counts sitemap entries under the section URL and measures
// the deepest path level below it.
func analyzeSection(sectionURL string, entries []firemark.SitemapEntry) (count, depth int) {
	base, err := url.Parse(sectionURL)
	if err != nil {
		return 0, 0
	}
	basePath := strings.TrimSuffix(base.Path, "/")

	for _, entry := range entries {
		u, err := url.Parse(entry.URL)
		if err != nil || u.Host != base.Host {
			continue
		}
		path := strings.TrimSuffix(u.Path, "/")
		if !strings.HasPrefix(path, basePath) {
			continue
		}
		count++

		rel := strings.Trim(strings.TrimPrefix(path, basePath), "/")
		if rel == "" {
			continue
		}
		if d := strings.Count(rel, "/") + 1; d > depth {
			depth = d
		}
	}
	return count, depth
}
