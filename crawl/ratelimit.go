package crawl

import (
	"context"
	"net"
	"strings"
	"sync"

	"github.com/fwojciec/firemark"
	"golang.org/x/time/rate"
)

var _ firemark.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter rate-limits requests per domain with one token bucket per
// host. Requests to different hosts never wait on each other. Host keys
// are normalized (case folded, port stripped) so that URL variants of the
// same site share one bucket.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
}

// NewDomainLimiter creates a DomainLimiter allowing rps requests per second
// to each host, with a burst of 1.
func NewDomainLimiter(rps float64) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
	}
}

// Wait blocks until the rate limit allows a request to the domain.
// Returns an error if the context is canceled before the wait completes.
func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	key := normalizeDomain(domain)

	d.mu.Lock()
	limiter, ok := d.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.rps), 1)
		d.limiters[key] = limiter
	}
	d.mu.Unlock()

	return limiter.Wait(ctx)
}

// normalizeDomain folds case and strips any port, so "Example.com:443" and
// "example.com" resolve to the same bucket.
func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if host, _, err := net.SplitHostPort(domain); err == nil {
		return host
	}
	return domain
}
