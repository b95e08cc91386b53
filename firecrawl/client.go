// Package firecrawl provides the HTTP gateway to a Firecrawl-compatible
// crawl API. It owns all per-call timeout and retry policy: the remote
// service is known to time out and misbehave in inconsistent ways, so every
// transient-fault judgment call is made here, and callers only see a clean
// result or a classified error.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/firemark"
)

// Default per-call budgets and retry schedules. These are empirically tuned
// against one specific service's flakiness; override them with Options
// rather than assuming they are optimal.
var (
	DefaultStartTimeout  = 60 * time.Second
	DefaultStatusTimeout = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second

	// Scrape attempts escalate the per-attempt timeout: the first budget is
	// known to work for most pages, the later ones give slow pages a chance.
	DefaultScrapeTimeouts = []time.Duration{120 * time.Second, 150 * time.Second, 180 * time.Second}

	// Fixed delays between retry attempts.
	DefaultRetryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}
)

// DefaultStatusAttempts is how many times a status fetch retries connection
// errors before surfacing ECONNECTION.
const DefaultStatusAttempts = 3

// LogFunc is the signature for an optional diagnostic logging function.
type LogFunc func(format string, args ...any)

// Ensure Client implements firemark.CrawlService at compile time.
var _ firemark.CrawlService = (*Client)(nil)

// Client talks to a Firecrawl-compatible API over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logf    LogFunc

	startTimeout   time.Duration
	statusTimeout  time.Duration
	probeTimeout   time.Duration
	scrapeTimeouts []time.Duration
	retryDelays    []time.Duration
	statusAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token attached to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets the underlying HTTP client. The client should not
// have its own Timeout set; per-call deadlines are applied via context.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithScrapeTimeouts sets the escalating per-attempt timeouts for Scrape.
// The number of timeouts determines the number of attempts.
func WithScrapeTimeouts(timeouts []time.Duration) Option {
	return func(c *Client) { c.scrapeTimeouts = timeouts }
}

// WithRetryDelays sets the delays between retry attempts.
func WithRetryDelays(delays []time.Duration) Option {
	return func(c *Client) { c.retryDelays = delays }
}

// WithStatusAttempts sets how many times CrawlStatus retries connection
// errors before giving up.
func WithStatusAttempts(n int) Option {
	return func(c *Client) { c.statusAttempts = n }
}

// WithTimeouts sets the per-call budgets for starting a crawl, fetching
// status, and probing connectivity.
func WithTimeouts(start, status, probe time.Duration) Option {
	return func(c *Client) {
		c.startTimeout = start
		c.statusTimeout = status
		c.probeTimeout = probe
	}
}

// WithLogFunc sets an optional function called for retry diagnostics.
func WithLogFunc(logf LogFunc) Option {
	return func(c *Client) { c.logf = logf }
}

// NewClient creates a Client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		client:         &http.Client{},
		startTimeout:   DefaultStartTimeout,
		statusTimeout:  DefaultStatusTimeout,
		probeTimeout:   DefaultProbeTimeout,
		scrapeTimeouts: DefaultScrapeTimeouts,
		retryDelays:    DefaultRetryDelays,
		statusAttempts: DefaultStatusAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCrawl submits a crawl job and returns its server-assigned ID.
func (c *Client) StartCrawl(ctx context.Context, req firemark.CrawlRequest) (string, error) {
	endpoint := c.baseURL + "/v1/crawl"

	payload := map[string]any{
		"url":      req.URL,
		"limit":    req.Limit,
		"maxDepth": req.MaxDepth,
		"scrapeOptions": map[string]any{
			"formats":         []string{"markdown"},
			"onlyMainContent": req.OnlyMainContent,
		},
	}

	resp, err := c.post(ctx, endpoint, payload, c.startTimeout)
	if err != nil {
		if isTimeout(err) {
			return "", firemark.Errorf(firemark.ETIMEOUT, "timeout starting crawl for %s: %v", req.URL, err)
		}
		return "", c.connectionError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", firemark.Errorf(firemark.EAPI, "HTTP %d starting crawl for %s", resp.StatusCode, req.URL)
	}

	var body struct {
		ID    string `json:"id"`
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", firemark.Errorf(firemark.EAPI, "decoding crawl response for %s: %v", req.URL, err)
	}

	jobID := body.ID
	if jobID == "" {
		jobID = body.JobID
	}
	if jobID == "" {
		return "", firemark.Errorf(firemark.EAPI, "no job ID returned from crawl API for %s", req.URL)
	}

	return jobID, nil
}

// CrawlStatus fetches a single status observation for a job. Connection
// errors are retried with backoff; this call never blocks beyond its own
// retry budget.
func (c *Client) CrawlStatus(ctx context.Context, jobID string) (*firemark.CrawlSnapshot, error) {
	endpoint := c.baseURL + "/v1/crawl/" + jobID

	var lastErr error
	for attempt := 0; attempt < c.statusAttempts; attempt++ {
		snapshot, err := c.fetchStatus(ctx, endpoint, jobID)
		if err == nil {
			return snapshot, nil
		}

		// Only connection errors are transient here; timeouts and API
		// errors surface immediately.
		if firemark.ErrorCode(err) != firemark.ECONNECTION {
			return nil, err
		}
		lastErr = err

		if attempt >= c.statusAttempts-1 {
			break
		}
		if c.logf != nil {
			c.logf("connection error getting status for %s (attempt %d/%d), retrying", jobID, attempt+1, c.statusAttempts)
		}
		if err := c.sleep(ctx, c.retryDelay(attempt)); err != nil {
			return nil, err
		}
	}

	reachable := c.CheckConnection(ctx)
	msg := fmt.Sprintf("cannot connect to crawl API at %s after %d attempts (endpoint %s)", c.baseURL, c.statusAttempts, endpoint)
	if !reachable {
		msg += fmt.Sprintf("; health check failed - the service may have stopped, and job %s may still be running on the server", jobID)
	} else {
		msg += "; health check passed but the status endpoint failed"
	}
	return nil, firemark.Errorf(firemark.ECONNECTION, "%s: %v", msg, lastErr)
}

func (c *Client) fetchStatus(ctx context.Context, endpoint, jobID string) (*firemark.CrawlSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, firemark.Errorf(firemark.EINTERNAL, "creating status request: %v", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, firemark.Errorf(firemark.ETIMEOUT, "timeout getting crawl status for job %s: %v", jobID, err)
		}
		return nil, firemark.Errorf(firemark.ECONNECTION, "getting crawl status for job %s: %v", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, firemark.Errorf(firemark.EAPI, "HTTP %d getting crawl status for job %s", resp.StatusCode, jobID)
	}

	var body struct {
		Status string        `json:"status"`
		Data   []pagePayload `json:"data"`
		Total  int           `json:"total"`
		Error  string        `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, firemark.Errorf(firemark.EAPI, "decoding status response for job %s: %v", jobID, err)
	}

	snapshot := &firemark.CrawlSnapshot{
		Status: firemark.JobStatus(body.Status),
		Total:  body.Total,
		Err:    body.Error,
	}
	for i := range body.Data {
		snapshot.Pages = append(snapshot.Pages, body.Data[i].page())
	}
	return snapshot, nil
}

// Scrape fetches a single page. The service is known to return 408 for
// slow pages; those attempts are retried with escalating timeouts. Other
// HTTP errors are not retried.
func (c *Client) Scrape(ctx context.Context, req firemark.ScrapeRequest) (*firemark.Page, error) {
	endpoint := c.baseURL + "/v1/scrape"

	payload := map[string]any{
		"url":             req.URL,
		"formats":         []string{"markdown"},
		"onlyMainContent": req.OnlyMainContent,
	}
	if req.WaitFor > 0 {
		payload["waitFor"] = req.WaitFor.Milliseconds()
	}

	attempts := len(c.scrapeTimeouts)
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		timeout := c.scrapeTimeouts[attempt]
		if c.logf != nil {
			c.logf("scrape attempt %d/%d for %s with %s timeout", attempt+1, attempts, req.URL, timeout)
		}

		resp, err := c.post(ctx, endpoint, payload, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if attempt < attempts-1 {
				if err := c.sleep(ctx, c.retryDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			if isTimeout(err) {
				return nil, firemark.Errorf(firemark.ETIMEOUT,
					"timeout scraping %s after %d attempts; the page may be too slow to load or unreachable", req.URL, attempts)
			}
			return nil, c.connectionError(ctx, endpoint, err)
		}

		page, err := c.decodeScrape(resp, req.URL)
		if err == nil {
			return page, nil
		}

		// A 408 means the server itself timed out rendering the page.
		// Retrying with a longer client timeout gives it another chance.
		if firemark.ErrorCode(err) == firemark.ETIMEOUT && attempt < attempts-1 {
			lastErr = err
			if c.logf != nil {
				c.logf("request timeout scraping %s (attempt %d/%d), retrying with longer timeout", req.URL, attempt+1, attempts)
			}
			if err := c.sleep(ctx, c.retryDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		if firemark.ErrorCode(err) == firemark.ETIMEOUT {
			return nil, firemark.Errorf(firemark.ETIMEOUT,
				"request timeout (408) scraping %s after %d attempts; the server enforces its own timeout, so a longer client timeout will not help - use a crawl job for slow pages", req.URL, attempts)
		}
		return nil, err
	}

	if lastErr != nil {
		return nil, c.connectionError(ctx, endpoint, lastErr)
	}
	return nil, firemark.Errorf(firemark.EINTERNAL, "unexpected error scraping %s", req.URL)
}

func (c *Client) decodeScrape(resp *http.Response, url string) (*firemark.Page, error) {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestTimeout {
		return nil, firemark.Errorf(firemark.ETIMEOUT, "request timeout (408) scraping %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, firemark.Errorf(firemark.EAPI, "HTTP %d scraping %s", resp.StatusCode, url)
	}

	var body struct {
		Success bool        `json:"success"`
		Data    pagePayload `json:"data"`
		Error   string      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, firemark.Errorf(firemark.EAPI, "decoding scrape response for %s: %v", url, err)
	}
	if !body.Success {
		msg := body.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, firemark.Errorf(firemark.EAPI, "scraping %s failed: %s", url, msg)
	}

	page := body.Data.page()
	if page.URL == "" {
		page.URL = url
	}
	return page, nil
}

// CheckConnection reports whether the API looks reachable. It tries the
// health endpoint first, then falls back to treating any HTTP response as
// evidence of reachability, then a minimal HEAD request as last resort.
func (c *Client) CheckConnection(ctx context.Context) bool {
	resp, err := c.get(ctx, c.baseURL+"/health", c.probeTimeout)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return true
		}
		if resp.StatusCode == http.StatusNotFound {
			return c.checkConnectionAlternative(ctx)
		}
		return false
	}
	if isTimeout(err) {
		return false
	}
	return c.checkConnectionAlternative(ctx)
}

func (c *Client) checkConnectionAlternative(ctx context.Context) bool {
	// Any response, including an HTTP error, means the server is there.
	for _, path := range []string{"/", "/v1"} {
		resp, err := c.get(ctx, c.baseURL+path, c.probeTimeout)
		if err != nil {
			continue
		}
		resp.Body.Close()
		return true
	}

	callCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, timeout time.Duration) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := c.do(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	// Tie the body's lifetime to the call context.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) get(ctx context.Context, endpoint string, timeout time.Duration) (*http.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := c.do(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return c.client.Do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// connectionError probes the service to enrich the error message with a
// diagnosis before surfacing ECONNECTION.
func (c *Client) connectionError(ctx context.Context, endpoint string, cause error) error {
	msg := fmt.Sprintf("cannot connect to crawl API at %s (endpoint %s)", c.baseURL, endpoint)
	if !c.CheckConnection(ctx) {
		msg += "; health check failed - the service may not be running, a firewall may be blocking connections, or the API URL may be wrong (try: curl " + c.baseURL + "/health)"
	} else {
		msg += "; health check passed but this endpoint failed, which suggests the API is running but the endpoint has issues"
	}
	return firemark.Errorf(firemark.ECONNECTION, "%s: %v", msg, cause)
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if len(c.retryDelays) == 0 {
		return 0
	}
	if attempt >= len(c.retryDelays) {
		return c.retryDelays[len(c.retryDelays)-1]
	}
	return c.retryDelays[attempt]
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// isTimeout reports whether a transport error is a timeout rather than a
// reachability failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// pagePayload is the Firecrawl wire shape for a scraped page. The URL may
// live in the metadata or at the top level depending on the endpoint.
type pagePayload struct {
	URL      string `json:"url"`
	Markdown string `json:"markdown"`
	Metadata struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"metadata"`
}

func (p *pagePayload) page() *firemark.Page {
	url := p.Metadata.URL
	if url == "" {
		url = p.URL
	}
	return &firemark.Page{
		URL:     url,
		Title:   p.Metadata.Title,
		Content: p.Markdown,
	}
}

// cancelReadCloser releases the per-call context when the body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
