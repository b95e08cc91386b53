package crawl_test

import (
	"context"
	"testing"

	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/crawl"
	"github.com/fwojciec/firemark/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateRunner(t *testing.T) {
	t.Parallel()

	t.Run("updates every URL in order", func(t *testing.T) {
		t.Parallel()

		var scraped []string
		store := newMemStore()
		service := &mock.CrawlService{
			ScrapeFn: func(_ context.Context, req firemark.ScrapeRequest) (*firemark.Page, error) {
				scraped = append(scraped, req.URL)
				return page(req.URL, "T"), nil
			},
		}
		runner := &crawl.UpdateRunner{
			Service: service,
			Store:   store.store(),
			Limiter: crawl.NewDomainLimiter(1000),
		}

		urls := []string{"https://example.com/a", "https://example.com/b"}
		res, err := runner.Run(context.Background(), urls)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Updated)
		assert.Zero(t, res.Failed)
		assert.Equal(t, urls, scraped)
		assert.Len(t, store.pages, 2)
	})

	t.Run("a failing URL is counted and skipped", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		service := &mock.CrawlService{
			ScrapeFn: func(_ context.Context, req firemark.ScrapeRequest) (*firemark.Page, error) {
				if req.URL == "https://example.com/bad" {
					return nil, firemark.Errorf(firemark.EAPI, "scrape failed")
				}
				return page(req.URL, "T"), nil
			},
		}
		runner := &crawl.UpdateRunner{Service: service, Store: store.store()}

		res, err := runner.Run(context.Background(), []string{
			"https://example.com/a",
			"https://example.com/bad",
			"https://example.com/c",
		})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Updated)
		assert.Equal(t, 1, res.Failed)
	})

	t.Run("a failing save is counted and skipped", func(t *testing.T) {
		t.Parallel()

		store := newMemStore()
		store.upsertErr = func(url string) error {
			if url == "https://example.com/bad" {
				return firemark.Errorf(firemark.ESTORAGE, "disk full")
			}
			return nil
		}
		service := &mock.CrawlService{
			ScrapeFn: func(_ context.Context, req firemark.ScrapeRequest) (*firemark.Page, error) {
				return page(req.URL, "T"), nil
			},
		}
		runner := &crawl.UpdateRunner{Service: service, Store: store.store()}

		res, err := runner.Run(context.Background(), []string{
			"https://example.com/a",
			"https://example.com/bad",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, 1, res.Failed)
	})

	t.Run("cancellation stops the run", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		runner := &crawl.UpdateRunner{
			Service: &mock.CrawlService{},
			Store:   newMemStore().store(),
		}

		_, err := runner.Run(ctx, []string{"https://example.com/a"})

		assert.ErrorIs(t, err, context.Canceled)
	})
}
