package main

import (
	"fmt"
	"net/url"

	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/crawl"
)

// updateRPS is the per-domain request rate during update runs.
const updateRPS = 1.0

// Run executes the update command.
func (c *UpdateCmd) Run(deps *Dependencies) error {
	store, err := deps.OpenStore(deps.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	plan, err := planUpdates(deps, store, c.URL, c.ShowURLs)
	if err != nil {
		return err
	}
	if len(plan) == 0 {
		return nil
	}

	if !c.AutoUpdate {
		fmt.Fprintf(deps.Stdout, "Run with --auto-update to scrape these %d page(s)\n", len(plan))
		return nil
	}

	return runUpdates(deps, store, plan, c.FullContent)
}

// planUpdates fetches the sitemap and compares it against the corpus.
func planUpdates(deps *Dependencies, store firemark.CorpusStore, rawURL string, showURLs bool) ([]string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Error: invalid URL %q: %v\n", rawURL, err)
		return nil, err
	}
	baseURL := parsed.Scheme + "://" + parsed.Host

	fmt.Fprintf(deps.Stdout, "Checking for updates on: %s\n", baseURL)
	fmt.Fprintf(deps.Stdout, "Previously scraped: %d page(s)\n", len(store.URLs()))

	entries, err := deps.Sitemaps.Entries(deps.Ctx, baseURL)
	if err != nil {
		reportError(deps.Stderr, err)
		return nil, err
	}

	pathFilter := ""
	if parsed.Path != "" && parsed.Path != "/" {
		pathFilter = parsed.Path
	}
	plan := firemark.PlanUpdates(entries, store.ScrapedTimes(), pathFilter)

	if len(plan) == 0 {
		fmt.Fprintln(deps.Stdout, "All pages are up to date")
		return nil, nil
	}
	fmt.Fprintf(deps.Stdout, "Found %d page(s) that need updating\n", len(plan))

	if showURLs {
		const maxShown = 50
		for _, u := range plan[:min(len(plan), maxShown)] {
			fmt.Fprintf(deps.Stdout, "  - %s\n", u)
		}
		if len(plan) > maxShown {
			fmt.Fprintf(deps.Stdout, "  ... and %d more\n", len(plan)-maxShown)
		}
	}

	return plan, nil
}

// runUpdates re-scrapes the planned URLs one page at a time.
func runUpdates(deps *Dependencies, store firemark.CorpusStore, plan []string, fullContent bool) error {
	fmt.Fprintf(deps.Stdout, "Updating %d page(s)...\n", len(plan))

	runner := &crawl.UpdateRunner{
		Service:         deps.Service,
		Store:           store,
		Limiter:         crawl.NewDomainLimiter(updateRPS),
		Logger:          deps.Logger,
		OnlyMainContent: !fullContent,
	}

	res, err := runner.Run(deps.Ctx, plan)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Update complete: %d updated, %d failed\n", res.Updated, res.Failed)
	return nil
}
