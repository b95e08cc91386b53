package main

import (
	"fmt"

	"github.com/fwojciec/firemark"
)

// Run executes the crawl command.
func (c *CrawlCmd) Run(deps *Dependencies) error {
	store, err := deps.OpenStore(deps.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Starting crawl of: %s\n", c.URL)
	fmt.Fprintf(deps.Stdout, "Max depth: %d, Limit: %d\n", c.MaxDepth, c.Limit)

	controller := deps.controller(store, !c.NoIncremental)
	res, err := controller.Run(deps.Ctx, firemark.CrawlRequest{
		URL:             c.URL,
		MaxDepth:        c.MaxDepth,
		Limit:           c.Limit,
		WaitTimeout:     c.Timeout,
		OnlyMainContent: !c.FullContent,
	})
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	saved, err := controller.Reconcile(deps.Ctx, res)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	if len(res.Pages) == 0 {
		// Completed-but-empty is a warning, not a failure, as long as
		// incremental saves landed something.
		fmt.Fprintf(deps.Stderr, "Warning: job %s completed without data\n", res.JobID)
		if saved == 0 {
			fmt.Fprintln(deps.Stderr, "No pages were scraped")
			return firemark.Errorf(firemark.EAPI, "crawl job %s produced no pages", res.JobID)
		}
		fmt.Fprintf(deps.Stdout, "Kept %d page(s) saved incrementally in: %s\n", saved, deps.OutputDir)
		return nil
	}

	fmt.Fprintf(deps.Stdout, "Crawl completed: saved %d page(s) to: %s\n", saved, deps.OutputDir)
	return nil
}
