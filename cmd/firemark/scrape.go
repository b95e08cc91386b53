package main

import (
	"fmt"

	"github.com/fwojciec/firemark"
)

// Run executes the scrape command.
func (c *ScrapeCmd) Run(deps *Dependencies) error {
	store, err := deps.OpenStore(deps.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Scraping: %s\n", c.URL)

	page, err := deps.Service.Scrape(deps.Ctx, firemark.ScrapeRequest{
		URL:             c.URL,
		WaitFor:         c.WaitFor,
		OnlyMainContent: !c.FullContent,
	})
	if err != nil {
		reportError(deps.Stderr, err)
		if firemark.ErrorCode(err) == firemark.ETIMEOUT {
			fmt.Fprintln(deps.Stderr, "Hint: try increasing --wait-for")
		}
		return err
	}

	entry, err := store.UpsertPage(deps.Ctx, page)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Saved to: %s (%d bytes)\n", entry.File, entry.FileSize)
	return nil
}
