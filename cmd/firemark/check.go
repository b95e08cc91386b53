package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/firemark"
)

// resolveJobID falls back to the most recently recorded job handle.
func resolveJobID(deps *Dependencies, store firemark.CorpusStore, jobID string) (string, error) {
	if jobID != "" {
		return jobID, nil
	}
	if last := store.LastJobID(); last != "" {
		fmt.Fprintf(deps.Stdout, "Using last recorded job: %s\n", last)
		return last, nil
	}
	fmt.Fprintln(deps.Stderr, "Error: no job ID given and none recorded in the output directory")
	return "", firemark.Errorf(firemark.EINVALID, "job ID required")
}

// Run executes the check command.
func (c *CheckCmd) Run(deps *Dependencies) error {
	store, err := deps.OpenStore(deps.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	jobID, err := resolveJobID(deps, store, c.JobID)
	if err != nil {
		return err
	}

	snap, err := deps.Service.CrawlStatus(deps.Ctx, jobID)
	if err != nil {
		reportError(deps.Stderr, err)
		if firemark.ErrorCode(err) == firemark.ECONNECTION && !deps.Service.CheckConnection(deps.Ctx) {
			fmt.Fprintln(deps.Stderr, "The crawl service is unreachable")
		}
		return err
	}

	fmt.Fprintf(deps.Stdout, "Job:    %s\n", jobID)
	fmt.Fprintf(deps.Stdout, "Status: %s\n", snap.Status)
	fmt.Fprintf(deps.Stdout, "Pages:  %d in data, %d reported\n", len(snap.Pages), snap.Total)
	if snap.Err != "" {
		fmt.Fprintf(deps.Stdout, "Error:  %s\n", snap.Err)
	}

	if len(snap.Pages) == 0 && snap.Total > 0 {
		fmt.Fprintf(deps.Stdout, "The service reports %d page(s) but the data array is empty.\n", snap.Total)
		fmt.Fprintln(deps.Stdout, "The data may arrive later; try the retry command.")
	}

	return nil
}

// retryBaseWait scales the wait between retry attempts.
const retryBaseWait = 10 * time.Second

// Run executes the retry command. It re-polls a job whose data never
// arrived, with growing waits between attempts, and saves the pages when
// they finally materialize.
func (c *RetryCmd) Run(deps *Dependencies) error {
	store, err := deps.OpenStore(deps.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	jobID, err := resolveJobID(deps, store, c.JobID)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		fmt.Fprintf(deps.Stdout, "Attempt %d/%d\n", attempt, c.MaxRetries)

		snap, err := deps.Service.CrawlStatus(deps.Ctx, jobID)
		if err != nil {
			reportError(deps.Stderr, err)
			if attempt == c.MaxRetries {
				return err
			}
			if err := wait(deps, time.Duration(attempt)*retryBaseWait); err != nil {
				return err
			}
			continue
		}

		fmt.Fprintf(deps.Stdout, "  status: %s, pages: %d, reported: %d\n", snap.Status, len(snap.Pages), snap.Total)

		switch {
		case len(snap.Pages) > 0:
			return saveRetryPages(deps, store, snap.Pages)

		case snap.Status == firemark.StatusFailed:
			msg := snap.Err
			if msg == "" {
				msg = "unknown error"
			}
			err := firemark.Errorf(firemark.EAPI, "crawl job %s failed: %s", jobID, msg)
			reportError(deps.Stderr, err)
			return err

		case snap.Status == firemark.StatusCompleted && snap.Total == 0:
			fmt.Fprintln(deps.Stdout, "The job completed with zero pages; nothing to fetch.")
			return nil

		case snap.Status == firemark.StatusCompleted:
			if attempt == c.MaxRetries {
				fmt.Fprintln(deps.Stderr, "Max retries reached; the data never became available.")
				return firemark.Errorf(firemark.EAPI, "crawl job %s reports %d page(s) but returned no data", jobID, snap.Total)
			}
			if err := wait(deps, time.Duration(attempt)*retryBaseWait); err != nil {
				return err
			}

		default:
			// Still queued or scraping; give it a moment.
			if err := wait(deps, retryBaseWait); err != nil {
				return err
			}
		}
	}

	return firemark.Errorf(firemark.EAPI, "crawl job %s: retries exhausted", jobID)
}

func saveRetryPages(deps *Dependencies, store firemark.CorpusStore, pages []*firemark.Page) error {
	fmt.Fprintf(deps.Stdout, "Data available: %d page(s), saving...\n", len(pages))

	var entries []firemark.IndexEntry
	saved := 0
	for _, page := range pages {
		entry, err := store.UpsertPage(deps.Ctx, page)
		if err != nil {
			reportError(deps.Stderr, err)
			continue
		}
		entries = append(entries, firemark.IndexEntry{Title: page.Title, URL: page.URL, File: entry.File})
		saved++
	}
	if len(entries) > 0 {
		if err := store.WriteIndex(entries); err != nil {
			reportError(deps.Stderr, err)
			return err
		}
	}

	fmt.Fprintf(deps.Stdout, "Saved %d page(s) to: %s\n", saved, deps.OutputDir)
	return nil
}

func wait(deps *Dependencies, d time.Duration) error {
	fmt.Fprintf(deps.Stdout, "Waiting %s before the next attempt...\n", d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-deps.Ctx.Done():
		return deps.Ctx.Err()
	case <-timer.C:
		return nil
	}
}
