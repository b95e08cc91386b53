package firemark

import (
	"context"
	"time"
)

// CorpusEntry is the persisted bookkeeping record for one saved URL.
// The corpus holds exactly one entry per URL at any time: re-saving a URL
// overwrites its file in place rather than creating a duplicate.
type CorpusEntry struct {
	URL         string
	File        string // path relative to the corpus root
	ScrapedAt   time.Time
	FileSize    int64
	ContentHash string
}

// IndexEntry is one row of the regenerated corpus manifest.
type IndexEntry struct {
	Title string
	URL   string
	File  string
}

// CorpusStore persists fetched pages and their metadata document.
//
// UpsertPage must be idempotent: pages appear in more than one poll
// response, so every save path is safe to invoke twice with the same page.
// Each save commits its own metadata update immediately; no multi-page
// transaction spans a crash boundary.
type CorpusStore interface {
	// UpsertPage writes the page content and updates the entry for its URL.
	UpsertPage(ctx context.Context, page *Page) (*CorpusEntry, error)

	// Lookup returns the entry for a URL, if one is recorded. The entry may
	// reference a file that no longer exists on disk.
	Lookup(url string) (*CorpusEntry, bool)

	// URLs returns all recorded URLs.
	URLs() []string

	// ScrapedTimes returns the recorded scrape time per URL. A zero time
	// means the recorded timestamp could not be parsed.
	ScrapedTimes() map[string]time.Time

	// WriteIndex regenerates the human-readable manifest, fully
	// overwriting any previous one.
	WriteIndex(entries []IndexEntry) error

	// RecordJob persists the handle of the most recent crawl job so that a
	// diagnostic tool can resume it later.
	RecordJob(jobID, seedURL, runID string) error

	// LastJobID returns the most recently recorded job handle, or "".
	LastJobID() string
}
