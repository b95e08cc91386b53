package mock

import (
	"context"
	"time"

	"github.com/fwojciec/firemark"
)

var _ firemark.CorpusStore = (*CorpusStore)(nil)

// CorpusStore is a mock implementation of firemark.CorpusStore.
type CorpusStore struct {
	UpsertPageFn   func(ctx context.Context, page *firemark.Page) (*firemark.CorpusEntry, error)
	LookupFn       func(url string) (*firemark.CorpusEntry, bool)
	URLsFn         func() []string
	ScrapedTimesFn func() map[string]time.Time
	WriteIndexFn   func(entries []firemark.IndexEntry) error
	RecordJobFn    func(jobID, seedURL, runID string) error
	LastJobIDFn    func() string
}

func (s *CorpusStore) UpsertPage(ctx context.Context, page *firemark.Page) (*firemark.CorpusEntry, error) {
	return s.UpsertPageFn(ctx, page)
}

func (s *CorpusStore) Lookup(url string) (*firemark.CorpusEntry, bool) {
	return s.LookupFn(url)
}

func (s *CorpusStore) URLs() []string {
	return s.URLsFn()
}

func (s *CorpusStore) ScrapedTimes() map[string]time.Time {
	return s.ScrapedTimesFn()
}

func (s *CorpusStore) WriteIndex(entries []firemark.IndexEntry) error {
	return s.WriteIndexFn(entries)
}

func (s *CorpusStore) RecordJob(jobID, seedURL, runID string) error {
	return s.RecordJobFn(jobID, seedURL, runID)
}

func (s *CorpusStore) LastJobID() string {
	return s.LastJobIDFn()
}
