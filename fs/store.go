// Package fs provides file-based storage for the crawled corpus: one
// markdown file per URL plus a JSON metadata document that tracks what has
// been fetched and when.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/firemark"
)

// MetadataFile is the name of the metadata document inside the corpus dir.
const MetadataFile = ".scrape_metadata.json"

// IndexFile is the name of the regenerated corpus manifest.
const IndexFile = "INDEX.md"

// Ensure Store implements firemark.CorpusStore at compile time.
var _ firemark.CorpusStore = (*Store)(nil)

// Store persists pages as markdown files in a single directory. The
// metadata document is rewritten after every mutation via temp-file plus
// rename, so a crash between saves leaves the previous complete document
// in place rather than a torn one. The metadata document and the content
// files are only eventually consistent: an entry may reference a file that
// no longer exists, and that is tolerated.
type Store struct {
	dir  string
	meta *metadata
}

// metadata is the on-disk schema of the metadata document. The schema is
// additive-only: unknown keys are preserved as absent, new optional keys
// are tolerated by older readers.
type metadata struct {
	Pages        map[string]*pageMeta `json:"pages"`
	LastCrawl    string               `json:"last_crawl,omitempty"`
	LastJobID    string               `json:"last_job_id,omitempty"`
	LastCrawlURL string               `json:"last_crawl_url,omitempty"`
	LastRunID    string               `json:"last_run_id,omitempty"`
}

type pageMeta struct {
	File        string `json:"file"`
	ScrapedAt   string `json:"scraped_at"`
	FileSize    int64  `json:"file_size"`
	ContentHash string `json:"content_hash,omitempty"`
}

// NewStore creates a Store rooted at dir, creating the directory if needed
// and loading any existing metadata document. A missing or corrupt
// metadata document resets the store to empty; it is never fatal.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, firemark.Errorf(firemark.ESTORAGE, "creating corpus directory %s: %v", dir, err)
	}

	s := &Store{
		dir:  dir,
		meta: &metadata{Pages: make(map[string]*pageMeta)},
	}

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return s, nil
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return s, nil
	}
	if meta.Pages == nil {
		meta.Pages = make(map[string]*pageMeta)
	}
	s.meta = &meta
	return s, nil
}

// Dir returns the corpus root directory.
func (s *Store) Dir() string {
	return s.dir
}

// UpsertPage writes the page content and updates the metadata entry for
// its URL. A URL that already has an entry reuses its recorded file path;
// a new URL whose derived filename collides with an unrelated file gets a
// numeric suffix. When the content hash is unchanged and the file is still
// on disk, the content write is skipped but the metadata still updates.
func (s *Store) UpsertPage(ctx context.Context, page *firemark.Page) (*firemark.CorpusEntry, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	relPath := s.pathFor(page)
	fullPath := filepath.Join(s.dir, relPath)
	content := FormatPage(page)
	hash := fmt.Sprintf("%016x", xxhash.Sum64String(content))

	existing := s.meta.Pages[page.URL]
	unchanged := existing != nil && existing.ContentHash == hash && fileExists(fullPath)
	if !unchanged {
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			return nil, firemark.Errorf(firemark.ESTORAGE, "writing %s: %v", fullPath, err)
		}
	}

	size := int64(len(content))
	if fi, err := os.Stat(fullPath); err == nil {
		size = fi.Size()
	}

	now := time.Now().UTC()
	s.meta.Pages[page.URL] = &pageMeta{
		File:        relPath,
		ScrapedAt:   now.Format(time.RFC3339),
		FileSize:    size,
		ContentHash: hash,
	}
	s.meta.LastCrawl = now.Format(time.RFC3339)

	if err := s.saveMetadata(); err != nil {
		return nil, err
	}

	return &firemark.CorpusEntry{
		URL:         page.URL,
		File:        relPath,
		ScrapedAt:   now,
		FileSize:    size,
		ContentHash: hash,
	}, nil
}

// pathFor returns the relative file path for a page, reusing the recorded
// path for a known URL so that re-saving never collides with its own file.
func (s *Store) pathFor(page *firemark.Page) string {
	if existing := s.meta.Pages[page.URL]; existing != nil && existing.File != "" {
		return existing.File
	}

	// Names recorded for other URLs count as taken even when their file is
	// currently missing on disk, so two URLs can never converge on one path.
	taken := make(map[string]bool, len(s.meta.Pages))
	for _, meta := range s.meta.Pages {
		taken[meta.File] = true
	}

	base := DeriveFilename(page.URL, page.Title)

	// Bump a numeric suffix until the name is free of unrelated files.
	relPath := base
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for counter := 1; taken[relPath] || fileExists(filepath.Join(s.dir, relPath)); counter++ {
		relPath = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}
	return relPath
}

// Lookup returns the recorded entry for a URL.
func (s *Store) Lookup(rawURL string) (*firemark.CorpusEntry, bool) {
	meta, ok := s.meta.Pages[rawURL]
	if !ok {
		return nil, false
	}
	return entryFromMeta(rawURL, meta), true
}

// URLs returns all recorded URLs, sorted for deterministic output.
func (s *Store) URLs() []string {
	urls := make([]string, 0, len(s.meta.Pages))
	for u := range s.meta.Pages {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// ScrapedTimes returns the recorded scrape time per URL. Timestamps that
// fail to parse come back as zero times so that update planning fails open.
func (s *Store) ScrapedTimes() map[string]time.Time {
	times := make(map[string]time.Time, len(s.meta.Pages))
	for u, meta := range s.meta.Pages {
		t, _ := time.Parse(time.RFC3339, meta.ScrapedAt)
		times[u] = t
	}
	return times
}

// WriteIndex regenerates the manifest file, fully overwriting any
// previous one.
func (s *Store) WriteIndex(entries []firemark.IndexEntry) error {
	var b strings.Builder
	b.WriteString("# Crawled Pages Index\n\n")
	fmt.Fprintf(&b, "Total pages: %d\n\n", len(entries))
	b.WriteString("---\n\n")

	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "## %s\n\n", title)
		fmt.Fprintf(&b, "- **URL:** %s\n", entry.URL)
		fmt.Fprintf(&b, "- **File:** [%s](./%s)\n\n", entry.File, entry.File)
	}

	path := filepath.Join(s.dir, IndexFile)
	if err := writeFileAtomic(path, []byte(b.String())); err != nil {
		return firemark.Errorf(firemark.ESTORAGE, "writing index %s: %v", path, err)
	}
	return nil
}

// RecordJob persists the handle of the most recent crawl job.
func (s *Store) RecordJob(jobID, seedURL, runID string) error {
	s.meta.LastJobID = jobID
	s.meta.LastCrawlURL = seedURL
	s.meta.LastRunID = runID
	s.meta.LastCrawl = time.Now().UTC().Format(time.RFC3339)
	return s.saveMetadata()
}

// LastJobID returns the most recently recorded job handle, or "".
func (s *Store) LastJobID() string {
	return s.meta.LastJobID
}

func (s *Store) saveMetadata() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return firemark.Errorf(firemark.EINTERNAL, "encoding metadata: %v", err)
	}
	path := filepath.Join(s.dir, MetadataFile)
	if err := writeFileAtomic(path, data); err != nil {
		return firemark.Errorf(firemark.ESTORAGE, "writing metadata %s: %v", path, err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the same directory, then renames
// it over the target. A crash mid-write leaves the previous file untouched.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func entryFromMeta(rawURL string, meta *pageMeta) *firemark.CorpusEntry {
	t, _ := time.Parse(time.RFC3339, meta.ScrapedAt)
	return &firemark.CorpusEntry{
		URL:         rawURL,
		File:        meta.File,
		ScrapedAt:   t,
		FileSize:    meta.FileSize,
		ContentHash: meta.ContentHash,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FormatPage formats a page as a small markdown document: a title heading,
// a source line, a separator, then the content.
func FormatPage(page *firemark.Page) string {
	title := page.Title
	if title == "" {
		title = "Untitled"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Source:** %s\n\n", page.URL)
	b.WriteString("---\n\n")
	b.WriteString(page.Content)
	return b.String()
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var dashRuns = regexp.MustCompile(`[-\s]+`)

// SanitizeFilename converts text to a safe filename component: forbidden
// filesystem characters replaced, whitespace collapsed, length capped.
// The cap counts runes, not bytes, so a multi-byte title is never cut
// mid-character.
func SanitizeFilename(text string) string {
	text = invalidFilenameChars.ReplaceAllString(text, "-")
	text = strings.Trim(text, ". ")
	if runes := []rune(text); len(runes) > 200 {
		text = string(runes[:200])
	}
	text = dashRuns.ReplaceAllString(text, "-")
	text = strings.Trim(text, "-")
	if text == "" {
		return "untitled"
	}
	return text
}

// DeriveFilename derives a markdown filename from a page title, falling
// back to the URL's last path segment and then its host.
func DeriveFilename(rawURL, title string) string {
	var base string
	if title != "" {
		base = SanitizeFilename(title)
	} else if u, err := url.Parse(rawURL); err == nil {
		parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
		if len(parts) > 0 {
			base = SanitizeFilename(parts[len(parts)-1])
		} else {
			base = SanitizeFilename(u.Host)
		}
	} else {
		base = "untitled"
	}

	if !strings.HasSuffix(base, ".md") {
		base += ".md"
	}
	return base
}
