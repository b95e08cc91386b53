package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "forbidden characters replaced",
			in:   `What is <this>: a "test"?`,
			want: "What-is-this-a-test",
		},
		{
			name: "whitespace collapsed",
			in:   "Getting   Started    Guide",
			want: "Getting-Started-Guide",
		},
		{
			name: "leading and trailing dots stripped",
			in:   ". hidden file .",
			want: "hidden-file",
		},
		{
			name: "empty falls back to untitled",
			in:   "",
			want: "untitled",
		},
		{
			name: "slashes replaced",
			in:   "a/b\\c",
			want: "a-b-c",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, fs.SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	got := fs.SanitizeFilename(strings.Repeat("é", 300))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 200), got)
}

func TestDeriveFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		url   string
		title string
		want  string
	}{
		{
			name:  "title preferred",
			url:   "https://example.com/docs/intro",
			title: "Introduction",
			want:  "Introduction.md",
		},
		{
			name: "last path segment without title",
			url:  "https://example.com/docs/getting-started",
			want: "getting-started.md",
		},
		{
			name: "host when path is empty",
			url:  "https://example.com/",
			want: "example.com.md",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, fs.DeriveFilename(tt.url, tt.title))
		})
	}
}

func TestFormatPage(t *testing.T) {
	t.Parallel()

	got := fs.FormatPage(&firemark.Page{
		URL:     "https://example.com/docs/api",
		Title:   "API Reference",
		Content: "Body text.",
	})

	want := `# API Reference

**Source:** https://example.com/docs/api

---

Body text.`

	assert.Equal(t, want, got)
}

func TestFormatPage_MissingTitle(t *testing.T) {
	t.Parallel()

	got := fs.FormatPage(&firemark.Page{
		URL:     "https://example.com/page",
		Content: "Body.",
	})

	assert.Contains(t, got, "# Untitled\n")
}

func TestStore_UpsertPage(t *testing.T) {
	t.Parallel()

	t.Run("saves page and metadata", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		entry, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/intro",
			Title:   "Introduction",
			Content: "Welcome.",
		})

		require.NoError(t, err)
		assert.Equal(t, "Introduction.md", entry.File)
		assert.NotZero(t, entry.FileSize)
		assert.False(t, entry.ScrapedAt.IsZero())

		content, err := os.ReadFile(filepath.Join(store.Dir(), "Introduction.md"))
		require.NoError(t, err)
		assert.Contains(t, string(content), "**Source:** https://example.com/docs/intro")

		// Metadata document persisted alongside.
		_, err = os.Stat(filepath.Join(store.Dir(), fs.MetadataFile))
		require.NoError(t, err)
	})

	t.Run("idempotent upsert reuses the same file", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		page := &firemark.Page{
			URL:     "https://example.com/docs/intro",
			Title:   "Introduction",
			Content: "Welcome.",
		}

		first, err := store.UpsertPage(context.Background(), page)
		require.NoError(t, err)

		page.Content = "Welcome back."
		second, err := store.UpsertPage(context.Background(), page)
		require.NoError(t, err)

		assert.Equal(t, first.File, second.File)
		assert.Len(t, store.URLs(), 1)

		// The file was overwritten, not duplicated.
		files, err := filepath.Glob(filepath.Join(store.Dir(), "Introduction*.md"))
		require.NoError(t, err)
		assert.Len(t, files, 1)

		content, err := os.ReadFile(filepath.Join(store.Dir(), first.File))
		require.NoError(t, err)
		assert.Contains(t, string(content), "Welcome back.")
	})

	t.Run("unchanged content keeps the same hash", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		page := &firemark.Page{URL: "https://example.com/a", Title: "A", Content: "Same."}

		first, err := store.UpsertPage(context.Background(), page)
		require.NoError(t, err)
		second, err := store.UpsertPage(context.Background(), page)
		require.NoError(t, err)

		assert.Equal(t, first.ContentHash, second.ContentHash)
	})

	t.Run("colliding filenames from different URLs get suffixes", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		a, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "Guide",
			Content: "A",
		})
		require.NoError(t, err)

		b, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/b",
			Title:   "Guide",
			Content: "B",
		})
		require.NoError(t, err)

		assert.Equal(t, "Guide.md", a.File)
		assert.Equal(t, "Guide_1.md", b.File)

		// Re-saving the first URL must not bump against its own file.
		again, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "Guide",
			Content: "A2",
		})
		require.NoError(t, err)
		assert.Equal(t, "Guide.md", again.File)
	})

	t.Run("recorded names stay reserved while their file is missing", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		a, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "Guide",
			Content: "A",
		})
		require.NoError(t, err)
		require.NoError(t, os.Remove(filepath.Join(store.Dir(), a.File)))

		// Another URL deriving the same name must not adopt the missing
		// file's path; the two URLs would end up sharing one file.
		b, err := store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/b",
			Title:   "Guide",
			Content: "B",
		})
		require.NoError(t, err)

		assert.Equal(t, "Guide_1.md", b.File)

		entry, ok := store.Lookup("https://example.com/docs/a")
		require.True(t, ok)
		assert.Equal(t, "Guide.md", entry.File)
	})

	t.Run("rejects a page without a URL", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.UpsertPage(context.Background(), &firemark.Page{Title: "No URL"})

		require.Error(t, err)
		assert.Equal(t, firemark.EINVALID, firemark.ErrorCode(err))
	})
}

func TestStore_MetadataRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	store, err := fs.NewStore(dir)
	require.NoError(t, err)

	_, err = store.UpsertPage(context.Background(), &firemark.Page{
		URL:     "https://example.com/docs/a",
		Title:   "A",
		Content: "a",
	})
	require.NoError(t, err)
	require.NoError(t, store.RecordJob("job-9", "https://example.com/docs", "run-1"))

	// A fresh store over the same directory sees the persisted state.
	reopened, err := fs.NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/docs/a"}, reopened.URLs())
	assert.Equal(t, "job-9", reopened.LastJobID())

	entry, ok := reopened.Lookup("https://example.com/docs/a")
	require.True(t, ok)
	assert.Equal(t, "A.md", entry.File)
	assert.False(t, entry.ScrapedAt.IsZero())

	times := reopened.ScrapedTimes()
	assert.Contains(t, times, "https://example.com/docs/a")
}

func TestStore_MetadataWriteIsAtomic(t *testing.T) {
	t.Parallel()

	t.Run("no temp file remains after a save", func(t *testing.T) {
		t.Parallel()

		store, err := fs.NewStore(t.TempDir())
		require.NoError(t, err)

		_, err = store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "A",
			Content: "a",
		})
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(store.Dir(), fs.MetadataFile+".tmp"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("partial temp file never shadows a complete document", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()

		store, err := fs.NewStore(dir)
		require.NoError(t, err)
		_, err = store.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "A",
			Content: "a",
		})
		require.NoError(t, err)

		// A crash mid-write leaves a truncated temp file behind. The real
		// document must still be the one a fresh store reads.
		torn := filepath.Join(dir, fs.MetadataFile+".tmp")
		require.NoError(t, os.WriteFile(torn, []byte(`{"pages":{"https://exa`), 0644))

		reopened, err := fs.NewStore(dir)
		require.NoError(t, err)

		assert.Equal(t, []string{"https://example.com/docs/a"}, reopened.URLs())
		entry, ok := reopened.Lookup("https://example.com/docs/a")
		require.True(t, ok)
		assert.Equal(t, "A.md", entry.File)

		// A re-save after the interrupted write still reuses the recorded
		// path instead of bumping to a suffix.
		again, err := reopened.UpsertPage(context.Background(), &firemark.Page{
			URL:     "https://example.com/docs/a",
			Title:   "A",
			Content: "a2",
		})
		require.NoError(t, err)
		assert.Equal(t, "A.md", again.File)
	})
}

func TestStore_CorruptMetadataResets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fs.MetadataFile), []byte("{not json"), 0644))

	store, err := fs.NewStore(dir)

	require.NoError(t, err)
	assert.Empty(t, store.URLs())
}

func TestStore_WriteIndex(t *testing.T) {
	t.Parallel()

	store, err := fs.NewStore(t.TempDir())
	require.NoError(t, err)

	err = store.WriteIndex([]firemark.IndexEntry{
		{Title: "One", URL: "https://example.com/one", File: "One.md"},
		{Title: "Two", URL: "https://example.com/two", File: "Two.md"},
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(store.Dir(), fs.IndexFile))
	require.NoError(t, err)

	assert.Contains(t, string(content), "Total pages: 2")
	assert.Contains(t, string(content), "## One")
	assert.Contains(t, string(content), "[Two.md](./Two.md)")

	// A second write fully replaces the manifest.
	err = store.WriteIndex([]firemark.IndexEntry{
		{Title: "Three", URL: "https://example.com/three", File: "Three.md"},
	})
	require.NoError(t, err)

	content, err = os.ReadFile(filepath.Join(store.Dir(), fs.IndexFile))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "## One")
	assert.Contains(t, string(content), "Total pages: 1")
}
