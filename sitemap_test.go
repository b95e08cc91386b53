package firemark_test

import (
	"testing"
	"time"

	"github.com/fwojciec/firemark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLastMod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   time.Time
		wantOK bool
	}{
		{
			name:   "RFC3339 with zone",
			in:     "2025-06-01T12:30:00+02:00",
			want:   time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("", 2*60*60)),
			wantOK: true,
		},
		{
			name:   "RFC3339 zulu",
			in:     "2025-06-01T12:30:00Z",
			want:   time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "date only",
			in:     "2025-06-01",
			want:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "no zone",
			in:     "2025-06-01T12:30:00",
			want:   time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "garbage",
			in:     "yesterday",
			wantOK: false,
		},
		{
			name:   "empty",
			in:     "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := firemark.ParseLastMod(tt.in)

			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanUpdates(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lastmod older than scrape excludes URL", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a", LastMod: t0.Add(-time.Second).Format(time.RFC3339)},
		}
		scraped := map[string]time.Time{"https://example.com/docs/a": t0}

		got := firemark.PlanUpdates(entries, scraped, "")

		assert.Empty(t, got)
	})

	t.Run("lastmod newer than scrape includes URL", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a", LastMod: t0.Add(time.Second).Format(time.RFC3339)},
		}
		scraped := map[string]time.Time{"https://example.com/docs/a": t0}

		got := firemark.PlanUpdates(entries, scraped, "")

		assert.Equal(t, []string{"https://example.com/docs/a"}, got)
	})

	t.Run("URL absent from storage is always included", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/new"},
		}

		got := firemark.PlanUpdates(entries, map[string]time.Time{}, "")

		assert.Equal(t, []string{"https://example.com/docs/new"}, got)
	})

	t.Run("unparseable lastmod includes URL", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a", LastMod: "not-a-date"},
		}
		scraped := map[string]time.Time{"https://example.com/docs/a": t0}

		got := firemark.PlanUpdates(entries, scraped, "")

		assert.Equal(t, []string{"https://example.com/docs/a"}, got)
	})

	t.Run("unparseable scrape time includes URL", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a", LastMod: t0.Format(time.RFC3339)},
		}
		scraped := map[string]time.Time{"https://example.com/docs/a": {}}

		got := firemark.PlanUpdates(entries, scraped, "")

		assert.Equal(t, []string{"https://example.com/docs/a"}, got)
	})

	t.Run("missing lastmod on a scraped URL carries no signal", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a"},
		}
		scraped := map[string]time.Time{"https://example.com/docs/a": t0}

		got := firemark.PlanUpdates(entries, scraped, "")

		assert.Empty(t, got)
	})

	t.Run("path filter restricts candidates", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/docs/a"},
			{URL: "https://example.com/blog/b"},
		}

		got := firemark.PlanUpdates(entries, map[string]time.Time{}, "/docs/")

		assert.Equal(t, []string{"https://example.com/docs/a"}, got)
	})

	t.Run("preserves sitemap order", func(t *testing.T) {
		t.Parallel()

		entries := []firemark.SitemapEntry{
			{URL: "https://example.com/c"},
			{URL: "https://example.com/a"},
			{URL: "https://example.com/b"},
		}

		got := firemark.PlanUpdates(entries, map[string]time.Time{}, "")

		assert.Equal(t, []string{
			"https://example.com/c",
			"https://example.com/a",
			"https://example.com/b",
		}, got)
	})
}
