package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fwojciec/firemark"
	"github.com/fwojciec/firemark/crawl"
)

// sectionsConfig is the sections_config.json document: named site sections
// with per-section output directories and optional crawl parameters.
// A missing parameter means "detect from the sitemap".
type sectionsConfig struct {
	Sections map[string]sectionConfig `json:"sections"`
}

type sectionConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	OutputDir   string `json:"output_dir"`
	Description string `json:"description,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	MaxDepth    *int   `json:"max_depth,omitempty"`
	Limit       *int   `json:"limit,omitempty"`
	Timeout     *int   `json:"timeout,omitempty"` // seconds
}

func loadSectionsConfig(path string) (*sectionsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, firemark.Errorf(firemark.EINVALID, "cannot read sections config %s: %v", path, err)
	}
	var cfg sectionsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, firemark.Errorf(firemark.EINVALID, "cannot parse sections config %s: %v", path, err)
	}
	return &cfg, nil
}

// section looks up one section by key.
func (c *sectionsConfig) section(key string) (sectionConfig, error) {
	section, ok := c.Sections[key]
	if !ok {
		return sectionConfig{}, firemark.Errorf(firemark.ENOTFOUND, "section %q not found; available: %v", key, c.keys())
	}
	return section, nil
}

// keys returns the section keys in stable order.
func (c *sectionsConfig) keys() []string {
	keys := make([]string, 0, len(c.Sections))
	for key := range c.Sections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Run executes the section list command.
func (c *SectionListCmd) Run(deps *Dependencies) error {
	cfg, err := loadSectionsConfig(deps.SectionConfig)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintln(deps.Stdout, "Available sections:")
	for _, key := range cfg.keys() {
		section := cfg.Sections[key]
		fmt.Fprintf(deps.Stdout, "\n%s (%s)\n", section.Name, key)
		fmt.Fprintf(deps.Stdout, "  URL: %s\n", section.URL)
		fmt.Fprintf(deps.Stdout, "  Output: %s\n", section.OutputDir)
		fmt.Fprintf(deps.Stdout, "  Limits: max_depth=%s, limit=%s, timeout=%s\n",
			formatParam(section.MaxDepth), formatParam(section.Limit), formatParam(section.Timeout))
		if section.Schedule != "" {
			fmt.Fprintf(deps.Stdout, "  Schedule: %s\n", section.Schedule)
		}
		if section.Description != "" {
			fmt.Fprintf(deps.Stdout, "  Description: %s\n", section.Description)
		}
	}
	return nil
}

func formatParam(v *int) string {
	if v == nil {
		return "auto"
	}
	return fmt.Sprintf("%d", *v)
}

// Run executes the section crawl command.
func (c *SectionCrawlCmd) Run(deps *Dependencies) error {
	cfg, err := loadSectionsConfig(deps.SectionConfig)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}
	section, err := cfg.section(c.Key)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}
	return crawlSection(deps, section)
}

// Run executes the section crawl-all command.
func (c *SectionCrawlAllCmd) Run(deps *Dependencies) error {
	cfg, err := loadSectionsConfig(deps.SectionConfig)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	failed := 0
	for _, key := range cfg.keys() {
		fmt.Fprintf(deps.Stdout, "=== %s ===\n", key)
		if err := crawlSection(deps, cfg.Sections[key]); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return firemark.Errorf(firemark.EINTERNAL, "%d of %d section(s) failed", failed, len(cfg.Sections))
	}
	return nil
}

// Run executes the section update command.
func (c *SectionUpdateCmd) Run(deps *Dependencies) error {
	cfg, err := loadSectionsConfig(deps.SectionConfig)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}
	section, err := cfg.section(c.Key)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	store, err := deps.OpenStore(section.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	plan, err := planUpdates(deps, store, section.URL, c.ShowURLs)
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
	return runUpdates(deps, store, plan, false)
}

// crawlSection crawls one section into its own output directory, detecting
// any missing parameters from the sitemap.
func crawlSection(deps *Dependencies, section sectionConfig) error {
	params := sectionParams(deps, section)

	store, err := deps.OpenStore(section.OutputDir)
	if err != nil {
		reportError(deps.Stderr, err)
		return err
	}

	fmt.Fprintf(deps.Stdout, "Crawling: %s\n", section.URL)
	fmt.Fprintf(deps.Stdout, "Output: %s\n", section.OutputDir)
	fmt.Fprintf(deps.Stdout, "Max depth: %d, Limit: %d, Timeout: %s\n", params.MaxDepth, params.Limit, params.WaitTimeout)

	controller := deps.controller(store, true)
	res, err := controller.Run(deps.Ctx, firemark.CrawlRequest{
		URL:             section.URL,
		MaxDepth:        params.MaxDepth,
		Limit:           params.Limit,
		WaitTimeout:     params.WaitTimeout,
		OnlyMainContent: true,
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

	if saved == 0 {
		fmt.Fprintf(deps.Stderr, "Warning: no pages saved for %s\n", section.URL)
		return firemark.Errorf(firemark.EAPI, "crawl of %s produced no pages", section.URL)
	}

	fmt.Fprintf(deps.Stdout, "Saved %d page(s) to: %s\n", saved, section.OutputDir)
	return nil
}

// sectionParams resolves the section's crawl parameters, consulting the
// sitemap for any that are not configured.
func sectionParams(deps *Dependencies, section sectionConfig) crawl.Params {
	params := crawl.Params{
		MaxDepth:    crawl.FallbackMaxDepth,
		Limit:       crawl.FallbackLimit,
		WaitTimeout: crawl.FallbackWaitTimeout,
	}

	if section.MaxDepth == nil || section.Limit == nil || section.Timeout == nil {
		fmt.Fprintln(deps.Stdout, "Detecting crawl parameters from sitemap...")
		entries, err := deps.Sitemaps.Entries(deps.Ctx, section.URL)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "Warning: sitemap unavailable, using defaults: %s\n", firemark.ErrorMessage(err))
		} else {
			params = crawl.AutoParams(section.URL, entries)
		}
	}

	if section.MaxDepth != nil {
		params.MaxDepth = *section.MaxDepth
	}
	if section.Limit != nil {
		params.Limit = *section.Limit
	}
	if section.Timeout != nil {
		params.WaitTimeout = time.Duration(*section.Timeout) * time.Second
	}
	return params
}
