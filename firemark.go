// Package firemark provides a CLI tool for mirroring websites to local
// markdown files through a Firecrawl-compatible crawl API. It submits crawl
// jobs to the remote service, polls them to completion, persists the
// returned pages as a deterministic on-disk corpus, and uses sitemap
// lastmod data to plan incremental re-crawls.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency or collaborator (e.g., firecrawl/, fs/,
// http/).
package firemark
