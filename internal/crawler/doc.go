// Package crawler implements the documentation crawl: scope checks, the frontier,
// the batch scheduler, and the per-page renderer and link extractor that the
// scheduler fans out over the worker pool.
package crawler
