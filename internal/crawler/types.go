// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"net/http"
	"time"
)

// ErrBadStatus is returned by fetchers when the server answers outside the 2xx range.
var ErrBadStatus = errors.New("unexpected http status")

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// RenderResult reports the outcome of rendering one URL to a PDF file.
type RenderResult struct {
	URL  string
	Path string
	OK   bool
}

// CrawlStats is what a completed crawl hands back to the pipeline.
type CrawlStats struct {
	Visited  int
	Rendered int
	Batches  int
}
