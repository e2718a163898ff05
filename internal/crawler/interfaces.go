package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Converter turns the page at rawURL into a PDF written at outPath.
type Converter interface {
	Convert(ctx context.Context, rawURL string, outPath string) error
}

// PageRenderer renders one URL. Failures are reported through RenderResult.OK.
type PageRenderer interface {
	Render(ctx context.Context, rawURL string) RenderResult
}

// LinkExtractor returns the in-scope links found on one page.
type LinkExtractor interface {
	Extract(ctx context.Context, rawURL string) []string
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for artifact integrity.
type Hasher interface {
	Hash(r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
