package crawler

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/metrics"
)

// Extractor fetches a page and returns the in-scope links it contains.
type Extractor struct {
	scope   Scope
	fetcher Fetcher
	logger  *zap.Logger
}

// NewExtractor wires an extractor for scope.
func NewExtractor(scope Scope, fetcher Fetcher, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{scope: scope, fetcher: fetcher, logger: logger}
}

// Extract returns the distinct links found on rawURL, in document order. Fetch
// and parse failures are logged and yield an empty result.
func (e *Extractor) Extract(ctx context.Context, rawURL string) []string {
	resp, err := e.fetcher.Fetch(ctx, FetchRequest{URL: rawURL})
	if err != nil {
		e.logger.Error("fetch for links failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObservePage(metrics.PhaseExtract, false)
		return nil
	}
	links, err := e.parseLinks(resp.Body, rawURL)
	if err != nil {
		e.logger.Error("parse links failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObservePage(metrics.PhaseExtract, false)
		return nil
	}
	metrics.ObservePage(metrics.PhaseExtract, true)
	metrics.ObserveLinks(len(links))
	e.logger.Debug("links extracted", zap.String("url", rawURL), zap.Int("count", len(links)))
	return links
}

func (e *Extractor) parseLinks(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !IsCandidateLink(href) {
			return
		}
		link := NormalizeURL(href, pageURL)
		if hostOf(link) != e.scope.Host() || !e.scope.Allows(link) {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}
