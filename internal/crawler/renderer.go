package crawler

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/metrics"
)

// Renderer fetches a page to confirm it is reachable, then hands it to the
// Converter. One call writes at most one PDF into the output directory.
type Renderer struct {
	scope     Scope
	fetcher   Fetcher
	converter Converter
	outputDir string
	logger    *zap.Logger
}

// NewRenderer wires a renderer that writes into outputDir.
func NewRenderer(scope Scope, fetcher Fetcher, converter Converter, outputDir string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{
		scope:     scope,
		fetcher:   fetcher,
		converter: converter,
		outputDir: outputDir,
		logger:    logger,
	}
}

// Render never returns an error: every failure is logged and reported as OK=false.
func (r *Renderer) Render(ctx context.Context, rawURL string) RenderResult {
	result := RenderResult{URL: rawURL}
	if _, err := r.fetcher.Fetch(ctx, FetchRequest{URL: rawURL}); err != nil {
		r.logger.Error("fetch before render failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObservePage(metrics.PhaseRender, false)
		return result
	}

	target := filepath.Join(r.outputDir, r.scope.FileName(rawURL))
	if err := r.converter.Convert(ctx, rawURL, target); err != nil {
		r.logger.Error("render to pdf failed", zap.String("url", rawURL), zap.String("path", target), zap.Error(err))
		metrics.ObservePage(metrics.PhaseRender, false)
		return result
	}

	r.logger.Debug("page rendered", zap.String("url", rawURL), zap.String("path", target))
	metrics.ObservePage(metrics.PhaseRender, true)
	result.Path = target
	result.OK = true
	return result
}
