// Package postprocess compresses the rendered PDFs and merges them into one document.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/metrics"
)

// DefaultMergedName is the file the merge pass writes into the output directory.
const DefaultMergedName = "documentacao_completa.pdf"

// ErrNoPDFs is returned by Merge when the directory holds no PDF files.
var ErrNoPDFs = errors.New("no pdf files to merge")

var configOnce sync.Once

// Processor runs the compress and merge passes over one directory.
type Processor struct {
	dir        string
	quality    Quality
	mergedName string
	logger     *zap.Logger
}

// NewProcessor returns a Processor for dir. An empty mergedName falls back to
// DefaultMergedName.
func NewProcessor(dir string, quality Quality, mergedName string, logger *zap.Logger) *Processor {
	// pdfcpu would otherwise create a config dir under the user's home.
	configOnce.Do(api.DisableConfigDir)
	if mergedName == "" {
		mergedName = DefaultMergedName
	}
	if quality == "" {
		quality = QualityMedium
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{dir: dir, quality: quality, mergedName: mergedName, logger: logger}
}

// MergedPath is where a successful merge leaves the combined document.
func (p *Processor) MergedPath() string {
	return filepath.Join(p.dir, p.mergedName)
}

// ListPDFs returns the *.pdf regular files in dir, in directory listing order.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// CompressAll compresses every PDF in the directory and returns how many
// succeeded. A failing file is logged and skipped.
func (p *Processor) CompressAll(ctx context.Context) int {
	files, err := ListPDFs(p.dir)
	if err != nil {
		p.logger.Error("compress pass could not list pdfs", zap.Error(err))
		return 0
	}
	p.logger.Info("compressing pdfs", zap.Int("files", len(files)), zap.String("quality", string(p.quality)))

	compressed := 0
	for _, path := range files {
		if ctx.Err() != nil {
			p.logger.Warn("compress pass interrupted", zap.Error(ctx.Err()), zap.Int("compressed", compressed))
			break
		}
		if err := p.Compress(path); err != nil {
			p.logger.Error("compress pdf failed", zap.String("file", path), zap.Error(err))
			metrics.ObserveCompression(false)
			continue
		}
		metrics.ObserveCompression(true)
		compressed++
	}
	return compressed
}

// MergeAll merges every PDF in the directory into MergedPath and reports
// whether the merge succeeded.
func (p *Processor) MergeAll(ctx context.Context) bool {
	if ctx.Err() != nil {
		p.logger.Warn("merge skipped", zap.Error(ctx.Err()))
		return false
	}
	err := p.Merge()
	switch {
	case errors.Is(err, ErrNoPDFs):
		p.logger.Warn("nothing to merge", zap.String("dir", p.dir))
		return false
	case err != nil:
		p.logger.Error("merge pdfs failed", zap.String("dir", p.dir), zap.Error(err))
		metrics.ObserveMerge(false)
		return false
	}
	p.logger.Info("pdfs merged", zap.String("file", p.MergedPath()))
	metrics.ObserveMerge(true)
	return true
}

// Merge appends the pages of every listed PDF, in listing order, into one
// document. The output is written beside the inputs under a non-.pdf name
// and renamed into place, so an earlier merged file may itself be an input.
func (p *Processor) Merge() error {
	files, err := ListPDFs(p.dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoPDFs
	}
	out := p.MergedPath()
	tmp := out + ".tmp"
	if err := api.MergeCreateFile(files, tmp, false, nil); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("merge %d files: %w", len(files), err)
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", out, err)
	}
	return nil
}
