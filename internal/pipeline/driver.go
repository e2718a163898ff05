// Package pipeline sequences one run: crawl, compress, merge, then publish.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/crawler"
	"github.com/JakeFAU/webtopdf/internal/metrics"
)

const tracerName = "github.com/JakeFAU/webtopdf/internal/pipeline"

// Run statuses reported in the summary.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Crawler runs the frontier to exhaustion.
type Crawler interface {
	Run(ctx context.Context) crawler.CrawlStats
}

// PostProcessor compresses and merges the rendered PDFs.
type PostProcessor interface {
	CompressAll(ctx context.Context) int
	MergeAll(ctx context.Context) bool
	MergedPath() string
}

// Config controls the optional publishing steps.
type Config struct {
	Seed            string
	BlobPrefix      string
	Topic           string
	MetricsTextfile string
}

// Summary is logged at the end of every run and published when a topic is set.
type Summary struct {
	RunID          string    `json:"run_id"`
	Seed           string    `json:"seed"`
	Status         string    `json:"status"`
	Visited        int       `json:"visited"`
	Rendered       int       `json:"rendered"`
	Batches        int       `json:"batches"`
	Compressed     int       `json:"compressed"`
	Merged         bool      `json:"merged"`
	MergedPath     string    `json:"merged_path,omitempty"`
	ArtifactURI    string    `json:"artifact_uri,omitempty"`
	ArtifactSHA256 string    `json:"artifact_sha256,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Driver wires the stages of a run. BlobStore and Publisher may be nil.
type Driver struct {
	crawler   Crawler
	post      PostProcessor
	blobStore crawler.BlobStore
	publisher crawler.Publisher
	hasher    crawler.Hasher
	clock     crawler.Clock
	ids       crawler.IDGenerator
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New constructs a Driver.
func New(
	c Crawler,
	post PostProcessor,
	blobStore crawler.BlobStore,
	publisher crawler.Publisher,
	hasher crawler.Hasher,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		crawler:   c,
		post:      post,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run executes every stage in order. Stage failures are isolated and show up
// in the summary; the only error returned is failing to allocate a run ID.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	runID, err := d.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("allocate run id: %w", err)
	}
	logger := d.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID, Seed: d.cfg.Seed, StartedAt: d.clock.Now()}
	logger.Info("run started", zap.String("seed", d.cfg.Seed))

	ctx, span := d.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.seed", d.cfg.Seed),
	))
	defer span.End()

	d.stage(ctx, "crawl", func(ctx context.Context) {
		stats := d.crawler.Run(ctx)
		summary.Visited = stats.Visited
		summary.Rendered = stats.Rendered
		summary.Batches = stats.Batches
	})
	d.stage(ctx, "compress", func(ctx context.Context) {
		summary.Compressed = d.post.CompressAll(ctx)
	})
	d.stage(ctx, "merge", func(ctx context.Context) {
		summary.Merged = d.post.MergeAll(ctx)
	})
	if summary.Merged {
		summary.MergedPath = d.post.MergedPath()
		d.stage(ctx, "upload", func(ctx context.Context) {
			if err := d.uploadArtifact(ctx, &summary); err != nil {
				logger.Error("artifact upload failed", zap.String("file", summary.MergedPath), zap.Error(err))
				trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())
			}
		})
	}

	summary.Status = deriveStatus(ctx, summary)
	summary.FinishedAt = d.clock.Now()
	span.SetAttributes(
		attribute.String("run.status", summary.Status),
		attribute.Int("run.visited", summary.Visited),
		attribute.Int("run.rendered", summary.Rendered),
	)

	if err := d.publishSummary(ctx, summary); err != nil {
		logger.Error("publish summary failed", zap.String("topic", d.cfg.Topic), zap.Error(err))
	}
	if d.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(d.cfg.MetricsTextfile); err != nil {
			logger.Error("write metrics textfile failed", zap.String("path", d.cfg.MetricsTextfile), zap.Error(err))
		}
	}

	logger.Info("run finished",
		zap.String("status", summary.Status),
		zap.Int("visited", summary.Visited),
		zap.Int("rendered", summary.Rendered),
		zap.Int("compressed", summary.Compressed),
		zap.Bool("merged", summary.Merged),
		zap.String("artifact_uri", summary.ArtifactURI),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// stage runs fn inside a child span named after the stage.
func (d *Driver) stage(ctx context.Context, name string, fn func(context.Context)) {
	ctx, span := d.tracer.Start(ctx, name)
	defer span.End()
	fn(ctx)
}

func (d *Driver) uploadArtifact(ctx context.Context, summary *Summary) error {
	if d.blobStore == nil {
		return nil
	}
	f, err := os.Open(summary.MergedPath) // #nosec G304 -- produced by the merge pass.
	if err != nil {
		return fmt.Errorf("open merged pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	digest, err := d.hasher.Hash(f)
	if err != nil {
		return fmt.Errorf("hash merged pdf: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind merged pdf: %w", err)
	}

	uri, err := d.blobStore.PutObject(ctx, d.buildBlobPath(summary.RunID, filepath.Base(summary.MergedPath)), "application/pdf", f)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	summary.ArtifactURI = uri
	summary.ArtifactSHA256 = digest
	return nil
}

func (d *Driver) publishSummary(ctx context.Context, summary Summary) error {
	if d.cfg.Topic == "" || d.publisher == nil {
		return nil
	}
	id, err := d.publisher.Publish(ctx, d.cfg.Topic, summary)
	if err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	d.logger.Info("run summary published", zap.String("run_id", summary.RunID), zap.String("message_id", id))
	return nil
}

func (d *Driver) buildBlobPath(runID, name string) string {
	prefix := strings.Trim(d.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s", runID, name)
	}
	return fmt.Sprintf("%s/%s/%s", prefix, runID, name)
}

func deriveStatus(ctx context.Context, summary Summary) string {
	switch {
	case ctx.Err() != nil:
		return StatusCanceled
	case summary.Rendered == 0:
		return StatusFailed
	default:
		return StatusSucceeded
	}
}
