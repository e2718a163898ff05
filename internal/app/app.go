// Package app initializes and holds long-lived run services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"os"

	gstorage "cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/clock/system"
	"github.com/JakeFAU/webtopdf/internal/config"
	"github.com/JakeFAU/webtopdf/internal/crawler"
	"github.com/JakeFAU/webtopdf/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/webtopdf/internal/fetcher/colly"
	"github.com/JakeFAU/webtopdf/internal/hash/sha256"
	"github.com/JakeFAU/webtopdf/internal/headless"
	"github.com/JakeFAU/webtopdf/internal/id/uuid"
	"github.com/JakeFAU/webtopdf/internal/metrics"
	"github.com/JakeFAU/webtopdf/internal/pipeline"
	"github.com/JakeFAU/webtopdf/internal/postprocess"
	"github.com/JakeFAU/webtopdf/internal/publisher/pubsub"
	"github.com/JakeFAU/webtopdf/internal/storage/gcs"
	"github.com/JakeFAU/webtopdf/internal/storage/local"
	"github.com/JakeFAU/webtopdf/internal/telemetry"
)

// App holds the services of one run. It is built once by the CLI and closed
// after the run finishes.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	driver  *pipeline.Driver
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Logger returns the run logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// New wires every component from cfg. It fails fast when a provider cannot
// be initialized; a failure here means no page has been fetched yet.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	scope, err := crawler.NewScope(cfg.Site.BaseURL, cfg.Site.DocsPath, cfg.Crawler.IgnoredExtensions)
	if err != nil {
		return nil, fmt.Errorf("build scope: %w", err)
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	quality, err := postprocess.ParseQuality(cfg.PDF.Quality)
	if err != nil {
		return nil, fmt.Errorf("parse quality: %w", err)
	}

	ids, err := buildIDs(cfg.Run.ID)
	if err != nil {
		return nil, err
	}

	var processors []sdktrace.SpanProcessor
	if cfg.Tracing.LogSpans {
		processors = append(processors, telemetry.NewLogSpanProcessor(logger.Named("trace")))
	}
	tp, err := telemetry.InitTracerProvider(ctx, scope.Seed(), processors...)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.addCloser("tracer provider", func() error { return tp.Shutdown(context.Background()) })

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})

	maxTabs := cfg.Render.MaxTabs
	if maxTabs == 0 {
		maxTabs = cfg.Crawler.Workers
	}
	converter, err := headless.NewConverter(headless.Config{
		MaxTabs:           maxTabs,
		UserAgent:         cfg.Crawler.UserAgent,
		ExecPath:          cfg.Render.ChromePath,
		NavigationTimeout: cfg.NavigationTimeout(),
		Options:           cfg.PDFOptions(),
	}, logger.Named("headless"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init converter: %w", err)
	}
	a.addCloser("converter", converter.Close)

	pool := dispatcher.New(cfg.Crawler.Workers)
	a.addCloser("worker pool", pool.Close)

	renderer := crawler.NewRenderer(scope, fetcher, converter, cfg.Output.Dir, logger.Named("render"))
	extractor := crawler.NewExtractor(scope, fetcher, logger.Named("extract"))
	scheduler := crawler.NewScheduler(scope, renderer, extractor, pool, crawler.SchedulerConfig{
		BatchSize:      cfg.Crawler.BatchSize,
		BatchPause:     cfg.Crawler.BatchPause,
		DedupeFrontier: cfg.Crawler.DedupeFrontier,
	}, logger.Named("scheduler"), crawler.WithAdmitHook(func(batch []string) {
		logger.Debug("batch admitted", zap.Strings("urls", batch))
	}))
	processor := postprocess.NewProcessor(cfg.Output.Dir, quality, cfg.PDF.MergedName, logger.Named("postprocess"))

	blobStore, err := a.buildBlobStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.driver = pipeline.New(
		scheduler,
		processor,
		blobStore,
		publisher,
		sha256.New(),
		system.New(),
		ids,
		pipeline.Config{
			Seed:            scope.Seed(),
			BlobPrefix:      cfg.Storage.Prefix,
			Topic:           cfg.PubSub.TopicName,
			MetricsTextfile: cfg.Metrics.Textfile,
		},
		logger.Named("pipeline"),
	)

	logger.Info("application services initialized",
		zap.String("seed", scope.Seed()),
		zap.String("output_dir", cfg.Output.Dir),
		zap.Int("workers", cfg.Crawler.Workers),
		zap.String("quality", string(quality)),
		zap.String("storage", cfg.Storage.Provider),
	)
	return a, nil
}

// Run executes one crawl-compress-merge run.
func (a *App) Run(ctx context.Context) (pipeline.Summary, error) {
	return a.driver.Run(ctx)
}

// Close releases every service in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) buildBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	switch a.cfg.Storage.Provider {
	case "", "none":
		return nil, nil
	case "local":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		a.logger.Info("using local artifact storage", zap.String("dir", a.cfg.Storage.LocalDir))
		return store, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, CacheControl: a.cfg.Storage.CacheControl})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.addCloser("gcs", store.Close)
		if err := store.Verify(ctx); err != nil {
			return nil, fmt.Errorf("verify gcs bucket: %w", err)
		}
		a.logger.Info("using gcs artifact storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", a.cfg.Storage.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context) (crawler.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub publisher: %w", err)
	}
	a.addCloser("pubsub", pub.Close)
	a.logger.Info("publishing run summaries", zap.String("topic", a.cfg.PubSub.TopicName))
	return pub, nil
}

func buildIDs(runID string) (crawler.IDGenerator, error) {
	if runID == "" {
		return uuid.New(), nil
	}
	static, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	return static, nil
}
