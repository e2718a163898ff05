// Package config loads and validates run configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/webtopdf/internal/crawler"
	"github.com/JakeFAU/webtopdf/internal/headless"
	"github.com/JakeFAU/webtopdf/internal/postprocess"
)

// Config captures every run knob loaded via Viper.
type Config struct {
	Site    SiteConfig    `mapstructure:"site"`
	Output  OutputConfig  `mapstructure:"output"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Render  RenderConfig  `mapstructure:"render"`
	PDF     PDFConfig     `mapstructure:"pdf"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Run     RunConfig     `mapstructure:"run"`
}

// SiteConfig names the documentation site to crawl.
type SiteConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	DocsPath string `mapstructure:"docs_path"`
}

// OutputConfig is where per-page PDFs and the merged document land.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// CrawlerConfig governs the frontier scheduler and worker pool.
type CrawlerConfig struct {
	Workers           int           `mapstructure:"workers"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchPause        time.Duration `mapstructure:"batch_pause"`
	DedupeFrontier    bool          `mapstructure:"dedupe_frontier"`
	IgnoredExtensions []string      `mapstructure:"ignored_extensions"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// HTTPConfig bounds each page fetch.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// RenderConfig configures headless Chrome and the PDF print options.
type RenderConfig struct {
	NavigationTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds"`
	ChromePath               string `mapstructure:"chrome_path"`
	MaxTabs                  int    `mapstructure:"max_tabs"`
	Quiet                    bool   `mapstructure:"quiet"`
	EnableLocalFileAccess    bool   `mapstructure:"enable_local_file_access"`
	Encoding                 string `mapstructure:"encoding"`
	Outline                  bool   `mapstructure:"outline"`
	JavaScript               bool   `mapstructure:"javascript"`
}

// PDFConfig controls the compress and merge passes.
type PDFConfig struct {
	Quality    string `mapstructure:"quality"`
	MergedName string `mapstructure:"merged_name"`
}

// LoggingConfig toggles zap development features, level and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// MetricsConfig points at an optional node-exporter textfile.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig controls where run spans go. With LogSpans off they stay
// in-process and only the trace context travels with Pub/Sub messages.
type TracingConfig struct {
	LogSpans bool `mapstructure:"log_spans"`
}

// StorageConfig selects where the merged document is uploaded.
type StorageConfig struct {
	Provider     string `mapstructure:"provider"`
	LocalDir     string `mapstructure:"local_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// RunConfig pins the run identifier; empty means a fresh UUIDv7 per run.
type RunConfig struct {
	ID string `mapstructure:"id"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"base-url":  "site.base_url",
	"docs-path": "site.docs_path",
	"output":    "output.dir",
	"workers":   "crawler.workers",
	"quality":   "pdf.quality",
	"run-id":    "run.id",
}

// Load builds a Config from defaults, an optional file, WEBTOPDF_* env vars
// and finally any flags the caller set explicitly.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBTOPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	pdfOpts := headless.DefaultPDFOptions()
	v.SetDefault("site.base_url", "")
	v.SetDefault("site.docs_path", "/")
	v.SetDefault("output.dir", "pdfsite")
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.batch_size", crawler.DefaultBatchSize)
	v.SetDefault("crawler.batch_pause", crawler.DefaultBatchPause)
	v.SetDefault("crawler.dedupe_frontier", false)
	v.SetDefault("crawler.ignored_extensions", crawler.DefaultIgnoredExtensions)
	v.SetDefault("crawler.user_agent", "webtopdf/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("render.navigation_timeout_seconds", 60)
	v.SetDefault("render.chrome_path", "")
	v.SetDefault("render.max_tabs", 0)
	v.SetDefault("render.quiet", pdfOpts.Quiet)
	v.SetDefault("render.enable_local_file_access", pdfOpts.EnableLocalFileAccess)
	v.SetDefault("render.encoding", pdfOpts.Encoding)
	v.SetDefault("render.outline", pdfOpts.Outline)
	v.SetDefault("render.javascript", pdfOpts.JavaScript)
	v.SetDefault("pdf.quality", string(postprocess.QualityMedium))
	v.SetDefault("pdf.merged_name", postprocess.DefaultMergedName)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.log_spans", false)
	v.SetDefault("storage.provider", "none")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("storage.cache_control", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("run.id", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BaseURL) == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute url, got %q", c.Site.BaseURL)
	}
	if !strings.HasPrefix(c.Site.DocsPath, "/") {
		return fmt.Errorf("site.docs_path must start with /, got %q", c.Site.DocsPath)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.BatchPause < 0 {
		return fmt.Errorf("crawler.batch_pause must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Render.NavigationTimeoutSeconds <= 0 {
		return fmt.Errorf("render.navigation_timeout_seconds must be > 0")
	}
	if c.Render.MaxTabs < 0 {
		return fmt.Errorf("render.max_tabs must be >= 0")
	}
	if _, err := postprocess.ParseQuality(c.PDF.Quality); err != nil {
		return fmt.Errorf("pdf.quality: %w", err)
	}
	if strings.ContainsAny(c.PDF.MergedName, `/\`) || !strings.HasSuffix(c.PDF.MergedName, ".pdf") {
		return fmt.Errorf("pdf.merged_name must be a bare *.pdf file name, got %q", c.PDF.MergedName)
	}
	switch c.Storage.Provider {
	case "", "none":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.provider is local")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// FetchTimeout is the per-request budget for page fetches.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PDFOptions converts the render section into headless print options.
func (c Config) PDFOptions() headless.PDFOptions {
	return headless.PDFOptions{
		Quiet:                 c.Render.Quiet,
		EnableLocalFileAccess: c.Render.EnableLocalFileAccess,
		Encoding:              c.Render.Encoding,
		Outline:               c.Render.Outline,
		JavaScript:            c.Render.JavaScript,
	}
}

// NavigationTimeout bounds one headless print.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Render.NavigationTimeoutSeconds) * time.Second
}
