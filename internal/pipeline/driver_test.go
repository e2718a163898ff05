package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtopdf/internal/crawler"
	"github.com/JakeFAU/webtopdf/internal/hash/sha256"
	"github.com/JakeFAU/webtopdf/internal/id/uuid"
	pubmemory "github.com/JakeFAU/webtopdf/internal/publisher/memory"
	"github.com/JakeFAU/webtopdf/internal/storage/memory"
)

const testRunID = "0192f3a4-7b3c-7d8e-9f00-112233445566"

type fakeCrawler struct {
	stats crawler.CrawlStats
	calls int
}

func (f *fakeCrawler) Run(context.Context) crawler.CrawlStats {
	f.calls++
	return f.stats
}

type fakePost struct {
	dir        string
	compressed int
	mergeOK    bool
	order      []string
}

func (f *fakePost) CompressAll(context.Context) int {
	f.order = append(f.order, "compress")
	return f.compressed
}

func (f *fakePost) MergeAll(context.Context) bool {
	f.order = append(f.order, "merge")
	if f.mergeOK {
		_ = os.WriteFile(f.MergedPath(), []byte("hello world"), 0o600)
	}
	return f.mergeOK
}

func (f *fakePost) MergedPath() string {
	return filepath.Join(f.dir, "documentacao_completa.pdf")
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

func newDriver(t *testing.T, c Crawler, post PostProcessor, blobs crawler.BlobStore, pub crawler.Publisher, cfg Config) *Driver {
	t.Helper()
	return New(c, post, blobs, pub, sha256.New(), &fakeClock{now: time.Unix(100, 0).UTC()}, uuid.Static(testRunID), cfg, zap.NewNop())
}

func TestDriver_Run_FullFlow(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{stats: crawler.CrawlStats{Visited: 5, Rendered: 4, Batches: 2}}
	post := &fakePost{dir: t.TempDir(), compressed: 4, mergeOK: true}
	blobs := memory.NewBlobStore()
	pub := pubmemory.New()
	textfile := filepath.Join(t.TempDir(), "webtopdf.prom")

	d := newDriver(t, c, post, blobs, pub, Config{
		Seed:            "https://x.com/docs",
		BlobPrefix:      "/runs/",
		Topic:           "webtopdf-runs",
		MetricsTextfile: textfile,
	})
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, c.calls)
	require.Equal(t, []string{"compress", "merge"}, post.order)
	require.Equal(t, testRunID, summary.RunID)
	require.Equal(t, StatusSucceeded, summary.Status)
	require.Equal(t, 5, summary.Visited)
	require.Equal(t, 4, summary.Rendered)
	require.Equal(t, 4, summary.Compressed)
	require.True(t, summary.Merged)
	require.Equal(t, post.MergedPath(), summary.MergedPath)
	require.True(t, summary.FinishedAt.After(summary.StartedAt))

	wantPath := "runs/" + testRunID + "/documentacao_completa.pdf"
	require.Equal(t, "memory://"+wantPath, summary.ArtifactURI)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", summary.ArtifactSHA256)
	obj, ok := blobs.Get(wantPath)
	require.True(t, ok)
	require.Equal(t, "application/pdf", obj.ContentType)
	require.Equal(t, "hello world", string(obj.Data))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "webtopdf-runs", msgs[0].Topic)
	var published Summary
	require.NoError(t, msgs[0].Decode(&published))
	require.Equal(t, summary.RunID, published.RunID)
	require.Equal(t, summary.ArtifactSHA256, published.ArtifactSHA256)
	require.Equal(t, "https://x.com/docs", published.Seed)

	data, err := os.ReadFile(textfile) // #nosec G304 -- temp dir
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "webtopdf_"))
}

func TestDriver_Run_MergeFailureSkipsUpload(t *testing.T) {
	t.Parallel()

	post := &fakePost{dir: t.TempDir(), compressed: 0, mergeOK: false}
	blobs := memory.NewBlobStore()
	pub := pubmemory.New()

	d := newDriver(t, &fakeCrawler{}, post, blobs, pub, Config{Topic: "runs"})
	summary, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, StatusFailed, summary.Status)
	require.False(t, summary.Merged)
	require.Empty(t, summary.MergedPath)
	require.Empty(t, summary.ArtifactURI)
	require.Empty(t, blobs.Paths())
	require.Len(t, pub.Messages(), 1)
}

func TestDriver_Run_WithoutOptionalStages(t *testing.T) {
	t.Parallel()

	post := &fakePost{dir: t.TempDir(), compressed: 1, mergeOK: true}
	d := newDriver(t, &fakeCrawler{stats: crawler.CrawlStats{Visited: 1, Rendered: 1}}, post, nil, nil, Config{Topic: "runs"})

	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, summary.Status)
	require.True(t, summary.Merged)
	require.Empty(t, summary.ArtifactURI)
	require.Empty(t, summary.ArtifactSHA256)
}

func TestDriver_Run_PublishingFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	post := &fakePost{dir: t.TempDir(), compressed: 2, mergeOK: true}
	pub := pubmemory.New()
	pub.FailWith(errors.New("broker down"))

	d := newDriver(t, &fakeCrawler{stats: crawler.CrawlStats{Visited: 2, Rendered: 2}}, post, failingStore{}, pub, Config{Topic: "runs"})
	summary, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, summary.Status)
	require.True(t, summary.Merged)
	require.Empty(t, summary.ArtifactURI)
	require.Equal(t, 2, summary.Compressed)
}

func TestDriver_Run_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newDriver(t, &fakeCrawler{stats: crawler.CrawlStats{Visited: 1, Rendered: 1}}, &fakePost{dir: t.TempDir()}, nil, nil, Config{})

	summary, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, summary.Status)
}

func TestDriver_Run_IDFailure(t *testing.T) {
	t.Parallel()

	c := &fakeCrawler{}
	d := New(c, &fakePost{dir: t.TempDir()}, nil, nil, sha256.New(), &fakeClock{}, failingIDs{}, Config{}, nil)
	_, err := d.Run(context.Background())
	require.Error(t, err)
	require.Zero(t, c.calls)
}

func TestDriver_Run_RecordsStageSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	post := &fakePost{dir: t.TempDir(), compressed: 1, mergeOK: true}
	d := newDriver(t, &fakeCrawler{stats: crawler.CrawlStats{Visited: 1, Rendered: 1}}, post, failingStore{}, nil, Config{})
	d.tracer = tp.Tracer("test")

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	require.Equal(t, []string{"crawl", "compress", "merge", "upload", "run"}, names)

	ended := recorder.Ended()
	upload := ended[3]
	require.Equal(t, codes.Error, upload.Status().Code)
	run := ended[4]
	for _, child := range ended[:4] {
		require.Equal(t, run.SpanContext().SpanID(), child.Parent().SpanID())
	}
}

func TestBuildBlobPath(t *testing.T) {
	t.Parallel()

	d := &Driver{}
	require.Equal(t, "id/doc.pdf", d.buildBlobPath("id", "doc.pdf"))
	d.cfg.BlobPrefix = "/a/b/"
	require.Equal(t, "a/b/id/doc.pdf", d.buildBlobPath("id", "doc.pdf"))
}
