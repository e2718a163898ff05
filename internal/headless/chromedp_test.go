package headless

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewConverterLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewConverter(Config{MaxTabs: -1}, nil); err == nil {
		t.Fatal("expected error for negative max tabs")
	}
	conv, err := NewConverter(Config{MaxTabs: 2}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cap(conv.sem) != 2 {
		t.Fatalf("expected semaphore capacity 2, got %d", cap(conv.sem))
	}
	unbounded, err := NewConverter(Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unbounded.sem != nil {
		t.Fatal("expected no semaphore when max tabs is zero")
	}
}

func TestDefaultPDFOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultPDFOptions()
	if !opts.Quiet || !opts.EnableLocalFileAccess {
		t.Fatalf("expected quiet rendering with local file access, got %+v", opts)
	}
	if opts.Encoding != "UTF-8" {
		t.Fatalf("expected UTF-8 encoding, got %q", opts.Encoding)
	}
	if opts.Outline || opts.JavaScript {
		t.Fatalf("expected outline and javascript disabled, got %+v", opts)
	}
}

func TestConverterNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	conv := &Converter{}
	if got := conv.navTimeout(); got != defaultNavigationTimeout {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	conv.cfg.NavigationTimeout = time.Second
	if got := conv.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestOptionsBuildersGrowWithConfig(t *testing.T) {
	t.Parallel()

	base := (&Converter{logger: zap.NewNop()}).allocatorOptions()
	full := (&Converter{logger: zap.NewNop(), cfg: Config{
		UserAgent: "webtopdf",
		ExecPath:  "/usr/bin/chromium",
		Options:   PDFOptions{EnableLocalFileAccess: true},
	}}).allocatorOptions()
	if len(full) != len(base)+3 {
		t.Fatalf("expected three extra allocator options, got %d vs %d", len(full), len(base))
	}

	quiet := (&Converter{logger: zap.NewNop(), cfg: Config{Options: PDFOptions{Quiet: true}}}).contextOptions()
	loud := (&Converter{logger: zap.NewNop()}).contextOptions()
	if len(quiet) != 2 || len(loud) != 2 {
		t.Fatalf("expected log and error sinks in both modes, got %d and %d", len(quiet), len(loud))
	}
}

func TestActionsIncludeSetupNavigatePrint(t *testing.T) {
	t.Parallel()

	var out []byte
	tasks := (&Converter{cfg: Config{Options: DefaultPDFOptions()}}).actions("https://x.com/docs", &out)
	if len(tasks) != 4 {
		t.Fatalf("expected setup, navigate, wait and print actions, got %d", len(tasks))
	}
}

func TestConvertCanceledContext(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(Config{MaxTabs: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "page.pdf")
	if err := conv.Convert(ctx, "https://x.com", out); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if conv.browserCtx != nil {
		t.Fatal("browser should not start for a canceled request")
	}
}

func TestConvertMissingBrowser(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(Config{ExecPath: filepath.Join(t.TempDir(), "no-such-chrome")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = conv.Close() })

	out := filepath.Join(t.TempDir(), "page.pdf")
	first := conv.Convert(context.Background(), "https://x.com", out)
	if first == nil {
		t.Fatal("expected start error when chrome is missing")
	}
	second := conv.Convert(context.Background(), "https://x.com/other", out)
	if second == nil || second.Error() != first.Error() {
		t.Fatalf("expected cached start error, got %v", second)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestCloseBeforeStartBlocksLaunch(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := conv.Convert(context.Background(), "https://x.com", filepath.Join(t.TempDir(), "x.pdf")); err == nil {
		t.Fatal("expected convert after close to fail")
	}
	var nilConv *Converter
	if err := nilConv.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestAcquireSlotHonorsContext(t *testing.T) {
	t.Parallel()

	conv, err := NewConverter(Config{MaxTabs: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	release, err := conv.acquireSlot(context.Background())
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := conv.acquireSlot(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while slot held, got %v", err)
	}
	release()
	if _, err := conv.acquireSlot(context.Background()); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("expected parent cancellation to propagate")
	}

	noop := forwardCancel(nil, func() { t.Fatal("must not be called") })
	noop()
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := writeFileAtomic(path, []byte("%PDF-1.4")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- temp dir
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q err=%v", data, err)
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, stat err=%v", err)
	}
	if err := writeFileAtomic(filepath.Join(t.TempDir(), "missing", "out.pdf"), nil); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
