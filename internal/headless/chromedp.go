// Package headless renders pages to PDF through a shared headless Chrome.
package headless

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultNavigationTimeout = 60 * time.Second

var errEmptyPDF = errors.New("chrome returned an empty pdf")

// PDFOptions is the rendering configuration applied to every page of a run.
type PDFOptions struct {
	Quiet                 bool
	EnableLocalFileAccess bool
	Encoding              string
	Outline               bool
	JavaScript            bool
}

// DefaultPDFOptions returns quiet, local-file-enabled, UTF-8 rendering with
// no outline and scripting disabled.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Quiet:                 true,
		EnableLocalFileAccess: true,
		Encoding:              "UTF-8",
	}
}

// Config controls the behavior of the converter.
type Config struct {
	MaxTabs           int
	UserAgent         string
	ExecPath          string
	NavigationTimeout time.Duration
	Options           PDFOptions
}

// Converter implements crawler.Converter. The browser starts on first use and
// is shared by every conversion; MaxTabs bounds concurrently open tabs.
type Converter struct {
	cfg    Config
	logger *zap.Logger
	sem    chan struct{}

	startOnce     sync.Once
	startErr      error
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewConverter validates cfg and returns an idle converter.
func NewConverter(cfg Config, logger *zap.Logger) (*Converter, error) {
	if cfg.MaxTabs < 0 {
		return nil, fmt.Errorf("max tabs must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var sem chan struct{}
	if cfg.MaxTabs > 0 {
		sem = make(chan struct{}, cfg.MaxTabs)
	}
	return &Converter{cfg: cfg, logger: logger, sem: sem}, nil
}

// Convert navigates to rawURL and writes the printed PDF to outPath. The file
// only appears once the bytes are fully written.
func (c *Converter) Convert(ctx context.Context, rawURL, outPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("convert %s: %w", rawURL, err)
	}
	release, err := c.acquireSlot(ctx)
	if err != nil {
		return err
	}
	defer release()

	browserCtx, err := c.browser()
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.navTimeout())
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var pdf []byte
	if err := chromedp.Run(taskCtx, c.actions(rawURL, &pdf)); err != nil {
		return fmt.Errorf("chromedp print %s: %w", rawURL, err)
	}
	if len(pdf) == 0 {
		return fmt.Errorf("print %s: %w", rawURL, errEmptyPDF)
	}
	return writeFileAtomic(outPath, pdf)
}

// Close shuts the browser down if it was started.
func (c *Converter) Close() error {
	if c == nil {
		return nil
	}
	// Running the once here makes a later Convert fail instead of launching Chrome.
	c.startOnce.Do(func() {
		c.startErr = errors.New("converter closed")
	})
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

func (c *Converter) browser() (context.Context, error) {
	c.startOnce.Do(func() {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions()...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx, c.contextOptions()...)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			c.startErr = fmt.Errorf("start chrome: %w", err)
			return
		}
		c.logger.Info("headless chrome started", zap.Int("max_tabs", c.cfg.MaxTabs))
		c.browserCtx = browserCtx
		c.browserCancel = browserCancel
		c.allocCancel = allocCancel
	})
	return c.browserCtx, c.startErr
}

func (c *Converter) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	if c.cfg.Options.EnableLocalFileAccess {
		opts = append(opts, chromedp.Flag("allow-file-access-from-files", true))
	}
	return opts
}

func (c *Converter) contextOptions() []chromedp.ContextOption {
	if c.cfg.Options.Quiet {
		discard := func(string, ...any) {}
		return []chromedp.ContextOption{chromedp.WithLogf(discard), chromedp.WithErrorf(discard)}
	}
	sugar := c.logger.Sugar()
	return []chromedp.ContextOption{chromedp.WithLogf(sugar.Debugf), chromedp.WithErrorf(sugar.Warnf)}
}

func (c *Converter) actions(rawURL string, out *[]byte) chromedp.Tasks {
	opts := c.cfg.Options
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			if opts.Encoding != "" {
				headers := network.Headers{"Accept-Charset": opts.Encoding}
				if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
					return fmt.Errorf("set accept-charset: %w", err)
				}
			}
			if !opts.JavaScript {
				if err := emulation.SetScriptExecutionDisabled(true).Do(ctx); err != nil {
					return fmt.Errorf("disable scripts: %w", err)
				}
			}
			return nil
		}),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithGenerateDocumentOutline(opts.Outline).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			*out = data
			return nil
		}),
	}
}

func (c *Converter) acquireSlot(ctx context.Context) (func(), error) {
	if c.sem == nil {
		return func() {}, nil
	}
	select {
	case c.sem <- struct{}{}:
		return func() { <-c.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (c *Converter) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
