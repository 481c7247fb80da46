package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	// Registered for Decode.
	_ "image/jpeg"
	_ "image/png"

	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
)

// ErrClosed is returned when using a closed rasterizer.
var ErrClosed = errors.New("raster: rasterizer is closed")

// Rasterizer renders an HTML document to a single raster image.
type Rasterizer interface {
	Rasterize(ctx context.Context, html string) (image.Image, error)
}

// Chrome rasterizes documents with a headless browser that is reused across calls.
// It is safe for concurrent use.
type Chrome struct {
	cfg           chromeConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewChrome starts a headless browser. The caller must call [Chrome.Close].
func NewChrome(opts ...Option) (*Chrome, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.chromePath == "" && cfg.download {
		path, err := launcher.NewBrowser().Get()
		if err != nil {
			return nil, fmt.Errorf("raster: downloading browser: %w", err)
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
	)
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("raster: starting browser: %w", err)
	}

	return &Chrome{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close stops the browser. It is idempotent.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.browserCancel()
	c.allocCancel()
	return nil
}

// Rasterize lays the document out at the configured viewport width and captures the full page.
func (c *Chrome) Rasterize(ctx context.Context, html string) (image.Image, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "invoice-*.html")
	if err != nil {
		return nil, fmt.Errorf("raster: creating temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return nil, fmt.Errorf("raster: writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("raster: closing temp file: %w", err)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, fmt.Errorf("raster: resolving path: %w", err)
	}

	if c.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.timeout)
		defer cancel()
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	// Tie the tab to the caller's deadline.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(c.cfg.viewportWidth, 600, chromedp.EmulateScale(c.cfg.scale)),
		chromedp.Navigate("file://"+abs),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.FullScreenshot(&buf, 100),
	); err != nil {
		// Close cancels the browser context under running captures.
		if c.browserCtx.Err() != nil {
			return nil, ErrClosed
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("raster: %w", ctx.Err())
		}
		return nil, fmt.Errorf("raster: capture failed: %w", err)
	}
	return Decode(bytes.NewReader(buf))
}

func (c *Chrome) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Decode reads a PNG or JPEG raster, for documents rasterized on the client.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("raster: decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("raster: empty image %dx%d", b.Dx(), b.Dy())
	}
	return img, nil
}
