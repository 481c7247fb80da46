package raster

import "time"

type chromeConfig struct {
	chromePath    string
	download      bool
	timeout       time.Duration
	noSandbox     bool
	scale         float64
	viewportWidth int64
}

func defaultConfig() chromeConfig {
	return chromeConfig{
		timeout:       30 * time.Second,
		scale:         2,
		viewportWidth: 794,
	}
}

// Option configures a [Chrome] rasterizer.
type Option func(*chromeConfig)

// WithChromePath sets the Chrome or Chromium executable.
func WithChromePath(path string) Option {
	return func(c *chromeConfig) {
		c.chromePath = path
	}
}

// WithBrowserDownload fetches a Chromium build when no executable path is configured.
func WithBrowserDownload() Option {
	return func(c *chromeConfig) {
		c.download = true
	}
}

// WithTimeout bounds a single rasterization. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *chromeConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox, required when running as root in containers.
func WithNoSandbox() Option {
	return func(c *chromeConfig) {
		c.noSandbox = true
	}
}

// WithScale sets the device scale factor of the capture. Values outside (0, 4] are ignored.
func WithScale(scale float64) Option {
	return func(c *chromeConfig) {
		if scale > 0 && scale <= 4 {
			c.scale = scale
		}
	}
}

// WithViewportWidth sets the CSS pixel width the document is laid out at.
func WithViewportWidth(px int64) Option {
	return func(c *chromeConfig) {
		if px > 0 {
			c.viewportWidth = px
		}
	}
}
