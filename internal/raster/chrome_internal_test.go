package raster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRasterizeAfterBrowserGoneReportsClosed(t *testing.T) {
	browserCtx, browserCancel := context.WithCancel(context.Background())
	c := &Chrome{
		cfg:           defaultConfig(),
		allocCancel:   func() {},
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	// The browser context is cancelled while the closed flag is not yet visible to the capture.
	browserCancel()

	_, err := c.Rasterize(context.Background(), "<html><body>invoice</body></html>")
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, c.Close())
	_, err = c.Rasterize(context.Background(), "<html><body>invoice</body></html>")
	require.ErrorIs(t, err, ErrClosed)
}
