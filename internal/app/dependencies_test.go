package app_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-invoice/internal/app"
	"github.com/noah-isme/backend-invoice/internal/config"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/lock"
	"github.com/noah-isme/backend-invoice/internal/ratelimit"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{"DRAFTS_DIR": t.TempDir(), "REDIS_URL": ""}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadForTests(base)
	require.NoError(t, err)
	return cfg
}

func TestNewWithoutRedis(t *testing.T) {
	cfg := testConfig(t, map[string]string{"PAGE_FORMAT": "Letter", "PDF_QR_CODE": "true"})
	deps, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, deps.Close()) })

	require.Nil(t, deps.Redis)
	require.Nil(t, deps.Rasterizer)
	require.IsType(t, &ratelimit.Memory{}, deps.Limiter)
	require.IsType(t, &lock.Local{}, deps.Locks)
	require.Equal(t, layout.Letter, deps.Assembler.Format)
	require.True(t, deps.Assembler.QRCode)
	// Two attempts at the render timeout plus one backoff at full jitter and the assembly allowance.
	require.Equal(t, 2*cfg.RenderTimeout+240*time.Millisecond+10*time.Second, deps.LockTTL)
	require.Greater(t, deps.LockTTL, cfg.RenderTimeout*time.Duration(cfg.RasterAttempts))
	require.Equal(t, deps.LockTTL, deps.InvoiceHandler().LockTTL)
	require.Equal(t, cfg.RasterMaxWidthPx, deps.Assembler.MaxWidthPx)

	// The export cache degrades to a no-op.
	require.NoError(t, deps.Cache.Set(context.Background(), "k", []byte("pdf")))
	_, ok, err := deps.Cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	d := draft.New(time.Now())
	require.NoError(t, deps.Store.Save(context.Background(), d))
	h := deps.InvoiceHandler()
	loaded, err := h.Store.Load(context.Background(), d.ID)
	require.NoError(t, err)
	require.Equal(t, d.Invoice.Number, loaded.Invoice.Number)
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{"REDIS_URL": "redis://" + mr.Addr()})
	deps, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.NoError(t, err)

	require.NotNil(t, deps.Redis)
	require.IsType(t, ratelimit.Sliding{}, deps.Limiter)
	require.IsType(t, lock.Redis{}, deps.Locks)

	require.NoError(t, deps.Cache.Set(context.Background(), "k", []byte("pdf")))
	data, ok, err := deps.Cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("pdf"), data)

	require.NoError(t, deps.Close())
	require.Error(t, deps.Redis.Ping(context.Background()).Err())
	require.NoError(t, deps.Close())
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg := testConfig(t, map[string]string{"REDIS_URL": "redis://" + addr})
	_, err := app.New(context.Background(), cfg, zerolog.Nop(), app.Options{})
	require.ErrorContains(t, err, "ping redis")
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := app.New(context.Background(), nil, zerolog.Nop(), app.Options{})
	require.Error(t, err)
}
