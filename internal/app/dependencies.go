package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-invoice/internal/config"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/export"
	"github.com/noah-isme/backend-invoice/internal/invoice"
	"github.com/noah-isme/backend-invoice/internal/lock"
	"github.com/noah-isme/backend-invoice/internal/preview"
	"github.com/noah-isme/backend-invoice/internal/raster"
	"github.com/noah-isme/backend-invoice/internal/ratelimit"
	"github.com/noah-isme/backend-invoice/internal/resilience"
)

// assembleAllowance covers preview rendering and PDF assembly around the rasterizer.
const assembleAllowance = 10 * time.Second

// Options selects the optional parts of the dependency graph.
type Options struct {
	// Rasterizer starts a headless browser for server side exports.
	Rasterizer bool
	// RequireRasterizer turns a browser start failure into an error instead of a warning.
	RequireRasterizer bool
	// RedisMetrics instruments the Redis client with OpenTelemetry metrics.
	RedisMetrics bool
}

// Dependencies enumerates core services shared by the API server and the CLI.
type Dependencies struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Redis      *redis.Client
	Store      *draft.FileStore
	Validator  *validator.Validate
	Renderer   *preview.Renderer
	Rasterizer raster.Rasterizer
	Assembler  *export.Assembler
	Cache      *export.Cache
	Limiter    ratelimit.Limiter
	Locks      lock.Locker
	// LockTTL outlives the slowest guarded render, retries and PDF assembly included.
	LockTTL time.Duration

	closers []func() error
}

// New wires the dependencies described by cfg. Redis is optional: without REDIS_URL the export cache
// is disabled and rate limits are kept in process memory.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Validator: draft.NewValidator(),
	}

	store, err := draft.NewFileStore(cfg.DraftsDir)
	if err != nil {
		return nil, err
	}
	deps.Store = store

	renderer, err := preview.NewRenderer(preview.Options{Symbol: cfg.CurrencySymbol, CurrencyCode: cfg.CurrencyCode})
	if err != nil {
		return nil, err
	}
	deps.Renderer = renderer
	deps.Assembler = NewAssembler(cfg)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		client, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics)
		if err != nil {
			return nil, err
		}
		deps.Redis = client
		deps.closers = append(deps.closers, client.Close)
		deps.Limiter = ratelimit.Sliding{Client: client, Prefix: "invoice:rl", Window: cfg.ExportRateWindow, Max: cfg.ExportRateLimit}
		deps.Locks = lock.Redis{R: client, Prefix: "invoice:lock:"}
	} else {
		logger.Info().Msg("redis disabled, export cache off and rate limits kept in memory")
		deps.Limiter = ratelimit.NewMemory(cfg.ExportRateWindow, cfg.ExportRateLimit)
		deps.Locks = &lock.Local{}
	}
	deps.Cache = export.NewCache(deps.Redis, cfg.ExportCacheTTL)

	guard := resilience.Rasterizer{
		MaxAttempts: cfg.RasterAttempts,
		BaseBackoff: 200 * time.Millisecond,
		Jitter:      0.2,
	}
	deps.LockTTL = guard.Budget(cfg.RenderTimeout) + assembleAllowance
	if opts.Rasterizer || opts.RequireRasterizer {
		chrome, err := NewRasterizer(cfg)
		switch {
		case err == nil:
			guard.Next = chrome
			guard.Breaker = resilience.NewBreaker("chrome", 3, 0.5, cfg.BreakerCooldown).WithLogger(logger)
			deps.Rasterizer = guard
			deps.closers = append(deps.closers, chrome.Close)
		case opts.RequireRasterizer:
			_ = deps.Close()
			return nil, err
		default:
			logger.Warn().Err(err).Msg("headless browser unavailable, server side export disabled")
		}
	}
	return deps, nil
}

// NewRedis connects to Redis and instruments the client with OpenTelemetry.
func NewRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRasterizer starts the headless browser configured by cfg.
func NewRasterizer(cfg *config.Config) (*raster.Chrome, error) {
	opts := []raster.Option{
		raster.WithTimeout(cfg.RenderTimeout),
		raster.WithScale(cfg.RasterScale),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, raster.WithChromePath(cfg.ChromePath))
	}
	if cfg.ChromeDownload {
		opts = append(opts, raster.WithBrowserDownload())
	}
	if cfg.ChromeNoSandbox {
		opts = append(opts, raster.WithNoSandbox())
	}
	return raster.NewChrome(opts...)
}

// NewAssembler builds the PDF assembler for the configured page layout.
func NewAssembler(cfg *config.Config) *export.Assembler {
	a := export.NewAssembler(cfg.PageFormat)
	a.Margin = cfg.PageMarginMM
	a.MaxWidthPx = cfg.RasterMaxWidthPx
	a.QRCode = cfg.PDFQRCode
	return a
}

// InvoiceHandler returns the HTTP handler backed by these dependencies.
func (d *Dependencies) InvoiceHandler() *invoice.Handler {
	return &invoice.Handler{
		Store:      d.Store,
		Validator:  d.Validator,
		Renderer:   d.Renderer,
		Rasterizer: d.Rasterizer,
		Assembler:  d.Assembler,
		Cache:      d.Cache,
		Locks:      d.Locks,
		LockTTL:    d.LockTTL,
		Logger:     d.Logger,
	}
}

// Close releases the browser and the Redis connection, in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
