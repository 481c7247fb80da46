package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-invoice/internal/layout"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	BindAddr           string
	DraftsDir          string
	RedisURL           string
	CORSAllowedOrigins []string

	PageFormat   layout.PageFormat
	PageMarginMM float64

	RasterScale      float64
	RasterMaxWidthPx int
	ChromePath       string
	ChromeNoSandbox  bool
	ChromeDownload   bool
	RenderTimeout    time.Duration
	RasterAttempts   int
	BreakerCooldown  time.Duration

	ExportCacheTTL   time.Duration
	IdempotencyTTL   time.Duration
	ExportRateLimit  int
	ExportRateWindow time.Duration
	BodyLimitBytes   int64

	CurrencySymbol string
	CurrencyCode   string
	PDFQRCode      bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		BindAddr:           strings.TrimSpace(k.String("HTTP_ADDR")),
		DraftsDir:          valueOrDefault(k.String("DRAFTS_DIR"), "data/drafts"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		PageMarginMM:       parseFloat(k.String("PAGE_MARGIN_MM"), layout.DefaultMargin),
		RasterScale:        parseFloat(k.String("RASTER_SCALE"), 2),
		RasterMaxWidthPx:   parseInt(k.String("RASTER_MAX_WIDTH_PX"), 2480),
		ChromePath:         strings.TrimSpace(k.String("CHROME_PATH")),
		ChromeNoSandbox:    parseBool(k.String("CHROME_NO_SANDBOX")),
		ChromeDownload:     parseBool(k.String("CHROME_DOWNLOAD")),
		RenderTimeout:      parseDuration(k.String("RENDER_TIMEOUT"), "30s"),
		RasterAttempts:     parseInt(k.String("RASTER_ATTEMPTS"), 2),
		BreakerCooldown:    parseDuration(k.String("RASTER_BREAKER_COOLDOWN"), "30s"),
		ExportCacheTTL:     parseDuration(k.String("EXPORT_CACHE_TTL"), "10m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		ExportRateLimit:    parseInt(k.String("EXPORT_RATE_LIMIT"), 30),
		ExportRateWindow:   parseDuration(k.String("EXPORT_RATE_WINDOW"), "1m"),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 20<<20)),
		CurrencySymbol:     valueOrDefault(k.String("CURRENCY_SYMBOL"), "$"),
		CurrencyCode:       strings.TrimSpace(k.String("CURRENCY_CODE")),
		PDFQRCode:          parseBool(k.String("PDF_QR_CODE")),
	}

	formatName := valueOrDefault(k.String("PAGE_FORMAT"), "A4")
	format, ok := layout.FormatByName(formatName)
	if !ok {
		return nil, fmt.Errorf("PAGE_FORMAT %q is not supported", formatName)
	}
	cfg.PageFormat = format

	if cfg.PageMarginMM < 0 || 2*cfg.PageMarginMM >= format.Width || 2*cfg.PageMarginMM >= format.Height {
		return nil, fmt.Errorf("PAGE_MARGIN_MM %.2f leaves no printable area on %s", cfg.PageMarginMM, format.Name)
	}
	if cfg.RasterScale <= 0 || cfg.RasterScale > 4 {
		return nil, fmt.Errorf("RASTER_SCALE must be in (0, 4], got %v", cfg.RasterScale)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to. Without HTTP_ADDR it listens on
// the loopback interface only.
func (c *Config) HTTPAddr() string {
	if c.BindAddr != "" {
		return c.BindAddr
	}
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = "8080"
	}
	return "127.0.0.1:" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
