package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-invoice/internal/common"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/export"
	"github.com/noah-isme/backend-invoice/internal/obs"
	"github.com/noah-isme/backend-invoice/internal/pricing"
	"github.com/noah-isme/backend-invoice/internal/raster"
)

const (
	pdfContentType  = "application/pdf"
	pageCountHeader = "X-Page-Count"
	maxRasterMemory = 32 << 20
)

var errRasterize = errors.New("rasterize invoice")

var tracer = otel.Tracer("github.com/noah-isme/backend-invoice/internal/invoice")

// ExportDraft validates a stored draft, rasterizes its preview and returns the paginated PDF.
// Identical exports share one render through the export lock and the PDF cache.
func (h *Handler) ExportDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "invoice.export_draft")
	defer span.End()

	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("invoice.number", d.Invoice.Number))
	if err := d.ValidateForExport(h.Validator); err != nil {
		obs.CountExport("server", "invalid", 0)
		h.writeError(w, r, err)
		return
	}

	key, err := h.cacheKey(d)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if data, ok := h.cached(ctx, key); ok {
		obs.CountExport("server", "cached", 0)
		common.Attachment(w, pdfContentType, export.Filename(d.Invoice.Number), data)
		return
	}
	if h.Rasterizer == nil {
		obs.CountExport("server", "unavailable", 0)
		common.JSONError(w, http.StatusServiceUnavailable, "RASTERIZER_UNAVAILABLE",
			"server side rendering is disabled, upload a client raster to /export/raster instead", nil)
		return
	}

	var res *export.Result
	err = h.withExportLock(ctx, key, func(ctx context.Context) error {
		// Another request may have rendered while we waited.
		if data, ok := h.cached(ctx, key); ok {
			res = &export.Result{Filename: export.Filename(d.Invoice.Number), Data: data}
			return nil
		}
		rendered, err := h.render(ctx, d)
		if err != nil {
			return err
		}
		if err := h.Cache.Set(ctx, key, rendered.Data); err != nil {
			h.Logger.Warn().Err(err).Msg("write pdf cache")
		}
		res = rendered
		return nil
	})
	if err != nil {
		obs.CountExport("server", "error", 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "export")
		h.writeError(w, r, err)
		return
	}

	if res.Pages > 0 {
		span.SetAttributes(attribute.Int("invoice.pages", res.Pages))
		obs.CountExport("server", "ok", res.Pages)
		w.Header().Set(pageCountHeader, strconv.Itoa(res.Pages))
	} else {
		obs.CountExport("server", "cached", 0)
	}
	common.Attachment(w, pdfContentType, res.Filename, res.Data)
}

func (h *Handler) cached(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := h.Cache.Get(ctx, key)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("read pdf cache")
		return nil, false
	}
	obs.CountCacheLookup(ok)
	return data, ok
}

func (h *Handler) withExportLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if h.Locks == nil {
		return fn(ctx)
	}
	return h.Locks.WithLock(ctx, key, h.LockTTL, fn)
}

func (h *Handler) render(ctx context.Context, d *draft.Draft) (*export.Result, error) {
	html, err := h.Renderer.RenderString(d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, err := h.Rasterizer.Rasterize(ctx, html)
	if err != nil {
		obs.ObserveRasterize("error", obs.DurationMillis(time.Since(start)))
		h.Logger.Error().Err(err).Str("draft_id", d.ID.String()).Msg("rasterize invoice")
		return nil, fmt.Errorf("%w: %w", errRasterize, err)
	}
	obs.ObserveRasterize("ok", obs.DurationMillis(time.Since(start)))

	return h.Assembler.Assemble(img, export.Document{
		Number:   d.Invoice.Number,
		Total:    d.Totals().Total,
		Currency: d.Currency,
	})
}

// ExportRaster paginates a raster the browser produced itself. The multipart form carries the
// image in "image" and the invoice number in "number", with optional "total" and "currency".
func (h *Handler) ExportRaster(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRasterMemory); err != nil {
		h.writeError(w, r, common.BadRequest("expected multipart form", map[string]any{"error": err.Error()}))
		return
	}
	number := strings.TrimSpace(r.FormValue("number"))
	if number == "" {
		h.writeError(w, r, common.BadRequest("invoice number is required", map[string]any{"missing": []string{"Invoice Number"}}))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.writeError(w, r, common.BadRequest("image file is required", nil))
		return
	}
	defer file.Close()

	img, err := raster.Decode(file)
	if err != nil {
		obs.CountExport("client", "invalid", 0)
		h.writeError(w, r, common.BadRequest("unsupported image", map[string]any{"error": err.Error()}))
		return
	}

	res, err := h.Assembler.Assemble(img, export.Document{
		Number:   number,
		Total:    decimal.NewFromFloat(pricing.ParseAmount(r.FormValue("total"))),
		Currency: strings.TrimSpace(r.FormValue("currency")),
	})
	if err != nil {
		obs.CountExport("client", "error", 0)
		h.writeError(w, r, err)
		return
	}
	obs.CountExport("client", "ok", res.Pages)
	w.Header().Set(pageCountHeader, strconv.Itoa(res.Pages))
	common.Attachment(w, pdfContentType, res.Filename, res.Data)
}

// cacheKey covers everything that changes the PDF bytes except the save timestamp.
func (h *Handler) cacheKey(d *draft.Draft) (string, error) {
	snap := *d
	snap.UpdatedAt = time.Time{}
	data, err := json.Marshal(&snap)
	if err != nil {
		return "", fmt.Errorf("encode draft for cache key: %w", err)
	}
	a := h.Assembler
	layoutKey := fmt.Sprintf("%s|%.3fx%.3f|%.3f|%d|%t|%t", a.Format.Name, a.Format.Width, a.Format.Height, a.Margin, a.MaxWidthPx, a.Footer, a.QRCode)
	return export.Key(data, []byte(layoutKey)), nil
}
