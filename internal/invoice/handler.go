package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-invoice/internal/common"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/export"
	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/lock"
	"github.com/noah-isme/backend-invoice/internal/preview"
	"github.com/noah-isme/backend-invoice/internal/raster"
	"github.com/noah-isme/backend-invoice/internal/resilience"
)

const defaultListLimit = 20

// Handler exposes the invoice builder over HTTP.
type Handler struct {
	Store     draft.Store
	Validator *validator.Validate
	Renderer  *preview.Renderer
	// Rasterizer captures previews server side. Nil leaves only client raster uploads.
	Rasterizer raster.Rasterizer
	Assembler  *export.Assembler
	Cache      *export.Cache
	// Locks serializes renders of the same export. Nil renders concurrently.
	Locks   lock.Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Routes registers the API on r. exportMW wraps the PDF export endpoints.
func (h *Handler) Routes(r chi.Router, exportMW ...func(http.Handler) http.Handler) {
	r.Post("/totals", h.Totals)
	r.Post("/layout/pages", h.PlanPages)

	r.Route("/drafts", func(d chi.Router) {
		d.Get("/", h.ListDrafts)
		d.Post("/", h.CreateDraft)
		d.Post("/import", h.ImportDraft)
		d.Route("/{id}", func(one chi.Router) {
			one.Get("/", h.GetDraft)
			one.Put("/", h.ReplaceDraft)
			one.Delete("/", h.DeleteDraft)
			one.Post("/items", h.AddItem)
			one.Put("/items/{index}", h.UpdateItem)
			one.Delete("/items/{index}", h.RemoveItem)
			one.Get("/totals", h.DraftTotals)
			one.Get("/preview", h.Preview)
			one.Get("/snapshot", h.Snapshot)
			one.With(exportMW...).Post("/export", h.ExportDraft)
		})
	})
	r.With(exportMW...).Post("/export/raster", h.ExportRaster)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return common.BadRequest("invalid payload", map[string]any{"error": err.Error()})
	}
	return nil
}

func draftID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		return uuid.Nil, common.BadRequest("invalid draft id", nil)
	}
	return id, nil
}

func (h *Handler) loadDraft(r *http.Request) (*draft.Draft, error) {
	id, err := draftID(r)
	if err != nil {
		return nil, err
	}
	d, err := h.Store.Load(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// writeError maps domain errors onto the API error shape.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *draft.ValidationError
	switch {
	case errors.As(err, &verr):
		common.WriteError(w, common.Unprocessable("INCOMPLETE_DRAFT", verr.Error(), err, verr))
	case errors.Is(err, draft.ErrNotFound):
		common.WriteError(w, common.NotFound("draft not found"))
	case errors.Is(err, draft.ErrItemIndex):
		common.WriteError(w, common.NotFound("item not found"))
	case errors.Is(err, draft.ErrInvalidSnapshot):
		common.WriteError(w, common.BadRequest("invalid snapshot", map[string]any{"error": err.Error()}))
	case errors.Is(err, layout.ErrInvalidDimension):
		common.WriteError(w, common.Unprocessable("INVALID_DIMENSION", "content and page dimensions must leave a printable area", err, nil))
	case errors.Is(err, raster.ErrClosed), errors.Is(err, resilience.ErrOpenCircuit):
		common.WriteError(w, common.NewAppError("RASTERIZER_UNAVAILABLE", "the headless browser is unavailable, upload a client raster to /export/raster instead", http.StatusServiceUnavailable, err))
	case errors.Is(err, context.DeadlineExceeded):
		common.WriteError(w, common.NewAppError("EXPORT_TIMEOUT", "the export did not finish in time", http.StatusGatewayTimeout, err))
	case errors.Is(err, errRasterize):
		common.WriteError(w, common.NewAppError("RASTERIZE_FAILED", "could not render the invoice preview", http.StatusBadGateway, err))
	case common.IsAppError(err):
		common.WriteError(w, err)
	default:
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("invoice request failed")
		common.WriteError(w, err)
	}
}
