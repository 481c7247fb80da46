package invoice

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-invoice/internal/common"
	"github.com/noah-isme/backend-invoice/internal/layout"
	"github.com/noah-isme/backend-invoice/internal/obs"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

type totalsRequest struct {
	Items    []pricing.LineItem   `json:"items"`
	Discount pricing.DiscountSpec `json:"discount"`
	TaxRate  pricing.Amount       `json:"tax"`
}

// Totals computes invoice totals for an ad-hoc form state.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	var req totalsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Discount.Kind = pricing.ParseDiscountKind(string(req.Discount.Kind))
	totals := pricing.ComputeTotals(req.Items, req.Discount, float64(req.TaxRate))
	obs.CountTotals("request")
	common.JSON(w, http.StatusOK, map[string]any{"data": totals})
}

type planRequest struct {
	ContentWidth  float64  `json:"contentWidth"`
	ContentHeight float64  `json:"contentHeight"`
	Format        string   `json:"format"`
	Landscape     bool     `json:"landscape"`
	PageWidth     float64  `json:"pageWidth"`
	PageHeight    float64  `json:"pageHeight"`
	Margin        *float64 `json:"margin"`
}

type planResponse struct {
	Format    string             `json:"format,omitempty"`
	PageCount int                `json:"pageCount"`
	Slices    []layout.PageSlice `json:"slices"`
}

// PlanPages splits content of the given size into page slices. Explicit page dimensions win over a
// named format; with neither the configured assembler format applies.
func (h *Handler) PlanPages(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	format := layout.A4
	if h.Assembler != nil {
		format = h.Assembler.Format
	}
	if name := strings.TrimSpace(req.Format); name != "" {
		f, ok := layout.FormatByName(name)
		if !ok {
			h.writeError(w, r, common.BadRequest("unknown page format", map[string]any{"format": name}))
			return
		}
		format = f
	}
	if req.Landscape {
		format = format.Landscape()
	}
	if req.PageWidth != 0 || req.PageHeight != 0 {
		format = layout.PageFormat{Width: req.PageWidth, Height: req.PageHeight}
	}
	margin := layout.DefaultMargin
	if h.Assembler != nil {
		margin = h.Assembler.Margin
	}
	if req.Margin != nil {
		margin = *req.Margin
	}

	slices, err := format.Plan(req.ContentWidth, req.ContentHeight, margin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": planResponse{
		Format:    format.Name,
		PageCount: len(slices),
		Slices:    slices,
	}})
}
