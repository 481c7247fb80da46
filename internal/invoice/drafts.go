package invoice

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-invoice/internal/common"
	"github.com/noah-isme/backend-invoice/internal/draft"
	"github.com/noah-isme/backend-invoice/internal/obs"
	"github.com/noah-isme/backend-invoice/internal/pricing"
)

// CreateDraft starts a draft with the default form values.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	d := draft.New(h.now())
	if err := h.Store.Save(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": d})
}

// ListDrafts returns stored drafts, most recently saved first.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, perPage := common.ParsePagination(r, defaultListLimit)
	p := common.Pagination{Page: page, PerPage: perPage, TotalItems: len(all)}
	start, end := p.Window()
	common.JSON(w, http.StatusOK, map[string]any{"data": all[start:end], "pagination": p})
}

// GetDraft returns one draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// ReplaceDraft overwrites the whole form state of an existing draft.
func (h *Handler) ReplaceDraft(w http.ResponseWriter, r *http.Request) {
	current, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var next draft.Draft
	if err := decodeJSON(r, &next); err != nil {
		h.writeError(w, r, err)
		return
	}
	next.ID = current.ID
	next.Normalize()
	if err := h.Store.Save(r.Context(), &next); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": &next})
}

// DeleteDraft removes a draft.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem appends a line item.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var item pricing.LineItem
	if err := decodeJSON(r, &item); err != nil {
		h.writeError(w, r, err)
		return
	}
	index := d.AddItem(item)
	if err := h.Store.Save(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"index": index, "draft": d}})
}

// UpdateItem replaces the line item at {index}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, func(d *draft.Draft, index int) error {
		var item pricing.LineItem
		if err := decodeJSON(r, &item); err != nil {
			return err
		}
		return d.UpdateItem(index, item)
	})
}

// RemoveItem deletes the line item at {index}. The last row is cleared instead.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutateItem(w, r, func(d *draft.Draft, index int) error {
		return d.RemoveItem(index)
	})
}

func (h *Handler) mutateItem(w http.ResponseWriter, r *http.Request, fn func(*draft.Draft, int) error) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	index, err := common.ParseIndex(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, common.BadRequest(err.Error(), nil))
		return
	}
	if err := fn(d, index); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Save(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// DraftTotals returns the derived totals of a stored draft.
func (h *Handler) DraftTotals(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	obs.CountTotals("draft")
	common.JSON(w, http.StatusOK, map[string]any{"data": d.Totals()})
}

// Preview renders the printable HTML document of a draft.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.Renderer.Render(&buf, d); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Snapshot downloads the draft as a JSON file.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	d, err := h.loadDraft(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := draft.Export(&buf, d); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Attachment(w, "application/json", draft.SnapshotFilename(d), buf.Bytes())
}

// ImportDraft stores an uploaded snapshot, replacing any draft with the same id.
func (h *Handler) ImportDraft(w http.ResponseWriter, r *http.Request) {
	d, err := draft.Import(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.Save(r.Context(), d); err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": d})
}
