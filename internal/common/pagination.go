package common

import (
	"net/http"
	"strconv"
)

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// MaxPerPage bounds the page size a client may request.
const MaxPerPage = 100

// ParsePagination extracts page and per-page parameters from query values. The page size is
// capped at MaxPerPage.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return
}

// Window returns the half-open range of a page over total items. Out of range pages yield an
// empty window at the end.
func (p Pagination) Window() (start, end int) {
	if p.Page < 1 || p.PerPage < 1 || p.TotalItems <= 0 {
		return 0, 0
	}
	// Compare page numbers rather than offsets so large values cannot overflow.
	pages := p.TotalItems / p.PerPage
	if p.TotalItems%p.PerPage != 0 {
		pages++
	}
	if p.Page > pages {
		return p.TotalItems, p.TotalItems
	}
	start = (p.Page - 1) * p.PerPage
	end = p.TotalItems
	if p.TotalItems-start > p.PerPage {
		end = start + p.PerPage
	}
	return start, end
}
