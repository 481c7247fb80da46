package common

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func TestIdemRejectsReplay(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/drafts/x/export", nil)
		req.Header.Set(IdempotencyHeader, "abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	require.Equal(t, http.StatusOK, send())
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 1, calls)
}

func TestIdemReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusBadGateway
	h := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	req.Header.Set(IdempotencyHeader, "retry-me")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Empty(t, mr.Keys())

	status = http.StatusOK
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, mr.Keys(), 1)
}

func TestIdemPassThroughWithoutHeaderOrRedis(t *testing.T) {
	h := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/export", nil)
	req.Header.Set(IdempotencyHeader, "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NotFound("draft not found"))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"draft not found"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteError(rr, http.ErrAbortHandler)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestParseIndex(t *testing.T) {
	i, err := ParseIndex("3")
	require.NoError(t, err)
	require.Equal(t, 3, i)
	_, err = ParseIndex("-1")
	require.Error(t, err)
	_, err = ParseIndex("x")
	require.Error(t, err)
}

func TestPaginationWindow(t *testing.T) {
	start, end := Pagination{Page: 2, PerPage: 10, TotalItems: 15}.Window()
	require.Equal(t, 10, start)
	require.Equal(t, 15, end)
	start, end = Pagination{Page: 5, PerPage: 10, TotalItems: 15}.Window()
	require.Equal(t, 15, start)
	require.Equal(t, 15, end)
}

func TestPaginationWindowLargeValues(t *testing.T) {
	start, end := Pagination{Page: 2, PerPage: math.MaxInt, TotalItems: 3}.Window()
	require.Equal(t, 3, start)
	require.Equal(t, 3, end)
	start, end = Pagination{Page: math.MaxInt, PerPage: 100, TotalItems: 3}.Window()
	require.Equal(t, 3, start)
	require.Equal(t, 3, end)
	start, end = Pagination{Page: 1, PerPage: math.MaxInt, TotalItems: 3}.Window()
	require.Equal(t, 0, start)
	require.Equal(t, 3, end)
	start, end = Pagination{Page: 1, PerPage: 10, TotalItems: 0}.Window()
	require.Equal(t, 0, start)
	require.Equal(t, 0, end)
}

func TestParsePaginationCapsLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/drafts?page=2&limit=9223372036854775807", nil)
	page, perPage := ParsePagination(r, 20)
	require.Equal(t, 2, page)
	require.Equal(t, MaxPerPage, perPage)

	r = httptest.NewRequest(http.MethodGet, "/drafts?limit=0&page=-3", nil)
	page, perPage = ParsePagination(r, 20)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
}
