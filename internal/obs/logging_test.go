package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "info")
	status := http.StatusNotFound
	h := RequestLogger{Logger: logger}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts/abc", nil)
	req = req.WithContext(WithRoutePattern(req.Context(), "/api/v1/drafts/{id}"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "/api/v1/drafts/{id}", line["route"])
	require.EqualValues(t, 404, line["status"])

	buf.Reset()
	status = http.StatusBadGateway
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "error", line["level"])
}

func TestNewLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "warn")
	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestDomainMetrics(t *testing.T) {
	MustRegisterDomainMetrics("invoice_test", prometheus.NewRegistry())

	CountTotals("body")
	require.Equal(t, 1.0, testutil.ToFloat64(TotalsComputed.WithLabelValues("body")))

	CountExport("server", "ok", 3)
	require.Equal(t, 1.0, testutil.ToFloat64(ExportsTotal.WithLabelValues("server", "ok")))

	CountCacheLookup(true)
	CountCacheLookup(false)
	require.Equal(t, 1.0, testutil.ToFloat64(ExportCacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(ExportCacheLookups.WithLabelValues("miss")))
}
