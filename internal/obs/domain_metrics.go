package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// TotalsComputed counts totals computations by origin (request body or stored draft).
	TotalsComputed *prometheus.CounterVec
	// ExportsTotal counts PDF export outcomes by raster source.
	ExportsTotal *prometheus.CounterVec
	// ExportPages records the page count of produced PDFs.
	ExportPages prometheus.Histogram
	// RasterizeLatency records headless browser capture latency in milliseconds.
	RasterizeLatency *prometheus.HistogramVec
	// ExportCacheLookups counts PDF cache hits and misses.
	ExportCacheLookups *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		TotalsComputed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "totals_computed_total",
			Help:      "Count of invoice totals computations.",
		}, []string{"origin"})
		ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_exports_total",
			Help:      "Count of PDF export outcomes.",
		}, []string{"source", "result"})
		ExportPages = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_export_pages",
			Help:      "Number of pages per exported PDF.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		})
		RasterizeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rasterize_duration_ms",
			Help:      "Latency of invoice rasterization in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"result"})
		ExportCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_cache_lookups_total",
			Help:      "Count of rendered PDF cache lookups.",
		}, []string{"result"})

		mustRegisterCollector(reg, TotalsComputed, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TotalsComputed = v
			}
		})
		mustRegisterCollector(reg, ExportsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExportsTotal = v
			}
		})
		mustRegisterCollector(reg, ExportPages, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				ExportPages = v
			}
		})
		mustRegisterCollector(reg, RasterizeLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RasterizeLatency = v
			}
		})
		mustRegisterCollector(reg, ExportCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ExportCacheLookups = v
			}
		})
	})
}

// CountTotals records a totals computation when domain metrics are registered.
func CountTotals(origin string) {
	if TotalsComputed != nil {
		TotalsComputed.WithLabelValues(origin).Inc()
	}
}

// CountExport records an export outcome and, on success, its page count.
func CountExport(source, result string, pages int) {
	if ExportsTotal != nil {
		ExportsTotal.WithLabelValues(source, result).Inc()
	}
	if ExportPages != nil && pages > 0 {
		ExportPages.Observe(float64(pages))
	}
}

// ObserveRasterize records a rasterization duration.
func ObserveRasterize(result string, ms float64) {
	if RasterizeLatency != nil {
		RasterizeLatency.WithLabelValues(result).Observe(ms)
	}
}

// CountCacheLookup records a PDF cache hit or miss.
func CountCacheLookup(hit bool) {
	if ExportCacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	ExportCacheLookups.WithLabelValues(result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
