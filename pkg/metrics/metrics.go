// metrics holds prometheus collectors of lmfdb.
//
// They are registered to the default registry, and served by Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PageCacheRequests counts lookups of the page cache by result (hit, miss).
	PageCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lmfdb_page_cache_requests_total",
		Help: "Page cache lookups by result",
	}, []string{"result"})

	// AjaxPoolEntries is the number of pending callbacks.
	AjaxPoolEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lmfdb_ajax_pool_entries",
		Help: "Number of pending ajax callbacks",
	})

	// AjaxPoolEvictions counts callbacks dropped from the pool by reason (size, age, read).
	AjaxPoolEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lmfdb_ajax_pool_evictions_total",
		Help: "Ajax callbacks dropped from the pool by reason",
	}, []string{"reason"})

	KnowlRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lmfdb_knowl_render_duration_seconds",
		Help:    "Knowl rendering duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// ImportRecords counts imported records by collection and outcome
	// (inserted, updated, unchanged, rejected).
	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lmfdb_import_records_total",
		Help: "Imported records by collection and outcome",
	}, []string{"collection", "outcome"})
)

// Handler serves metrics in the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
