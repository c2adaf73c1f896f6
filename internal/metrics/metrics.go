package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "ticketsearch_"

	resultHit        = "hit"
	resultMiss       = "miss"
	resultStaleEmpty = "stale_empty"

	resultGenerated = "generated"
	resultSkipped   = "skipped"
	resultError     = "error"
)

var (
	registerOnce sync.Once

	cacheRequests   *prometheus.CounterVec
	fallbackBatches *prometheus.CounterVec
	searchLatency   *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
)

// Init registers search metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		cacheRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_requests_total",
				Help: "Result cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		)
		fallbackBatches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fallback_batches_total",
				Help: "Fallback generation attempts by result",
			},
			[]string{"result"},
		)
		searchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "search_latency_seconds",
				Help:    "Search latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		)

		prometheus.MustRegister(
			cacheRequests,
			fallbackBatches,
			searchLatency,
			httpRequests,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "stations",
			Help: "Stations in the directory",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM stations")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "schedule_rows",
			Help: "Schedule rows stored, seeded and synthetic",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM schedule_rows")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

// IncCacheHit counts a lookup served from cache.
func IncCacheHit(cache string) { incCache(cache, resultHit) }

// IncCacheMiss counts a lookup that had to be computed.
func IncCacheMiss(cache string) { incCache(cache, resultMiss) }

// IncCacheStaleEmpty counts a zero-result entry evicted on read.
func IncCacheStaleEmpty(cache string) { incCache(cache, resultStaleEmpty) }

func incCache(cache, result string) {
	if cache == "" {
		cache = "unknown"
	}
	if cacheRequests != nil {
		cacheRequests.WithLabelValues(cache, result).Inc()
	}
}

// IncFallback records the outcome of one fallback generation attempt.
func IncFallback(generated bool, err error) {
	result := resultSkipped
	switch {
	case err != nil:
		result = resultError
	case generated:
		result = resultGenerated
	}
	if fallbackBatches != nil {
		fallbackBatches.WithLabelValues(result).Inc()
	}
}

// ObserveSearch records search latency for an endpoint.
func ObserveSearch(endpoint string, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	if searchLatency != nil {
		searchLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

// Middleware counts HTTP requests by matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if httpRequests != nil {
			httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		}
	})
}

// Cache names used as metric labels.
const (
	CacheTickets    = "tickets"
	CacheAggregated = "tickets_list"
	CacheCities     = "cities"
)
