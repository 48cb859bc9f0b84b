package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiptrack_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equiptrack_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	documentsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiptrack_documents_extracted_total",
			Help: "Documents run through the extractor, by text source.",
		},
		[]string{"source"},
	)

	reconciliationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equiptrack_reconciliation_duration_seconds",
			Help:    "MAC reconciliation time in seconds by lookup strategy.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 3, 10, 30},
		},
		[]string{"strategy"},
	)

	reconciliationMACs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equiptrack_reconciliation_macs_total",
			Help: "MAC addresses processed by reconciliation outcome.",
		},
		[]string{"outcome"},
	)

	reconciliationSlow = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "equiptrack_reconciliation_slow_total",
		Help: "Reconciliations that exceeded the slow processing threshold.",
	})
)

// DocumentCounter is the subset of database.DB needed to report stored documents.
type DocumentCounter interface {
	CountDocumentsBySource(ctx context.Context) (map[string]int, error)
}

// documentCollector queries the database on each scrape
type documentCollector struct {
	db   DocumentCounter
	desc *prometheus.Desc
}

func (c *documentCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *documentCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.db.CountDocumentsBySource(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for source, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), source)
	}
}

// Register registers all metrics with the default Prometheus registry, which
// already carries the Go runtime and process collectors.
// db may be nil when no database is configured.
func Register(db DocumentCounter) {
	register(prometheus.DefaultRegisterer, db)
}

func register(reg prometheus.Registerer, db DocumentCounter) {
	reg.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,

		documentsExtracted,
		reconciliationDuration,
		reconciliationMACs,
		reconciliationSlow,
	)

	if db != nil {
		reg.MustRegister(&documentCollector{
			db: db,
			desc: prometheus.NewDesc(
				"equiptrack_documents_stored",
				"Saved movement documents, partitioned by source.",
				[]string{"source"},
				nil,
			),
		})
	}
}

// Handler serves the /metrics endpoint on fiber
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// Middleware records request counts and latency. The path label uses the
// matched route pattern so cardinality stays bounded.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		path := c.Route().Path
		httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}

// ObserveExtraction counts one document extraction from source ("text" or "scan")
func ObserveExtraction(source string) {
	documentsExtracted.WithLabelValues(source).Inc()
}

// ObserveReconciliation records a finished reconciliation
func ObserveReconciliation(indexed bool, elapsed time.Duration, found, unmatched int, slow bool) {
	strategy := "linear"
	if indexed {
		strategy = "indexed"
	}
	reconciliationDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	reconciliationMACs.WithLabelValues("in_stock").Add(float64(found))
	reconciliationMACs.WithLabelValues("unmatched").Add(float64(unmatched))
	if slow {
		reconciliationSlow.Inc()
	}
}
