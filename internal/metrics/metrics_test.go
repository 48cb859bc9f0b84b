package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts map[string]int
	err    error
}

func (f fakeCounter) CountDocumentsBySource(ctx context.Context) (map[string]int, error) {
	return f.counts, f.err
}

func TestObserveReconciliation(t *testing.T) {
	beforeFound := testutil.ToFloat64(reconciliationMACs.WithLabelValues("in_stock"))
	beforeUnmatched := testutil.ToFloat64(reconciliationMACs.WithLabelValues("unmatched"))
	beforeSlow := testutil.ToFloat64(reconciliationSlow)

	ObserveReconciliation(true, 4*time.Second, 3, 2, true)

	assert.Equal(t, beforeFound+3, testutil.ToFloat64(reconciliationMACs.WithLabelValues("in_stock")))
	assert.Equal(t, beforeUnmatched+2, testutil.ToFloat64(reconciliationMACs.WithLabelValues("unmatched")))
	assert.Equal(t, beforeSlow+1, testutil.ToFloat64(reconciliationSlow))
}

func TestObserveExtraction(t *testing.T) {
	before := testutil.ToFloat64(documentsExtracted.WithLabelValues("scan"))
	ObserveExtraction("scan")
	assert.Equal(t, before+1, testutil.ToFloat64(documentsExtracted.WithLabelValues("scan")))
}

func TestDocumentCollector(t *testing.T) {
	c := &documentCollector{
		db:   fakeCounter{counts: map[string]int{"text": 4, "scan": 1}},
		desc: prometheus.NewDesc("equiptrack_documents_stored", "Saved movement documents.", []string{"source"}, nil),
	}

	expected := `
# HELP equiptrack_documents_stored Saved movement documents.
# TYPE equiptrack_documents_stored gauge
equiptrack_documents_stored{source="scan"} 1
equiptrack_documents_stored{source="text"} 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestDocumentCollector_ReportsError(t *testing.T) {
	c := &documentCollector{
		db:   fakeCounter{err: errors.New("db down")},
		desc: prometheus.NewDesc("equiptrack_documents_stored", "Saved movement documents.", []string{"source"}, nil),
	}

	assert.Error(t, testutil.CollectAndCompare(c, strings.NewReader("")))
}

func TestRegister_Isolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() { register(reg, fakeCounter{counts: map[string]int{}}) })
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/api/documents/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/:id", "204"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/documents/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/documents/:id", "204")))
}

func TestHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}
