package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())

	t.Run("RecordLifecycle", func(t *testing.T) {
		exporter.RecordLifecycle("create", 10*time.Millisecond, true)
		exporter.RecordLifecycle("create", 20*time.Millisecond, true)
		exporter.RecordLifecycle("update", 5*time.Millisecond, false)

		assert.Equal(t, 2.0, testutil.ToFloat64(exporter.lifecycleOps.WithLabelValues("create", "success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.lifecycleOps.WithLabelValues("update", "error")))
	})

	t.Run("RecordFocus", func(t *testing.T) {
		exporter.RecordFocusMutation("add")
		exporter.RecordFocusEvictions(2)
		exporter.RecordFocusEvictions(0)

		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.focusMutations.WithLabelValues("add")))
		assert.Equal(t, 2.0, testutil.ToFloat64(exporter.focusEvictions))
	})

	t.Run("RecordRemoteCall", func(t *testing.T) {
		exporter.RecordRemoteCall("create_assistant", 100*time.Millisecond, false)
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.remoteCalls.WithLabelValues("create_assistant", "error")))
	})
}

func TestNilExporter(t *testing.T) {
	var exporter *PrometheusExporter
	assert.NotPanics(t, func() {
		exporter.RecordLifecycle("create", time.Millisecond, true)
		exporter.RecordFocusMutation("add")
		exporter.RecordFocusEvictions(1)
		exporter.RecordRemoteCall("get_assistant", time.Millisecond, true)
		exporter.RecordHTTPRequest("GET", "/api/v1/assistants", "200", time.Millisecond)
	})
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	exporter.RecordLifecycle("delete", time.Millisecond, true)
	exporter.RecordHTTPRequest("GET", "/api/v1/memories", "200", time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	exporter.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cortex_assistant_operations_total")
	assert.Contains(t, string(body), "cortex_http_requests_total")
}
