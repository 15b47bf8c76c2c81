package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(fallbacks.WithLabelValues("timeout"))
	IncFallback("timeout")
	assert.Equal(t, before+1, testutil.ToFloat64(fallbacks.WithLabelValues("timeout")))

	before = testutil.ToFloat64(exports.WithLabelValues("merged", "success"))
	ObserveExport("merged", "success", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(exports.WithLabelValues("merged", "success")))

	SetActiveSessions(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(activeSessions))
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	Init()
	Init()
	IncPagesRendered()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docsort_pages_rendered_total")
}
