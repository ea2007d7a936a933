package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEntities(t *testing.T) {
	before := testutil.ToFloat64(entitiesGenerated.WithLabelValues("claim", "inserted"))
	RecordEntities("claim", "inserted", 3)
	RecordEntities("claim", "inserted", 0)
	after := testutil.ToFloat64(entitiesGenerated.WithLabelValues("claim", "inserted"))
	assert.Equal(t, 3.0, after-before)
}

func TestRecordDBQueryCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(dbErrors.WithLabelValues("query"))
	RecordDBQuery("query", time.Millisecond, nil)
	RecordDBQuery("query", time.Millisecond, assert.AnError)
	assert.Equal(t, 1.0, testutil.ToFloat64(dbErrors.WithLabelValues("query"))-before)
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/health", "418"))-before)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/simulation/daily", normalizePath("/api/v1/simulation/daily"))
	assert.Equal(t, "/other", normalizePath("/favicon.ico"))
}

func TestPushWithoutURLIsNoop(t *testing.T) {
	assert.NoError(t, Push("", "healthsim"))
}
