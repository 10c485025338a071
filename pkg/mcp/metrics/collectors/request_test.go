package collectors

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

func TestRequestMetricsCollector_RecordRequest(t *testing.T) {
	c := NewRequestMetricsCollector(Options{})

	c.RecordRequest("tools/call", StatusOK, 100*time.Millisecond, 512)
	c.RecordRequest("tools/call", "INVALID_PARAMETER", 300*time.Millisecond, 256)
	c.RecordRequest("ping", StatusOK, time.Millisecond, -1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("tools/call", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("tools/call", "INVALID_PARAMETER")))
	assert.Equal(t, 1, testutil.CollectAndCount(c, "mcp_request_size_bytes"))

	stats := c.Stats()
	require.Contains(t, stats, "tools/call")
	assert.EqualValues(t, 2, stats["tools/call"].Count)
	assert.EqualValues(t, 1, stats["tools/call"].Errors)
	assert.InDelta(t, 0.2, stats["tools/call"].AverageLatency, 0.0001)
	assert.EqualValues(t, 0, stats["ping"].Errors)
}

func TestRequestMetricsCollector_RecordValidation(t *testing.T) {
	c := NewRequestMetricsCollector(Options{})

	result := validators.NewValidationResult("request", 0)
	result.AddError(validators.NewValidationError(errors.CodeMissingParameter, "a", validators.SeverityHigh))
	result.AddError(validators.NewValidationError(errors.CodeMissingParameter, "b", validators.SeverityHigh))
	result.AddError(validators.NewValidationError(errors.CodeTypeMismatch, "c", validators.SeverityMedium))
	c.RecordValidation(result)
	c.RecordValidation(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.validationErrors.WithLabelValues("MISSING_PARAMETER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.validationErrors.WithLabelValues("TYPE_MISMATCH")))
}

func TestRequestMetricsCollector_Begin(t *testing.T) {
	c := NewRequestMetricsCollector(Options{})

	end := c.Begin()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inFlight))
	end()
	end()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
}

func TestRequestMetricsCollector_Instrument(t *testing.T) {
	c := NewRequestMetricsCollector(Options{})

	r := chi.NewRouter()
	r.Use(c.Instrument)
	r.Get("/api/v1/tools/{tool}/schema", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/rpc", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	})

	for _, tool := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tools/"+tool+"/schema", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.requests.WithLabelValues("GET /api/v1/tools/{tool}/schema", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST /rpc", "4xx")))
	assert.EqualValues(t, 1, c.Stats()["POST /rpc"].Errors)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inFlight))
}
