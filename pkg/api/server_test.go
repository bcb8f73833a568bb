package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/economic-scenario-generator/internal/esg"
	"github.com/rzzdr/economic-scenario-generator/pkg/metrics"
	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	resp *models.ScenarioResponse
	err  error
	got  *models.ScenarioRequest
}

func (g *stubGenerator) Generate(_ context.Context, req *models.ScenarioRequest) (*models.ScenarioResponse, error) {
	g.got = req
	return g.resp, g.err
}

type countingRecorder struct {
	mu       sync.Mutex
	requests map[string]int
	limited  int
}

func (r *countingRecorder) RecordAPIRequest(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests == nil {
		r.requests = make(map[string]int)
	}
	r.requests[method+" "+path]++
}

func (r *countingRecorder) RecordRateLimited(string) {
	r.mu.Lock()
	r.limited++
	r.mu.Unlock()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const twoAssetRequest = `{
	"N": 20, "T": 2, "seed": 7,
	"s0": [224, 0.03], "a": [0, 0.09], "mu": [0.094, -0.007], "sigma": [0.16, 0.007],
	"corrmatrix": [[1, 0.2], [0.2, 1]]
}`

func TestRootAndHealth(t *testing.T) {
	srv := NewServer(Config{Version: "2.1.0"}, &stubGenerator{},
		WithHealthCheck("kafka", func() interface{} { return "CLOSED" }))

	w := do(t, srv.Handler(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Hello from ESG!"}`, w.Body.String())

	w = do(t, srv.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2.1.0", body["version"])
	assert.Equal(t, map[string]interface{}{"kafka": "CLOSED"}, body["dependencies"])
}

func TestGenerateScenariosEndToEnd(t *testing.T) {
	svc := esg.NewService(esg.ServiceConfig{Workers: 3})
	srv := NewServer(Config{}, svc)

	for _, path := range []string{"/api/scenarios", "/api/v1/scenarios"} {
		w := do(t, srv.Handler(), http.MethodPost, path, twoAssetRequest)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var resp models.ScenarioResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.RunID)
		assert.Equal(t, 3, resp.Workers)
		require.Len(t, resp.GBM, 20)
		require.Len(t, resp.GBM[0], 1)
		assert.Len(t, resp.GBM[0][0], 24)
		require.Len(t, resp.Vasicek, 20)
		assert.Equal(t, 0.03, resp.Vasicek[5][0][0])
	}
}

func TestGenerateScenariosStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		gen    *stubGenerator
		status int
		kind   string
	}{
		{
			name:   "malformed json",
			body:   `{"s0": [1,`,
			gen:    &stubGenerator{},
			status: http.StatusBadRequest,
			kind:   "invalid_argument",
		},
		{
			name:   "validation failure",
			body:   `{}`,
			gen:    &stubGenerator{err: errors.InvalidArgument("invalid simulation parameters", "s0: must not be empty")},
			status: http.StatusUnprocessableEntity,
			kind:   "invalid_argument",
		},
		{
			name:   "degenerate correlation",
			body:   `{}`,
			gen:    &stubGenerator{err: errors.NumericDegeneracy("correlation matrix has no retained singular values")},
			status: http.StatusUnprocessableEntity,
			kind:   "numeric_degeneracy",
		},
		{
			name:   "over the path limit",
			body:   `{}`,
			gen:    &stubGenerator{err: errors.ResourceExhausted("path count 200000 exceeds the limit of 100000")},
			status: http.StatusUnprocessableEntity,
			kind:   "resource_exhausted",
		},
		{
			name:   "worker failure",
			body:   `{}`,
			gen:    &stubGenerator{err: errors.ComputeFailure("simulation of paths [0, 5) panicked", nil)},
			status: http.StatusInternalServerError,
			kind:   "compute_failure",
		},
		{
			name:   "empty result",
			body:   `{}`,
			gen:    &stubGenerator{resp: &models.ScenarioResponse{GBM: [][][]float64{}, Vasicek: [][][]float64{}}},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Config{}, tt.gen)
			w := do(t, srv.Handler(), http.MethodPost, "/api/scenarios", tt.body)
			assert.Equal(t, tt.status, w.Code)
			if tt.kind == "" {
				return
			}
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Type)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestValidationDetailsAreReturned(t *testing.T) {
	srv := NewServer(Config{}, esg.NewService(esg.ServiceConfig{}))

	w := do(t, srv.Handler(), http.MethodPost, "/api/scenarios",
		`{"s0": [1, 2], "a": [0], "mu": [0.1, 0.1], "sigma": [0.2, -0.1], "corrmatrix": [[1, 0], [0, 1]]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_argument", body.Type)
	assert.NotEmpty(t, body.Details)
}

func TestOverflowingPathsAreRejected(t *testing.T) {
	srv := NewServer(Config{}, esg.NewService(esg.ServiceConfig{}))

	w := do(t, srv.Handler(), http.MethodPost, "/api/scenarios",
		`{"N": 2, "T": 100, "s0": [1e300], "a": [0], "mu": [1e300], "sigma": [0.1], "corrmatrix": [[1]]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "numeric_degeneracy", body.Type)
	assert.NotEmpty(t, body.Error)
}

func TestOptionalBatchSizeIsForwarded(t *testing.T) {
	gen := &stubGenerator{resp: &models.ScenarioResponse{}}
	srv := NewServer(Config{}, gen)

	do(t, srv.Handler(), http.MethodPost, "/api/v1/scenarios", `{"s0": [1], "a": [0], "mu": [0], "sigma": [0], "corrmatrix": [[1]]}`)
	require.NotNil(t, gen.got)
	assert.Nil(t, gen.got.Paths)
	assert.Nil(t, gen.got.Years)

	do(t, srv.Handler(), http.MethodPost, "/api/v1/scenarios", `{"N": 3, "T": 4, "summary": true}`)
	require.NotNil(t, gen.got.Paths)
	assert.Equal(t, 3, *gen.got.Paths)
	assert.Equal(t, 4, *gen.got.Years)
	assert.True(t, gen.got.Summary)
}

func TestRateLimitPerClient(t *testing.T) {
	rec := &countingRecorder{}
	gen := &stubGenerator{resp: &models.ScenarioResponse{}}
	srv := NewServer(Config{RateLimit: 0.001, RateBurst: 2}, gen, WithRecorder(rec))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv.Handler(), http.MethodPost, "/api/scenarios", `{}`).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	w := do(t, srv.Handler(), http.MethodPost, "/api/v1/scenarios", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 2, rec.limited)

	// Only the scenario routes are limited
	assert.Equal(t, http.StatusOK, do(t, srv.Handler(), http.MethodGet, "/health", "").Code)
	assert.Equal(t, 3, rec.requests["POST /api/scenarios"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	srv := NewServer(Config{}, &stubGenerator{}, WithRecorder(rec), WithMetricsHandler(reg))

	do(t, srv.Handler(), http.MethodGet, "/", "")
	w := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `esg_api_requests_total{method="GET",path="/",status="200"} 1`))
}

func TestCORSAndNotFound(t *testing.T) {
	srv := NewServer(Config{CORS: CORSConfig{AllowedOrigins: []string{"https://desk.example.com"}}}, &stubGenerator{})

	w := do(t, srv.Handler(), http.MethodOptions, "/api/scenarios", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://desk.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, srv.Handler(), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type panickingGenerator struct{}

func (panickingGenerator) Generate(context.Context, *models.ScenarioRequest) (*models.ScenarioResponse, error) {
	panic("boom")
}

func TestHandlerPanicsBecome500(t *testing.T) {
	srv := NewServer(Config{}, panickingGenerator{})
	w := do(t, srv.Handler(), http.MethodPost, "/api/scenarios", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Type)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(context.Canceled))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(&errors.AppError{Type: errors.ErrorTypeUnavailable, Message: "kafka down"}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("plain")))
}
