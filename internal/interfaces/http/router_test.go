package http

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SpeciesConservationLandscapes/task-scl-stats/internal/interfaces/http/handlers"
)

func stubMetrics() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("sclstats_runs_total 1\n"))
	})
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewRouter_HealthEndpoints(t *testing.T) {
	health := handlers.NewHealthHandler("dev", handlers.CheckFunc{
		Component: "redis",
		Fn:        func(context.Context) error { return stderrors.New("down") },
	})
	r := NewRouter(RouterConfig{HealthHandler: health})

	assert.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/healthz/detail").Code)
}

func TestNewRouter_Metrics(t *testing.T) {
	r := NewRouter(RouterConfig{MetricsHandler: stubMetrics()})

	w := get(r, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sclstats_runs_total 1")
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, get(r, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/metrics").Code)
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	r := NewRouter(RouterConfig{MetricsHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})})
	assert.Equal(t, http.StatusInternalServerError, get(r, "/metrics").Code)
}

//Personal.AI order the ending
