package middlewarectx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/subscription-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-billing/internal/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middlewarectx.MetricsMiddleware)
	r.Get("/packages/{id}/history", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.CollectAndCount(metrics.HTTPRequestDuration)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/packages/pkg-1/history", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	// Серия метится шаблоном маршрута, а не конкретным ID.
	assert.Equal(t, before+1, testutil.CollectAndCount(metrics.HTTPRequestDuration))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/packages/pkg-2/history", nil))
	assert.Equal(t, before+1, testutil.CollectAndCount(metrics.HTTPRequestDuration))
}
