package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsHandler(t *testing.T) {
	RecordCouponRedemption("success")

	handler := NewHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "examprep_coupon_redemptions_total"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestNewServerComponent(t *testing.T) {
	s := NewServer(9191, "worker")
	assert.Equal(t, ":9191", s.server.Addr)
	assert.Equal(t, "worker", s.component)
	assert.NotNil(t, s.server.Handler)
}
