package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodGet, "/profile/{username}/{page}", http.StatusOK, 120*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/profile/{username}/{page}", http.StatusOK, 80*time.Millisecond)
	m.ObserveLogin("password", "challenge_required")
	m.ObserveAccess("anonymous")
	m.ObserveRateLimited()

	body := scrape(t, m)
	assert.Contains(t, body, `igfeed_http_requests_total{method="GET",route="/profile/{username}/{page}",status="200"} 2`)
	assert.Contains(t, body, `igfeed_http_request_duration_seconds_count{method="GET",route="/profile/{username}/{page}"} 2`)
	assert.Contains(t, body, `igfeed_logins_total{outcome="challenge_required",step="password"} 1`)
	assert.Contains(t, body, `igfeed_access_mode_total{mode="anonymous"} 1`)
	assert.Contains(t, body, `igfeed_rate_limited_total 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/alive", 200, time.Millisecond)
		m.ObserveLogin("password", "success")
		m.ObserveAccess("accessed")
		m.ObserveRateLimited()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveLogin("two_factor", "success")

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, `igfeed_logins_total{outcome="success",step="two_factor"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
