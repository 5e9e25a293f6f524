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

func TestCounters(t *testing.T) {
	m := New()
	m.CartRecoveries.Inc()
	m.CommissionCredits.Inc()
	m.CommissionCredits.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartRecoveries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommissionCredits))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.WebhookRejections))
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/products/:handle", 200, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/products/:handle", 200, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/products/:handle", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ChatExchanges.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "storefront_chat_exchanges_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
