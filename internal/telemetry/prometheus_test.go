package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RecordRequest(t *testing.T) {
	c := NewPrometheusCollector("VonVault")

	c.RecordRequest("GET", "/api/investments", "200", 30*time.Millisecond)
	c.RecordRequest("GET", "/api/investments", "200", 10*time.Millisecond)
	c.RecordRequest("POST", "/api/investments", "400", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("GET", "/api/investments", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("POST", "/api/investments", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.latency))
}

func TestPrometheusCollector_InvestmentAndUpgrade(t *testing.T) {
	c := NewPrometheusCollector("vonvault")

	c.RecordInvestment("accepted", "club")
	c.RecordInvestment("accepted", "club")
	c.RecordInvestment("rejected", "basic")
	c.RecordUpgrade("basic", "club")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.investments.WithLabelValues("accepted", "club")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.investments.WithLabelValues("rejected", "basic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upgrades.WithLabelValues("basic", "club")))
}

func TestPrometheusCollector_Handler(t *testing.T) {
	c := NewPrometheusCollector("VonVault")
	c.RecordUpgrade("basic", "club")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vonvault_membership_upgrades_total{from="basic",to="club"} 1`)
}

func TestPrometheusCollector_RegistriesAreIndependent(t *testing.T) {
	a := NewPrometheusCollector("vonvault")
	b := NewPrometheusCollector("vonvault")

	a.RecordInvestment("accepted", "basic")

	assert.Equal(t, 0.0, testutil.ToFloat64(b.investments.WithLabelValues("accepted", "basic")))
}

func TestNoopCollector(t *testing.T) {
	var c Collector = NoopCollector{}
	c.RecordRequest("GET", "/", "200", time.Millisecond)
	c.RecordInvestment("accepted", "basic")
	c.RecordUpgrade("basic", "club")
}
