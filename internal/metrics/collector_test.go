package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-vms-es/internal/eventstore"
	"github.com/technosupport/ts-vms-es/internal/metrics"
)

var _ eventstore.Observer = (*metrics.Collector)(nil)

func scrape(t *testing.T, c *metrics.Collector) string {
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_StoreOutcomes(t *testing.T) {
	c := metrics.NewCollector()
	c.ObserveAppend(eventstore.OutcomeOK, 3*time.Millisecond)
	c.ObserveAppend(eventstore.OutcomeOK, 2*time.Millisecond)
	c.ObserveAppend(eventstore.OutcomeConflict, time.Millisecond)
	c.ObserveRead(eventstore.OutcomeNotFound, time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, `vms_es_appends_total{outcome="ok"} 2`)
	assert.Contains(t, body, `vms_es_appends_total{outcome="conflict"} 1`)
	assert.Contains(t, body, `vms_es_reads_total{outcome="not_found"} 1`)
	assert.Contains(t, body, `vms_es_append_duration_seconds_count{outcome="ok"} 2`)
}

func TestCollector_HTTPAndRelay(t *testing.T) {
	c := metrics.NewCollector()
	c.ObserveHTTP(http.MethodGet, "/cameras/{id}", http.StatusOK, time.Millisecond)
	c.ObserveHTTP(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	c.ObservePublish("ok")
	c.ObservePublish("error")
	c.ObservePublish("error")

	body := scrape(t, c)
	assert.Contains(t, body, `vms_es_http_requests_total{method="GET",route="/cameras/{id}",status="200"} 1`)
	assert.Contains(t, body, `vms_es_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, `vms_es_relay_published_total{result="error"} 2`)
	assert.Contains(t, body, "go_goroutines")
}
