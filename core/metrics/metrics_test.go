package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusLabel(t *testing.T) {
	cases := map[int]string{
		0:   "transport_error",
		200: "2xx",
		204: "2xx",
		400: "4xx",
		401: "401",
		403: "403",
		404: "404",
		405: "405",
		422: "4xx",
		429: "429",
		500: "5xx",
		503: "5xx",
	}
	for status, want := range cases {
		assert.Equal(t, want, StatusLabel(status), "status %d", status)
	}
}

func TestInitMetrics_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		InitMetrics()
		InitMetrics()
	})
}

func TestKeyFailoversCounter(t *testing.T) {
	c := KeyFailoversTotal.WithLabelValues("metrics_test_pool", "429")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
