package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("GET /", "200")
		ObserveRemote("service_list", "200", 15*time.Millisecond)
		IncSheets("done")
	})

	before := testutil.ToFloat64(eventsPublished.WithLabelValues("booking_created"))
	IncEvent("booking_created")
	assert.Equal(t, before+1, testutil.ToFloat64(eventsPublished.WithLabelValues("booking_created")))

	SetVisitors(4)
	assert.Equal(t, float64(4), testutil.ToFloat64(visitorsActive))
}
