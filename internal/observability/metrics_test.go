package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObserveCycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveCycle(ResultOK, 2*time.Second)
	c.ObserveCycle(ResultOK, time.Second)
	c.ObserveCycle(ResultError, time.Second)
	c.ObserveCycle(ResultBusy, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Cycles.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues(ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues(ResultBusy)))
	// Busy rejections are not timed.
	assert.Equal(t, 2, testutil.CollectAndCount(c.CycleDuration))
}

func TestCollector_Gauges(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	c.SetRenderCounts(4, 17)
	c.SetSimulating(true)
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Detections))
	assert.Equal(t, 17.0, testutil.ToFloat64(c.Attributions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Simulating))

	c.SetSimulating(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Simulating))

	c.ObserveSimulator("builtin", 10*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.SimulatorDuration))
}

func TestCollector_RegisterTwiceReusesExisting(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.ObserveCycle(ResultOK, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Cycles.WithLabelValues(ResultOK)))
}

func TestCollector_IncompatibleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radarviz_cycles_total",
		Help: "wrong type",
	})))

	_, err := NewCollector(reg)
	assert.Error(t, err)
}

func TestCollector_NilIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveCycle(ResultOK, time.Second)
		c.ObserveSimulator("external", time.Second)
		c.SetRenderCounts(1, 1)
		c.SetSimulating(true)
	})
	assert.NotNil(t, c.Handler())
}

func TestCollector_Handler(t *testing.T) {
	t.Parallel()

	c, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	c.ObserveCycle(ResultOK, time.Second)
	c.SetRenderCounts(3, 5)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	for _, want := range []string{
		`radarviz_cycles_total{result="ok"} 1`,
		"radarviz_detections 3",
		"radarviz_attribution_segments 5",
	} {
		assert.True(t, strings.Contains(string(body), want), "missing %q", want)
	}
}
