package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector(t *testing.T) {
	// Reset Prometheus registry to avoid duplicate registration
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.jobsPrepared, "jobsPrepared counter should be initialized")
	assert.NotNil(t, collector.jobsRun, "jobsRun counter should be initialized")
	assert.NotNil(t, collector.jobsCleared, "jobsCleared counter should be initialized")
	assert.NotNil(t, collector.jobsErrored, "jobsErrored counter should be initialized")
	assert.NotNil(t, collector.heartbeats, "heartbeats counter should be initialized")
	assert.NotNil(t, collector.jobDuration, "jobDuration histogram should be initialized")
	assert.NotNil(t, collector.globalCounter, "globalCounter gauge vec should be initialized")
}

func TestRecordPrepared(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 5; i++ {
			collector.RecordPrepared()
		}
	})
}

func TestRecordRun(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 10; i++ {
			collector.RecordRun()
		}
	})
}

func TestRecordCleared(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	for _, elapsed := range []float64{0.001, 0.01, 0.1, 1.0, 5.0} {
		assert.NotPanics(t, func() {
			collector.RecordCleared(elapsed)
		}, "RecordCleared should not panic with elapsed %f", elapsed)
	}
}

func TestRecordErrored(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 3; i++ {
			collector.RecordErrored()
		}
	})
}

func TestRecordHeartbeat(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		for i := 0; i < 2; i++ {
			collector.RecordHeartbeat()
		}
	})
}

func TestSetGlobalCounter(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	for _, tc := range []struct {
		item  string
		value float64
	}{
		{"pages", 0},
		{"pages", 5},
		{"errors", 100},
	} {
		assert.NotPanics(t, func() {
			collector.SetGlobalCounter(tc.item, tc.value)
		}, "SetGlobalCounter should not panic for item %s", tc.item)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	done := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		go func() {
			collector.RecordPrepared()
			collector.RecordRun()
			collector.RecordCleared(0.1)
			collector.SetGlobalCounter("pages", 10)
			done <- true
		}()
	}
	for i := 0; i < 100; i++ {
		<-done
	}
}

func TestCollectorIsolation(t *testing.T) {
	// Only one collector per process is expected: a process should only
	// ever call NewCollector once.
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector1 := NewCollector()
	require.NotNil(t, collector1)

	assert.Panics(t, func() {
		NewCollector()
	}, "creating a second collector should panic due to duplicate registration")
}

func TestMetricOperationSequence(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordPrepared()
		collector.RecordRun()
		collector.RecordCleared(0.5)
		collector.SetGlobalCounter("pages", 1)
	}, "complete job lifecycle should not panic")
}

func TestZeroAndNegativeValues(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := NewCollector()

	assert.NotPanics(t, func() {
		collector.RecordCleared(0.0)
		collector.SetGlobalCounter("pages", 0.0)
		collector.SetGlobalCounter("pages", -1.0)
	}, "edge case values should not panic")
}
