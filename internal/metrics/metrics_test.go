package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := New(registry)

	collector.CacheLookup("memory", ResultHit)
	collector.CacheLookup("memory", ResultHit)
	collector.CacheLookup("memory", ResultMiss)
	collector.BackendError("s3", OperationPut)
	collector.Coalesced()
	finish := collector.BuildStarted()
	require.Equal(t, float64(1), testutil.ToFloat64(collector.inFlightBuilds))
	finish(0.5, true)

	require.Equal(t, float64(2), testutil.ToFloat64(collector.cacheLookups.WithLabelValues("memory", ResultHit)))
	require.Equal(t, float64(1), testutil.ToFloat64(collector.cacheLookups.WithLabelValues("memory", ResultMiss)))
	require.Equal(t, float64(1), testutil.ToFloat64(collector.backendErrors.WithLabelValues("s3", OperationPut)))
	require.Equal(t, float64(1), testutil.ToFloat64(collector.coalescedWaiters))
	require.Equal(t, float64(1), testutil.ToFloat64(collector.builds))
	require.Equal(t, float64(1), testutil.ToFloat64(collector.buildFailures))
	require.Equal(t, float64(0), testutil.ToFloat64(collector.inFlightBuilds))

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *Collector
	collector.CacheLookup("memory", ResultHit)
	collector.BackendError("memory", OperationGet)
	collector.Coalesced()
	collector.BuildStarted()(1, false)
	collector.AcquisitionQueued()()
}

func TestAcquisitionQueue(t *testing.T) {
	collector := New(nil)
	dequeue := collector.AcquisitionQueued()
	require.Equal(t, float64(1), testutil.ToFloat64(collector.acquisitionsQueue))
	dequeue()
	require.Equal(t, float64(0), testutil.ToFloat64(collector.acquisitionsQueue))
}

func TestWriteTextRendersRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := New(registry)
	collector.CacheLookup("file", ResultMiss)
	collector.BuildStarted()(0.25, false)

	var rendered bytes.Buffer
	require.NoError(t, WriteText(&rendered, registry))
	require.Contains(t, rendered.String(), `ingest_cache_lookups_total{backend="file",result="miss"} 1`)
	require.Contains(t, rendered.String(), "ingest_builds_total 1")
	require.Contains(t, rendered.String(), "# TYPE ingest_build_duration_seconds histogram")
}
