package virtrpc

import (
	"net"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestOptionsApply(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	logger := testr.New(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	sinkCalled := false

	c := NewClient(clientConn,
		WithLogger(logger),
		WithMetrics(m),
		WithEventSink(func(proc uint32, payload []byte) { sinkCalled = true }),
	)
	defer c.Close()

	require.Equal(t, m, c.metrics)
	require.NotNil(t, c.eventSink)
	require.False(t, sinkCalled)
}

func TestNewMetricsNilRegistererDisablesInstrumentation(t *testing.T) {
	m := NewMetrics(nil)
	require.Nil(t, m)

	// Calling the instrument helpers on a nil *Metrics must not panic: a
	// Client built with no WithMetrics option keeps this nil forever.
	m.callStarted()
	m.callFinished(outcomeOK, 0.001)
}

func TestMetricsRegistersAllInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.callStarted()
	m.callFinished(outcomeRemoteError, 0.5)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}
