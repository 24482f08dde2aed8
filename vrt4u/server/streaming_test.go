package server

import (
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

func newTestStreamingTask(t *testing.T, samplesPerPacket int) (*streamingTask, *net.UDPConn, *atomic.Bool) {
	t.Helper()

	dataConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { dataConn.Close() })

	cfg := radio.NewConfig(DefaultFrequencyHz, DefaultSampleRateHz, DefaultGainDB)
	registry := NewRegistry()
	st := stats.New()
	var run atomic.Bool
	run.Store(true)

	front := radio.NewSimulatedFrontEnd(7)
	task := newStreamingTask(dataConn, front, cfg, registry, st, samplesPerPacket, &run)
	return task, dataConn, &run
}

func TestStreamingTaskSendsPacketsToSubscriber(t *testing.T) {
	task, dataConn, run := newTestStreamingTask(t, 4)

	receiver, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer receiver.Close()
	recvAddr := receiver.LocalAddr().(*net.UDPAddr)
	require.True(t, task.registry.Add(recvAddr.IP, recvAddr.Port))

	done := make(chan struct{})
	go func() {
		task.runLoop()
		close(done)
	}()

	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := receiver.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Greater(t, n, vrt.HeaderSize)

	run.Store(false)
	_ = dataConn
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("streaming task did not stop in time")
	}
}

func TestStreamingTaskReconfiguresOnDirtyFlag(t *testing.T) {
	task, _, run := newTestStreamingTask(t, 4)
	front := task.front.(*radio.SimulatedFrontEnd)

	newFreq := uint64(915_000_000)
	task.cfg.Update(&newFreq, nil, nil)
	require.True(t, task.cfg.Dirty())

	done := make(chan struct{})
	go func() {
		task.runLoop()
		close(done)
	}()

	require.Eventually(t, func() bool {
		return !task.cfg.Dirty()
	}, 2*time.Second, 5*time.Millisecond)

	require.GreaterOrEqual(t, front.Configured(), 1)

	run.Store(false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("streaming task did not stop in time")
	}
}

func TestSendDataChunksAdvancesCounterAcrossCalls(t *testing.T) {
	task, _, _ := newTestStreamingTask(t, 2)
	recvConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer recvConn.Close()
	addr := recvConn.LocalAddr().(*net.UDPAddr)
	require.True(t, task.registry.Add(addr.IP, addr.Port))

	iq := make([]int16, 16) // 4 chunks of 2 pairs (4 samples) each
	var counter uint8
	sent := task.sendDataChunks(iq, &counter)
	require.Equal(t, 4, sent)
	require.EqualValues(t, 4, counter)
}
