package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	s := New()
	s.IncPacketsSent()
	s.IncPacketsSent()
	s.AddBytesSent(1500)
	s.IncContextsSent()
	s.IncReconfigurationsReceived()
	s.IncReconfigurationsApplied()
	s.IncUnderflows()
	s.IncOverflows()
	s.IncTimestampJumps()
	s.IncRefillFailures()
	s.IncSendFailures()

	s.Snapshot()
	r := s.Report()
	require.EqualValues(t, 2, r.PacketsSent)
	require.EqualValues(t, 1500, r.BytesSent)
	require.EqualValues(t, 1, r.ContextsSent)
	require.EqualValues(t, 1, r.ReconfigurationsReceived)
	require.EqualValues(t, 1, r.ReconfigurationsApplied)
	require.EqualValues(t, 1, r.Underflows)
	require.EqualValues(t, 1, r.Overflows)
	require.EqualValues(t, 1, r.TimestampJumps)
	require.EqualValues(t, 1, r.RefillFailures)
	require.EqualValues(t, 1, r.SendFailures)
}

func TestLoopTimeMinMaxSumCount(t *testing.T) {
	s := New()
	s.ObserveLoopTimeNanos(500)
	s.ObserveLoopTimeNanos(100)
	s.ObserveLoopTimeNanos(900)
	s.Snapshot()

	r := s.Report()
	require.EqualValues(t, 100, r.LoopTimeMinNanos)
	require.EqualValues(t, 900, r.LoopTimeMaxNanos)
	require.EqualValues(t, 1500, r.LoopTimeSumNanos)
	require.EqualValues(t, 3, r.LoopTimeCount)
}

func TestSnapshotDoesNotSeeUncommittedWrites(t *testing.T) {
	s := New()
	s.IncPacketsSent()
	s.Snapshot()
	s.IncPacketsSent() // not yet snapshotted

	r := s.Report()
	require.EqualValues(t, 1, r.PacketsSent)
}

func TestResetZeroesBothSides(t *testing.T) {
	s := New()
	s.IncPacketsSent()
	s.Snapshot()
	s.Reset()

	r := s.Report()
	require.Zero(t, r.PacketsSent)
}

func TestToMapRendersAllFields(t *testing.T) {
	s := New()
	s.IncPacketsSent()
	s.Snapshot()
	m := s.Report().toMap()
	require.Contains(t, m, "packets_sent")
	require.Contains(t, m, "loop_time_min_ns")
	require.Contains(t, m, "last_sample_time_us")
	require.EqualValues(t, 1, m["packets_sent"])
}
