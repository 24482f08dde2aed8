/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats implements the streamer's statistics and health-monitor
// record: counters, loop-time tracking, and discontinuity detection, plus
// JSON and Prometheus export of a point-in-time snapshot.
package stats

import "sync"

// Stats is the metric collection interface the control and streaming tasks
// report into, and the supervisor and exporters read from.
type Stats interface {
	// Start runs the JSON http export server. Blocks; call in a goroutine.
	Start(monitoringPort int)

	// Snapshot copies the live counters into the reportable side so
	// exporters read a consistent point-in-time view without racing the
	// hot path.
	Snapshot()

	// Reset sets all counters, live and reported, to 0.
	Reset()

	IncPacketsSent()
	AddBytesSent(n uint64)
	IncContextsSent()
	IncReconfigurationsReceived()
	IncReconfigurationsApplied()
	IncRefillFailures()
	IncSendFailures()
	IncUnderflows()
	IncOverflows()
	IncTimestampJumps()

	// ObserveLoopTimeNanos folds one loop-time sample into min/max/sum/count.
	ObserveLoopTimeNanos(nanos int64)

	// SetLastSampleTimeUs records the last observed wall-clock sample time.
	SetLastSampleTimeUs(us int64)

	// Report returns a copy of the last Snapshot for in-process readers
	// (the Prometheus exporter, the supervisor's periodic log line).
	Report() Counters
}

// Counters is the streamer's statistics record: monotone counters,
// loop-time aggregates, and the last observed sample time, all mutated
// under one guard.
type Counters struct {
	PacketsSent              uint64
	BytesSent                uint64
	ContextsSent             uint64
	ReconfigurationsReceived uint64
	ReconfigurationsApplied  uint64
	RefillFailures           uint64
	SendFailures             uint64
	Underflows               uint64
	Overflows                uint64
	TimestampJumps           uint64

	LoopTimeMinNanos int64
	LoopTimeMaxNanos int64
	LoopTimeSumNanos int64
	LoopTimeCount    uint64

	LastSampleTimeUs int64
}

// counterStats is the concrete Stats implementation: a guarded live record
// plus a reportable snapshot, split the same way a report-vs-live stats
// record usually is, but as one flat guarded struct instead of a map of
// per-message-type sync maps, since every counter here is a scalar.
type counterStats struct {
	mu   sync.Mutex
	live Counters
	// report is only ever written by Snapshot and read by exporters; it
	// has its own lock because exporters must never block the hot path.
	reportMu sync.Mutex
	report   Counters
}

// New builds a Stats record with all counters zeroed.
func New() Stats {
	return &counterStats{}
}

func (s *counterStats) IncPacketsSent() {
	s.mu.Lock()
	s.live.PacketsSent++
	s.mu.Unlock()
}

func (s *counterStats) AddBytesSent(n uint64) {
	s.mu.Lock()
	s.live.BytesSent += n
	s.mu.Unlock()
}

func (s *counterStats) IncContextsSent() {
	s.mu.Lock()
	s.live.ContextsSent++
	s.mu.Unlock()
}

func (s *counterStats) IncReconfigurationsReceived() {
	s.mu.Lock()
	s.live.ReconfigurationsReceived++
	s.mu.Unlock()
}

func (s *counterStats) IncReconfigurationsApplied() {
	s.mu.Lock()
	s.live.ReconfigurationsApplied++
	s.mu.Unlock()
}

func (s *counterStats) IncRefillFailures() {
	s.mu.Lock()
	s.live.RefillFailures++
	s.mu.Unlock()
}

func (s *counterStats) IncSendFailures() {
	s.mu.Lock()
	s.live.SendFailures++
	s.mu.Unlock()
}

func (s *counterStats) IncUnderflows() {
	s.mu.Lock()
	s.live.Underflows++
	s.mu.Unlock()
}

func (s *counterStats) IncOverflows() {
	s.mu.Lock()
	s.live.Overflows++
	s.mu.Unlock()
}

func (s *counterStats) IncTimestampJumps() {
	s.mu.Lock()
	s.live.TimestampJumps++
	s.mu.Unlock()
}

func (s *counterStats) ObserveLoopTimeNanos(nanos int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live.LoopTimeCount == 0 || nanos < s.live.LoopTimeMinNanos {
		s.live.LoopTimeMinNanos = nanos
	}
	if nanos > s.live.LoopTimeMaxNanos {
		s.live.LoopTimeMaxNanos = nanos
	}
	s.live.LoopTimeSumNanos += nanos
	s.live.LoopTimeCount++
}

func (s *counterStats) SetLastSampleTimeUs(us int64) {
	s.mu.Lock()
	s.live.LastSampleTimeUs = us
	s.mu.Unlock()
}

// Snapshot copies the live counters into the reportable side.
func (s *counterStats) Snapshot() {
	s.mu.Lock()
	live := s.live
	s.mu.Unlock()

	s.reportMu.Lock()
	s.report = live
	s.reportMu.Unlock()
}

// Reset sets all counters, live and reported, to 0. The live and reported
// sides are cleared under their own locks one after the other, not as one
// atomic step.
func (s *counterStats) Reset() {
	s.mu.Lock()
	s.live = Counters{}
	s.mu.Unlock()

	s.reportMu.Lock()
	s.report = Counters{}
	s.reportMu.Unlock()
}

// Report returns a copy of the last Snapshot.
func (s *counterStats) Report() Counters {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	return s.report
}

// toMap renders the reported counters as a flat string-keyed map, for JSON
// and Prometheus export.
func (c Counters) toMap() map[string]int64 {
	m := map[string]int64{
		"packets_sent":              int64(c.PacketsSent),
		"bytes_sent":                int64(c.BytesSent),
		"contexts_sent":             int64(c.ContextsSent),
		"reconfigurations_received": int64(c.ReconfigurationsReceived),
		"reconfigurations_applied":  int64(c.ReconfigurationsApplied),
		"refill_failures":           int64(c.RefillFailures),
		"send_failures":             int64(c.SendFailures),
		"underflows":                int64(c.Underflows),
		"overflows":                 int64(c.Overflows),
		"timestamp_jumps":           int64(c.TimestampJumps),
		"loop_time_min_ns":          c.LoopTimeMinNanos,
		"loop_time_max_ns":          c.LoopTimeMaxNanos,
		"loop_time_sum_ns":          c.LoopTimeSumNanos,
		"loop_time_count":           int64(c.LoopTimeCount),
		"last_sample_time_us":       c.LastSampleTimeUs,
	}
	return m
}
