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

package server

import (
	"math"
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

// streamState is the streaming task's three logical states.
type streamState int

const (
	stateRunning streamState = iota
	stateReconfiguring
	stateStopped
)

// streamingTask captures IQ samples from the radio front-end, packetizes
// them into VRT data packets, and fans them out over the data socket,
// reconfiguring the front-end whenever the radio configuration store's
// dirty flag is observed set.
type streamingTask struct {
	conn             *net.UDPConn
	front            radio.FrontEnd
	cfg              *radio.Config
	registry         *Registry
	stats            stats.Stats
	samplesPerPacket int
	run              *atomic.Bool

	packetBuf  []byte
	contextBuf []byte
}

func newStreamingTask(conn *net.UDPConn, front radio.FrontEnd, cfg *radio.Config, registry *Registry, st stats.Stats, samplesPerPacket int, run *atomic.Bool) *streamingTask {
	return &streamingTask{
		conn:             conn,
		front:            front,
		cfg:              cfg,
		registry:         registry,
		stats:            st,
		samplesPerPacket: samplesPerPacket,
		run:              run,
		packetBuf:        make([]byte, vrt.DataPacketLen(samplesPerPacket)),
		contextBuf:       make([]byte, vrt.HeaderSize+1024),
	}
}

// runLoop drives the RUNNING/RECONFIGURING/STOPPED state machine until the
// run flag goes false or a fatal error forces STOPPED.
func (t *streamingTask) runLoop() {
	buf, err := t.front.OpenBuffer(radio.DefaultBufferSize)
	if err != nil {
		log.Errorf("failed to open capture buffer: %v", err)
		return
	}

	state := stateRunning
	var counter uint8
	packetsSinceContext := 0
	var lastRefill time.Time
	var dirtyCheck time.Time

	for state != stateStopped {
		switch state {
		case stateRunning:
			if !t.run.Load() {
				state = stateStopped
				continue
			}

			if time.Since(dirtyCheck) >= DirtyPollPeriod {
				dirtyCheck = time.Now()
				if t.cfg.Dirty() {
					state = stateReconfiguring
					continue
				}
			}

			loopStart := time.Now()
			n, err := buf.Refill()
			if err != nil {
				t.stats.IncRefillFailures()
				time.Sleep(RefillBackoff)
				continue
			}

			t.observeTiming(n, loopStart, &lastRefill)

			if packetsSinceContext >= ContextCadence {
				t.sendContext()
				packetsSinceContext = 0
			}

			sent := t.sendDataChunks(buf.IQ()[:n], &counter)
			packetsSinceContext += sent

			t.stats.ObserveLoopTimeNanos(time.Since(loopStart).Nanoseconds())

		case stateReconfiguring:
			state = t.reconfigure(&buf)
			packetsSinceContext = 0
			dirtyCheck = time.Time{}
		}
	}

	if buf != nil {
		if err := buf.Close(); err != nil {
			log.Warnf("failed to close capture buffer on shutdown: %v", err)
		}
	}
}

// reconfigure tears down the capture buffer, applies the new configuration
// to the front-end, and re-opens the buffer. On configure failure it tries
// to restore the previous parameters; if that also fails the task
// transitions to STOPPED, since there is no configuration left to serve
// subscribers with.
func (t *streamingTask) reconfigure(buf *radio.Buffer) streamState {
	old := t.cfg.Snapshot()

	if err := (*buf).Close(); err != nil {
		log.Warnf("failed to close capture buffer before reconfigure: %v", err)
	}
	*buf = nil

	newSnap := t.cfg.Snapshot()
	if err := t.front.Configure(newSnap); err != nil {
		log.Errorf("reconfigure to %+v failed: %v; restoring previous configuration", newSnap, err)
		if restoreErr := t.front.Configure(old); restoreErr != nil {
			log.Errorf("failed to restore previous configuration: %v", restoreErr)
			return stateStopped
		}
		newBuf, err := t.front.OpenBuffer(radio.DefaultBufferSize)
		if err != nil {
			log.Errorf("failed to re-open capture buffer after restore: %v", err)
			return stateStopped
		}
		*buf = newBuf
		return stateRunning
	}

	newBuf, err := t.front.OpenBuffer(radio.DefaultBufferSize)
	if err != nil {
		log.Errorf("failed to re-open capture buffer after reconfigure: %v", err)
		return stateStopped
	}
	*buf = newBuf

	t.sendContext()
	t.cfg.ClearDirty()
	t.stats.IncReconfigurationsApplied()
	return stateRunning
}

// observeTiming computes the expected inter-refill interval from the
// sample count and the configured sample rate, compares it to the actual
// wall-clock delta, and updates the health counters when the two drift
// apart by more than 10 ms.
func (t *streamingTask) observeTiming(samplesWritten int, now time.Time, lastRefill *time.Time) {
	if lastRefill.IsZero() {
		*lastRefill = now
		return
	}

	rate := t.cfg.Snapshot().SampleRateHz
	if rate == 0 {
		*lastRefill = now
		return
	}

	nPairs := samplesWritten / 2
	expectedUs := float64(nPairs) * 1_000_000 / float64(rate)
	actualUs := float64(now.Sub(*lastRefill).Microseconds())
	delta := actualUs - expectedUs

	if math.Abs(delta) > 10_000 {
		t.stats.IncTimestampJumps()
		if delta > 0 {
			t.stats.IncUnderflows()
		} else {
			t.stats.IncOverflows()
		}
	}

	t.stats.SetLastSampleTimeUs(now.UnixMicro())
	*lastRefill = now
}

// sendDataChunks splits iq into samplesPerPacket-sized chunks, encodes and
// fans out each as a data packet, and returns the number of packets sent.
func (t *streamingTask) sendDataChunks(iq []int16, counter *uint8) int {
	chunkLen := t.samplesPerPacket * 2
	if chunkLen == 0 {
		return 0
	}

	sent := 0
	for off := 0; off < len(iq); off += chunkLen {
		end := off + chunkLen
		if end > len(iq) {
			end = len(iq)
		}
		chunk := iq[off:end]
		if len(chunk) < 2 {
			break
		}

		n := vrt.EncodeData(t.packetBuf, chunk, counter)
		if n == 0 {
			log.Errorf("encode_data refused buffer of %d samples, dropping chunk", len(chunk))
			continue
		}

		t.registry.Broadcast(t.conn, t.packetBuf[:n], t.stats)
		t.stats.IncPacketsSent()
		sent++
	}
	return sent
}

// sendContext encodes and fans out one context packet snapshotting the
// current radio configuration and health flags.
func (t *streamingTask) sendContext() {
	report := t.stats.Report()
	snap := t.cfg.Snapshot()

	n := vrt.EncodeContext(t.contextBuf, vrt.ContextSnapshot{
		FrequencyHz:  snap.FrequencyHz,
		SampleRateHz: snap.SampleRateHz,
		BandwidthHz:  snap.BandwidthHz,
		GainDB:       snap.GainDB,
		Overrange:    report.Overflows > 0,
		SampleLoss:   report.Underflows > 0,
	})
	if n == 0 {
		log.Errorf("encode_context refused context buffer")
		return
	}

	t.registry.Broadcast(t.conn, t.contextBuf[:n], t.stats)
	t.stats.IncContextsSent()
}
