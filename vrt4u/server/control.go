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
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

// controlTask receives context packets as reconfiguration requests on a
// UDP socket bound to ControlPort, applies them to the radio configuration
// store, and self-enrolls the sender as a data subscriber.
type controlTask struct {
	conn     *net.UDPConn
	dataPort int
	cfg      *radio.Config
	registry *Registry
	stats    stats.Stats
	run      *atomic.Bool
}

func newControlTask(conn *net.UDPConn, dataPort int, cfg *radio.Config, registry *Registry, st stats.Stats, run *atomic.Bool) *controlTask {
	return &controlTask{conn: conn, dataPort: dataPort, cfg: cfg, registry: registry, stats: st, run: run}
}

// runLoop loops on the control socket with a 1 s receive timeout, so shutdown
// is observed within 1 s of the run flag going false. The
// reconfigurations-received counter is incremented on every datagram
// whether or not parsing succeeds, since it counts control-channel
// traffic, not applied changes.
func (t *controlTask) runLoop() {
	buf := make([]byte, 4096)
	for t.run.Load() {
		if err := t.conn.SetReadDeadline(time.Now().Add(ControlReceiveTimeout)); err != nil {
			log.Errorf("failed to set control socket read deadline: %v", err)
			return
		}
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Warnf("control socket read error: %v", err)
			continue
		}

		t.stats.IncReconfigurationsReceived()

		dec, err := vrt.DecodeContext(buf[:n])
		if err != nil {
			log.Warnf("malformed context packet from %s: %v", addr, err)
		} else if t.cfg.Update(dec.FrequencyHz, dec.SampleRateHz, dec.GainDB) {
			log.Debugf("configuration updated from %s", addr)
		}

		if t.registry.Add(addr.IP, t.dataPort) {
			log.Infof("enrolled subscriber %s:%d", addr.IP, t.dataPort)
		}
	}
}
