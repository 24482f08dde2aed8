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
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

// Server is the VRT streamer supervisor: it owns both UDP sockets and the
// radio configuration store, wires the control and streaming tasks, and
// prints stats every 5 s until a stop signal is observed.
type Server struct {
	Config *Config
	Front  radio.FrontEnd
	Stats  stats.Stats

	radioCfg *radio.Config
	registry *Registry

	controlConn *net.UDPConn
	dataConn    *net.UDPConn

	run      atomic.Bool
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Start binds both sockets, spawns the control and streaming tasks, and
// blocks printing stats every 5 s until Stop is called or a termination
// signal arrives. It returns only after both tasks have exited.
func (s *Server) Start() error {
	var err error
	s.controlConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: s.Config.ControlPort})
	if err != nil {
		return fmt.Errorf("failed to bind control socket on port %d: %w", s.Config.ControlPort, err)
	}
	s.dataConn, err = net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		s.controlConn.Close()
		return fmt.Errorf("failed to open data socket: %w", err)
	}

	if expected := vrt.DataPacketLen(s.Config.SamplesPerPacket) + 28; expected > s.Config.MTU {
		log.Warnf("computed packet size %d bytes exceeds MTU %d; relying on IP fragmentation", expected, s.Config.MTU)
	}

	s.radioCfg = radio.NewConfig(s.Config.FrequencyHz, s.Config.SampleRateHz, s.Config.GainDB)
	s.registry = NewRegistry()
	s.stopCh = make(chan struct{})
	s.run.Store(true)

	log.Infof("vrt4u streaming on control port %d, subscribers fan out on port %d, mtu %d, samples/packet %d",
		s.Config.ControlPort, s.Config.DataPort, s.Config.MTU, s.Config.SamplesPerPacket)

	control := newControlTask(s.controlConn, s.Config.DataPort, s.radioCfg, s.registry, s.Stats, &s.run)
	streaming := newStreamingTask(s.dataConn, s.Front, s.radioCfg, s.registry, s.Stats, s.Config.SamplesPerPacket, &s.run)

	s.wg.Add(2)
	go func() { defer s.wg.Done(); control.runLoop() }()
	go func() { defer s.wg.Done(); streaming.runLoop() }()

	s.notifyReady()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(StatsLogInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case sig := <-sigCh:
			log.Infof("received signal %v, stopping", sig)
			s.Stop()
		case <-ticker.C:
			s.logStats()
		case <-s.stopCh:
			break loop
		}
	}

	s.wg.Wait()
	s.controlConn.Close()
	s.dataConn.Close()
	return nil
}

// Stop flips the shared run flag and wakes Start's supervisor loop. It
// does no other work, so it is itself signal-handler safe.
func (s *Server) Stop() {
	s.run.Store(false)
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Server) logStats() {
	s.Stats.Snapshot()
	r := s.Stats.Report()
	log.Infof("stats: packets=%d bytes=%d contexts=%d reconfigs_recv=%d reconfigs_applied=%d refill_fail=%d send_fail=%d underflows=%d overflows=%d ts_jumps=%d subscribers=%d",
		r.PacketsSent, r.BytesSent, r.ContextsSent, r.ReconfigurationsReceived, r.ReconfigurationsApplied,
		r.RefillFailures, r.SendFailures, r.Underflows, r.Overflows, r.TimestampJumps, s.registry.Len())
}

// notifyReady sends a best-effort sd_notify(READY=1); absence of a
// systemd notification socket is not an error.
func (s *Server) notifyReady() {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported && err != nil {
		log.Warnf("sd_notify failed: %v", err)
	} else if !supported {
		log.Debug("sd_notify not supported, skipping readiness notification")
	} else {
		log.Debug("sent sd_notify ready")
	}
}
