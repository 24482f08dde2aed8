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

package main

import (
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/server"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

func main() {
	var (
		jumbo          bool
		mtu            int
		monitoringPort int
		promPort       int
		logLevel       string
	)

	flag.BoolVar(&jumbo, "jumbo", false, "Set MTU = 9000")
	flag.IntVar(&mtu, "mtu", server.DefaultMTU, "Set MTU = N (bytes)")
	flag.IntVar(&monitoringPort, "monitoringport", 8888, "Port to run the JSON stats server on")
	flag.IntVar(&promPort, "promport", 9888, "Port to run the Prometheus exporter on")
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", logLevel)
	}

	mtuExplicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "mtu" {
			mtuExplicit = true
		}
	})
	if jumbo && !mtuExplicit {
		mtu = server.JumboMTU
	}

	samplesPerPacket := vrt.SamplesPerPacket(mtu)
	if samplesPerPacket < 1 {
		log.Fatalf("mtu %d too small to carry a single IQ pair", mtu)
	}

	st := stats.New()
	go st.Start(monitoringPort)

	promExporter := stats.NewPrometheusExporter(st, promPort, 5*time.Second)
	go promExporter.Start()

	cfg := &server.Config{
		MTU:              mtu,
		SamplesPerPacket: samplesPerPacket,
		ControlPort:      server.ControlPort,
		DataPort:         server.DataPort,
		FrequencyHz:      server.DefaultFrequencyHz,
		SampleRateHz:     server.DefaultSampleRateHz,
		GainDB:           server.DefaultGainDB,
	}

	s := &server.Server{
		Config: cfg,
		Front:  radio.NewSimulatedFrontEnd(time.Now().UnixNano()),
		Stats:  st,
	}

	if err := s.Start(); err != nil {
		log.Errorf("server run failed: %v", err)
		os.Exit(1)
	}
}
