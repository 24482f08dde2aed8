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

// Package server wires the control task, the streaming task, and the
// subscriber registry into a VRT streamer: a UDP server that continuously
// packetizes IQ samples from a radio front-end and fans them out to
// self-enrolled subscribers.
package server

import "time"

// Compile-time defaults: frequency 2.4 GHz, sample rate 30 MS/s, gain
// 20 dB, buffer 16384 samples, context cadence 1 per 100 data packets, max
// subscribers 16. None of these are configurable at runtime beyond the
// CLI's MTU override.
const (
	DefaultFrequencyHz  = 2_400_000_000
	DefaultSampleRateHz = 30_000_000
	DefaultGainDB       = 20.0
	DefaultMTU          = 1500
	JumboMTU            = 9000

	ControlPort = 4990
	DataPort    = 4991

	MaxSubscribers  = 16
	ContextCadence  = 100
	DirtyPollPeriod = 100 * time.Millisecond
	RefillBackoff   = 1 * time.Millisecond

	ControlReceiveTimeout = 1 * time.Second
	StatsLogInterval      = 5 * time.Second
)

// Config is the process-wide configuration the supervisor builds from CLI
// flags and passes by shared reference into each task.
type Config struct {
	MTU              int
	SamplesPerPacket int

	ControlPort int
	DataPort    int

	FrequencyHz  uint64
	SampleRateHz uint32
	GainDB       float64
}
