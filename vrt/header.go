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

// Package vrt implements a byte-exact VITA-49 (VRT) encoder/decoder for
// IF-Data-with-Stream-ID and Context packets. Packet builders write into a
// caller-provided buffer at computed offsets with explicit big-endian
// conversion; nothing here relies on struct packing or native alignment.
package vrt

import (
	"encoding/binary"
	"time"
)

// Packet types (VITA-49 Table 6.1.1-1), only the two this system emits.
const (
	packetTypeData    = 1
	packetTypeContext = 4
)

// TSI/TSF coding indicators (VITA-49 Table 6.1.1-3/4).
const (
	tsiUTC         = 1
	tsfPicoseconds = 2
)

// StreamID is the fixed stream identifier used for every packet this system
// emits; there is no support for multiple concurrent logical streams.
const StreamID = 0x01000000

// TrailerValidData is the data-packet trailer word asserting valid_data.
const TrailerValidData = 0x40000000

// HeaderSize is the length in bytes of the common 20-byte timestamped
// header shared by data and context packets (header word, stream ID,
// integer-seconds timestamp, fractional-picoseconds timestamp).
const HeaderSize = 20

// TrailerSize is the length in bytes of the data-packet trailer.
const TrailerSize = 4

const wordSize = 4

// packHeaderWord builds the first 32-bit header word common to data and
// context packets. counterOrZero is the 4-bit packet counter for data
// packets, or 0 for context packets (which do not carry one).
func packHeaderWord(pktType uint8, trailerPresent bool, counterOrZero uint8, totalWords uint16) uint32 {
	w := uint32(pktType&0xf) << 28
	if trailerPresent {
		w |= 1 << 26
	}
	w |= uint32(tsiUTC&0x3) << 22
	w |= uint32(tsfPicoseconds&0x3) << 20
	w |= uint32(counterOrZero&0xf) << 16
	w |= uint32(totalWords)
	return w
}

// writeCommonHeader fills the 20-byte header shared by both packet types at
// dest[0:20]: header word, stream ID, and the wall-clock timestamp split
// into integer seconds and picosecond fraction.
func writeCommonHeader(dest []byte, pktType uint8, trailerPresent bool, counterOrZero uint8, totalWords uint16) {
	binary.BigEndian.PutUint32(dest[0:], packHeaderWord(pktType, trailerPresent, counterOrZero, totalWords))
	binary.BigEndian.PutUint32(dest[4:], StreamID)
	sec, frac := splitTimestamp(nowMicros())
	binary.BigEndian.PutUint32(dest[8:], sec)
	binary.BigEndian.PutUint64(dest[12:], frac)
}

// nowMicros returns the current wall-clock time as microseconds since the
// Unix epoch. A package variable so tests can pin the clock.
var nowMicros = func() uint64 {
	return uint64(time.Now().UnixMicro())
}

// splitTimestamp derives the integer-seconds and picosecond-fraction pair
// the VRT header carries from a microsecond wall-clock reading.
func splitTimestamp(t uint64) (sec uint32, fracPicoseconds uint64) {
	sec = uint32(t / 1_000_000)
	fracPicoseconds = (t % 1_000_000) * 1_000_000
	return sec, fracPicoseconds
}
