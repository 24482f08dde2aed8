package vrt

import "encoding/binary"

// EncodeData writes one IF-Data-with-Stream-ID packet for the interleaved
// IQ samples in iq (I0, Q0, I1, Q1, ...) into dest, threading counter
// through as the 4-bit wrapping packet counter. It returns the number of
// bytes written, or 0 if dest is too small to hold the packet (the caller
// must not partially consume dest in that case).
//
// len(iq) must be even and at least 2 (one IQ pair). Under the MTU sizer's
// rounding rule the sample count is always even in practice; EncodeData
// still zero-pads an odd tail pair defensively rather than assume it.
func EncodeData(dest []byte, iq []int16, counter *uint8) int {
	if len(iq) < 2 {
		return 0
	}
	payloadBytes := len(iq) * 2
	padding := (wordSize - payloadBytes%wordSize) % wordSize
	total := HeaderSize + payloadBytes + padding + TrailerSize
	if len(dest) < total {
		return 0
	}

	totalWords := uint16(total / wordSize)
	writeCommonHeader(dest, packetTypeData, true, *counter, totalWords)

	pos := HeaderSize
	for _, s := range iq {
		binary.BigEndian.PutUint16(dest[pos:], uint16(s))
		pos += 2
	}
	for i := 0; i < padding; i++ {
		dest[pos] = 0
		pos++
	}
	binary.BigEndian.PutUint32(dest[pos:], TrailerValidData)
	pos += TrailerSize

	*counter = (*counter + 1) & 0xf
	return pos
}

// DataPacketLen returns the exact on-wire length EncodeData would produce
// for nSamplePairs IQ pairs, without encoding anything. Used by the
// streaming task to size chunk buffers and verify the MTU invariant.
func DataPacketLen(nSamplePairs int) int {
	payloadBytes := nSamplePairs * 2 * 2
	padding := (wordSize - payloadBytes%wordSize) % wordSize
	return HeaderSize + payloadBytes + padding + TrailerSize
}
