package vrt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// CIF bit positions for the fields this system supports (VITA-49 Context
// Indicator Field 0). Encoding and decoding both walk these in strictly
// descending order; VITA-49 requires it and the two sides must agree
// exactly, or the wire format silently corrupts.
const (
	cifBandwidth  = 29
	cifRefFreq    = 27
	cifGain       = 23
	cifSampleRate = 21
	cifStateEvent = 19
)

// supportedCIFMask is the union of every CIF bit this decoder understands.
// A context packet whose CIF carries any other bit is a parse failure.
const supportedCIFMask = uint32(1)<<cifBandwidth | uint32(1)<<cifRefFreq | uint32(1)<<cifGain | uint32(1)<<cifSampleRate | uint32(1)<<cifStateEvent

// State/event indicator bits within the 32-bit field named by cifStateEvent.
const (
	stateCalibratedTime = 1 << 31
	stateOverrange      = 1 << 19
	stateSampleLoss     = 1 << 18
)

// q43_20Scale is 2^20, the Q43.20 fixed-point scale for Hz-valued fields.
const q43_20Scale = 1 << 20

// q8_7Scale is 2^7, the Q8.7 fixed-point scale for the gain field.
const q8_7Scale = 1 << 7

// ContextSnapshot is the atomically-read set of values a context packet
// encodes: the radio's tuning parameters plus the health flags that feed
// the state/event indicator bits.
type ContextSnapshot struct {
	FrequencyHz  uint64
	SampleRateHz uint32
	BandwidthHz  uint32
	GainDB       float64
	Overrange    bool
	SampleLoss   bool
}

// contextPayloadLen is the byte length of the CIF plus all five supported
// fields: 4 (CIF) + 8 (bandwidth) + 8 (freq) + 4 (gain) + 8 (rate) + 4 (state).
const contextPayloadLen = 4 + 8 + 8 + 4 + 8 + 4

// EncodeContext writes one Context packet for snap into dest, emitting
// every supported field in descending CIF bit order, and returns the
// number of bytes written, or 0 if dest is too small. The calibrated-time
// state bit is always asserted.
func EncodeContext(dest []byte, snap ContextSnapshot) int {
	total := HeaderSize + contextPayloadLen
	if len(dest) < total {
		return 0
	}

	totalWords := uint16(total / wordSize)
	writeCommonHeader(dest, packetTypeContext, false, 0, totalWords)

	cif := uint32(supportedCIFMask)
	binary.BigEndian.PutUint32(dest[HeaderSize:], cif)

	pos := HeaderSize + 4
	binary.BigEndian.PutUint64(dest[pos:], uint64(int64(snap.BandwidthHz)*q43_20Scale))
	pos += 8
	binary.BigEndian.PutUint64(dest[pos:], uint64(int64(snap.FrequencyHz)*q43_20Scale))
	pos += 8

	gainFixed := int16(math.Round(snap.GainDB * q8_7Scale))
	binary.BigEndian.PutUint16(dest[pos:], uint16(gainFixed))
	binary.BigEndian.PutUint16(dest[pos+2:], 0) // stage2, unused
	pos += 4

	binary.BigEndian.PutUint64(dest[pos:], uint64(int64(snap.SampleRateHz)*q43_20Scale))
	pos += 8

	state := uint32(stateCalibratedTime)
	if snap.Overrange {
		state |= stateOverrange
	}
	if snap.SampleLoss {
		state |= stateSampleLoss
	}
	binary.BigEndian.PutUint32(dest[pos:], state)
	pos += 4

	return pos
}

// DecodedContext holds the fields a Context packet carried. Each pointer is
// nil when the corresponding CIF bit was clear; callers overlay the
// non-nil fields onto the live configuration.
type DecodedContext struct {
	FrequencyHz  *uint64
	SampleRateHz *uint32
	GainDB       *float64
	Overrange    bool
	SampleLoss   bool
}

// DecodeContext parses a Context packet from src. It requires len(src) to
// be at least 24 bytes (20-byte header plus the 4-byte CIF) and rejects
// any CIF bit outside the supported set as a parse failure. Fields whose
// CIF bit is clear do not advance the read cursor.
func DecodeContext(src []byte) (DecodedContext, error) {
	var out DecodedContext
	if len(src) < HeaderSize+4 {
		return out, fmt.Errorf("vrt: context packet too short: %d bytes", len(src))
	}

	cif := binary.BigEndian.Uint32(src[HeaderSize:])
	if cif&^supportedCIFMask != 0 {
		return out, fmt.Errorf("vrt: unsupported CIF bits 0x%08x", cif&^supportedCIFMask)
	}

	pos := HeaderSize + 4
	need := func(n int) error {
		if len(src) < pos+n {
			return fmt.Errorf("vrt: context packet truncated at offset %d", pos)
		}
		return nil
	}

	if cif&(1<<cifBandwidth) != 0 {
		// Bandwidth is derived from sample rate, so it is skipped here to
		// keep the cursor aligned and not surfaced as its own overlay field.
		if err := need(8); err != nil {
			return out, err
		}
		pos += 8
	}
	if cif&(1<<cifRefFreq) != 0 {
		if err := need(8); err != nil {
			return out, err
		}
		raw := int64(binary.BigEndian.Uint64(src[pos:]))
		freq := uint64(raw / q43_20Scale)
		out.FrequencyHz = &freq
		pos += 8
	}
	if cif&(1<<cifGain) != 0 {
		if err := need(4); err != nil {
			return out, err
		}
		stage1 := int16(binary.BigEndian.Uint16(src[pos:]))
		gain := float64(stage1) / q8_7Scale
		out.GainDB = &gain
		pos += 4
	}
	if cif&(1<<cifSampleRate) != 0 {
		if err := need(8); err != nil {
			return out, err
		}
		raw := int64(binary.BigEndian.Uint64(src[pos:]))
		rate := uint32(raw / q43_20Scale)
		out.SampleRateHz = &rate
		pos += 8
	}
	if cif&(1<<cifStateEvent) != 0 {
		if err := need(4); err != nil {
			return out, err
		}
		state := binary.BigEndian.Uint32(src[pos:])
		out.Overrange = state&stateOverrange != 0
		out.SampleLoss = state&stateSampleLoss != 0
		pos += 4
	}

	return out, nil
}
