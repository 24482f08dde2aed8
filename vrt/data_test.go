package vrt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDataLengthInvariant(t *testing.T) {
	nPairs := SamplesPerPacket(1500)
	iq := make([]int16, nPairs*2)
	for i := range iq {
		iq[i] = int16(i)
	}

	buf := make([]byte, DataPacketLen(nPairs))
	var counter uint8
	n := EncodeData(buf, iq, &counter)
	require.Equal(t, len(buf), n)

	totalWords := binary.BigEndian.Uint16(buf[2:]) // low 16 bits of header word
	require.Equal(t, n, int(totalWords)*4)
	require.LessOrEqual(t, n, 1500-28)
}

func TestEncodeDataRefusesShortBuffer(t *testing.T) {
	iq := make([]int16, 8)
	var counter uint8
	n := EncodeData(make([]byte, 10), iq, &counter)
	require.Zero(t, n)
	require.EqualValues(t, 0, counter) // refusal must not advance the counter
}

func TestEncodeDataCounterMonotonicity(t *testing.T) {
	iq := make([]int16, 4)
	buf := make([]byte, DataPacketLen(2))
	var counter uint8
	for i := 0; i < 40; i++ {
		want := uint8(i % 16)
		n := EncodeData(buf, iq, &counter)
		require.NotZero(t, n)

		word0 := binary.BigEndian.Uint32(buf[0:])
		got := uint8((word0 >> 16) & 0xf)
		require.Equal(t, want, got, "iteration %d", i)
	}
}

func TestEncodeDataTrailerAndStreamID(t *testing.T) {
	iq := make([]int16, 4)
	buf := make([]byte, DataPacketLen(2))
	var counter uint8
	n := EncodeData(buf, iq, &counter)
	require.NotZero(t, n)

	require.EqualValues(t, StreamID, binary.BigEndian.Uint32(buf[4:]))
	require.EqualValues(t, TrailerValidData, binary.BigEndian.Uint32(buf[n-TrailerSize:]))
	require.Zero(t, (n-TrailerSize-HeaderSize)%4, "payload+trailer must occupy whole 32-bit words")
}

func TestSamplesPerPacketMTU1500(t *testing.T) {
	require.Equal(t, 362, SamplesPerPacket(1500))
}

func TestSamplesPerPacketRoundsDownToEven(t *testing.T) {
	// 1501: raw = (1501-28-24)/4 = 362 (integer division), already even.
	require.Equal(t, 362, SamplesPerPacket(1501))
	// 1505: raw = (1505-52)/4 = 363, rounds down to 362.
	require.Equal(t, 362, SamplesPerPacket(1505))
}

func TestSamplesPerPacketJumbo(t *testing.T) {
	got := SamplesPerPacket(9000)
	// raw = (9000-28-24)/4 = 2237, rounds down to 2236.
	require.Equal(t, 2236, got)
	require.Zero(t, got%2)
}
