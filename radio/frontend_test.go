package radio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulatedFrontEndRefillIsDeterministic(t *testing.T) {
	fe := NewSimulatedFrontEnd(42)
	buf, err := fe.OpenBuffer(16)
	require.NoError(t, err)

	n, err := buf.Refill()
	require.NoError(t, err)
	require.Equal(t, 32, n)

	first := append([]int16(nil), buf.IQ()...)

	fe2 := NewSimulatedFrontEnd(42)
	buf2, err := fe2.OpenBuffer(16)
	require.NoError(t, err)
	_, err = buf2.Refill()
	require.NoError(t, err)

	require.Equal(t, first, buf2.IQ())
}

func TestSimulatedFrontEndConfigureErr(t *testing.T) {
	fe := NewSimulatedFrontEnd(1)
	fe.ConfigureErr = errors.New("boom")
	require.Error(t, fe.Configure(Snapshot{}))
	require.Zero(t, fe.Configured())
}

func TestSimulatedBufferRefillErrIsOneShot(t *testing.T) {
	fe := NewSimulatedFrontEnd(1)
	b, err := fe.OpenBuffer(4)
	require.NoError(t, err)
	sb := b.(*simulatedBuffer)
	sb.RefillErr = errors.New("transient")

	_, err = b.Refill()
	require.Error(t, err)

	_, err = b.Refill()
	require.NoError(t, err)
}

func TestSimulatedBufferRefillAfterCloseFails(t *testing.T) {
	fe := NewSimulatedFrontEnd(1)
	b, err := fe.OpenBuffer(4)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Refill()
	require.Error(t, err)
}
