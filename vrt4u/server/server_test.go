package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pluto-sdr/vrt4u/radio"
	"github.com/pluto-sdr/vrt4u/vrt"
	"github.com/pluto-sdr/vrt4u/vrt4u/stats"
)

// TestServerEndToEndSubscriberFlow covers the full subscriber flow: a
// context packet sent to the control port retunes the radio and enrols the
// sender; the enrolled subscriber then receives a VRT packet (context or
// data) longer than the common header.
func TestServerEndToEndSubscriberFlow(t *testing.T) {
	subscriber, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer subscriber.Close()
	subAddr := subscriber.LocalAddr().(*net.UDPAddr)

	samplesPerPacket := vrt.SamplesPerPacket(DefaultMTU)
	cfg := &Config{
		MTU:              DefaultMTU,
		SamplesPerPacket: samplesPerPacket,
		ControlPort:      0,
		// Server enrols subscribers at (source_addr, DataPort); point it at
		// our test listener so the enrolment actually reaches it.
		DataPort:     subAddr.Port,
		FrequencyHz:  DefaultFrequencyHz,
		SampleRateHz: DefaultSampleRateHz,
		GainDB:       DefaultGainDB,
	}

	s := &Server{
		Config: cfg,
		Front:  radio.NewSimulatedFrontEnd(1),
		Stats:  stats.New(),
	}

	go func() {
		_ = s.Start()
	}()
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool {
		return s.controlConn != nil
	}, time.Second, 5*time.Millisecond)

	controlAddr := s.controlConn.LocalAddr().(*net.UDPAddr)

	buf := make([]byte, vrt.HeaderSize+64)
	n := vrt.EncodeContext(buf, vrt.ContextSnapshot{FrequencyHz: 100_000_000, SampleRateHz: DefaultSampleRateHz, GainDB: DefaultGainDB})
	require.NotZero(t, n)

	conn, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: controlAddr.Port})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(buf[:n])
	require.NoError(t, err)

	require.NoError(t, subscriber.SetReadDeadline(time.Now().Add(2*time.Second)))
	recvBuf := make([]byte, 2048)
	got, _, err := subscriber.ReadFromUDP(recvBuf)
	require.NoError(t, err)
	require.Greater(t, got, vrt.HeaderSize)
}
