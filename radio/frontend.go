package radio

import (
	"fmt"
	"math/rand"
)

// DefaultBufferSize is the capture buffer size in IQ samples, matching the
// embedded platform's default DMA-backed buffer allocation.
const DefaultBufferSize = 16384

// FrontEnd abstracts the RF front-end driver. The real implementation is
// platform-specific and out of scope; this system only depends on the two
// operations below and on the Buffer that OpenBuffer returns. Configure
// failures are returned, never raised.
type FrontEnd interface {
	// Configure applies frequency, sample rate, bandwidth, and gain, and
	// forces manual gain-control mode with both I and Q channels enabled.
	Configure(snap Snapshot) error

	// OpenBuffer allocates a capture buffer sized to capacitySamples IQ
	// pairs and returns a handle the caller refills and eventually closes.
	OpenBuffer(capacitySamples int) (Buffer, error)
}

// Buffer is a capture buffer handle: refill blocks until full samples are
// available, IQ exposes the refilled interleaved int16 view, and Close
// tears it down (required around every reconfiguration).
type Buffer interface {
	// Refill blocks until the buffer is full or an error occurs, and
	// returns the number of interleaved int16 samples written.
	Refill() (int, error)

	// IQ returns a view into the most recently refilled samples,
	// channel 0 (I) first with Q interleaved immediately after per pair.
	IQ() []int16

	// Close tears down the capture buffer. Safe to call once.
	Close() error
}

// SimulatedFrontEnd is a deterministic FrontEnd test double that replays a
// seeded pseudo-random IQ block on every refill instead of touching
// hardware, used by server/streaming tests and by any build without a real
// radio attached.
type SimulatedFrontEnd struct {
	// ConfigureErr, if set, is returned by every Configure call.
	ConfigureErr error
	// OpenBufferErr, if set, is returned by every OpenBuffer call.
	OpenBufferErr error

	configured int
	seed       int64
}

// NewSimulatedFrontEnd builds a simulated front-end whose refills are
// reproducible across test runs for a given seed.
func NewSimulatedFrontEnd(seed int64) *SimulatedFrontEnd {
	return &SimulatedFrontEnd{seed: seed}
}

// Configure records the call and returns ConfigureErr if set.
func (f *SimulatedFrontEnd) Configure(_ Snapshot) error {
	if f.ConfigureErr != nil {
		return f.ConfigureErr
	}
	f.configured++
	return nil
}

// Configured reports how many successful Configure calls this front-end
// has observed, for test assertions.
func (f *SimulatedFrontEnd) Configured() int { return f.configured }

// OpenBuffer returns a simulatedBuffer seeded deterministically from the
// front-end's seed alone, so every buffer opened by the same front-end,
// including those re-opened after a reconfiguration, replays the same
// reproducible stream.
func (f *SimulatedFrontEnd) OpenBuffer(capacitySamples int) (Buffer, error) {
	if f.OpenBufferErr != nil {
		return nil, f.OpenBufferErr
	}
	if capacitySamples <= 0 {
		return nil, fmt.Errorf("radio: capacitySamples must be positive, got %d", capacitySamples)
	}
	return &simulatedBuffer{
		rnd:  rand.New(rand.NewSource(f.seed)),
		cap:  capacitySamples,
		data: make([]int16, capacitySamples*2),
	}, nil
}

type simulatedBuffer struct {
	rnd    *rand.Rand
	cap    int
	data   []int16
	closed bool

	// RefillErr, if set, is returned by the next Refill call only, then
	// cleared — models a transient refill failure.
	RefillErr error
}

func (b *simulatedBuffer) Refill() (int, error) {
	if b.closed {
		return 0, fmt.Errorf("radio: refill on closed buffer")
	}
	if b.RefillErr != nil {
		err := b.RefillErr
		b.RefillErr = nil
		return 0, err
	}
	for i := range b.data {
		b.data[i] = int16(b.rnd.Intn(1 << 16))
	}
	return len(b.data), nil
}

func (b *simulatedBuffer) IQ() []int16 {
	return b.data
}

func (b *simulatedBuffer) Close() error {
	b.closed = true
	return nil
}
