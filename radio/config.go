// Package radio holds the guarded radio-tuning configuration store and the
// front-end driver facade abstracting the SDR hardware.
package radio

import "sync"

// Snapshot is an atomically-read copy of the radio's tuning parameters, the
// shape the VRT codec needs to emit a context packet without a torn read.
type Snapshot struct {
	FrequencyHz  uint64
	SampleRateHz uint32
	BandwidthHz  uint32
	GainDB       float64
}

// Config is the guarded, mutable radio configuration record. Bandwidth is
// always derived from sample rate (0.8x) and is never set independently.
// The dirty flag is set by Update and cleared only by the streaming task
// once the front-end has acknowledged the new values.
type Config struct {
	mu sync.Mutex

	snap  Snapshot
	dirty bool

	configsApplied uint64
}

// NewConfig builds a Config seeded with the given defaults.
func NewConfig(freqHz uint64, rateHz uint32, gainDB float64) *Config {
	return &Config{
		snap: Snapshot{
			FrequencyHz:  freqHz,
			SampleRateHz: rateHz,
			BandwidthHz:  deriveBandwidth(rateHz),
			GainDB:       gainDB,
		},
	}
}

func deriveBandwidth(rateHz uint32) uint32 {
	return uint32(float64(rateHz) * 0.8)
}

// Snapshot takes an atomic copy of the current tuning parameters.
func (c *Config) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Update overlays any of freqHz, rateHz, gainDB that are non-nil onto the
// live configuration. It compares each field before assigning, recomputes
// bandwidth when rate changes, and raises the dirty flag if anything
// actually changed. It returns whether any field changed.
func (c *Config) Update(freqHz *uint64, rateHz *uint32, gainDB *float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	if freqHz != nil && *freqHz != c.snap.FrequencyHz {
		c.snap.FrequencyHz = *freqHz
		changed = true
	}
	if rateHz != nil && *rateHz != c.snap.SampleRateHz {
		c.snap.SampleRateHz = *rateHz
		c.snap.BandwidthHz = deriveBandwidth(*rateHz)
		changed = true
	}
	if gainDB != nil && *gainDB != c.snap.GainDB {
		c.snap.GainDB = *gainDB
		changed = true
	}
	if changed {
		c.dirty = true
	}
	return changed
}

// Dirty reports whether the configuration has changed since the last
// ClearDirty call.
func (c *Config) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// ClearDirty acknowledges the pending change; called by the streaming task
// once the front-end has been reconfigured to the new values and records
// one more applied reconfiguration.
func (c *Config) ClearDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty = false
	c.configsApplied++
}

// ConfigsApplied returns the count of configurations the streaming task has
// actually acknowledged by clearing the dirty flag, distinct from the
// control task's "reconfigurations received" counter.
func (c *Config) ConfigsApplied() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.configsApplied
}
