// Package smooth provides the clickless value: a scalar with exponential
// smoothing, shared by every leaf module that exposes a user-controllable
// parameter. A single implementation keeps smoothing behavior consistent
// across the whole leaf catalog instead of each leaf hand-rolling its own
// one-pole filter.
package smooth

import (
	"math"
	"sync/atomic"
)

// Value is an exponentially-smoothed scalar. The target can be set from
// any thread (the control thread retargets it via a param update; the
// audio thread only ever reads and steps it), using the same
// float-bits-in-an-atomic-uint32 trick the teacher's EQ5Band uses for
// lock-free gain reads, so SetTarget never takes a lock.
type Value struct {
	target  atomic.Uint32 // bits of a float32 target
	current float64
	coeff   float64 // per-sample smoothing coefficient, in (0, 1]
}

// New creates a Value already settled at initial with the given
// coefficient (0 < coeff <= 1; 1 means no smoothing, snap immediately).
func New(initial float64, coeff float64) *Value {
	v := &Value{current: initial, coeff: coeff}
	v.target.Store(math.Float32bits(float32(initial)))
	return v
}

// NewWithTimeConstant derives a coefficient from a smoothing time (in
// seconds) and the engine sample rate, matching the original's lag
// processor convention of deriving a per-sample delta from a time
// constant and the sample rate.
func NewWithTimeConstant(initial, seconds, sampleRate float64) *Value {
	coeff := 1.0
	if seconds > 0 && sampleRate > 0 {
		coeff = 1.0 - math.Exp(-1.0/(seconds*sampleRate))
	}
	return New(initial, coeff)
}

// SetTarget retargets the value. Safe to call from any thread without
// locking.
func (v *Value) SetTarget(target float64) {
	v.target.Store(math.Float32bits(float32(target)))
}

// Target returns the current target, independent of how far Current has
// smoothed toward it.
func (v *Value) Target() float64 {
	return float64(math.Float32frombits(v.target.Load()))
}

// Step advances the smoothed value one sample toward the target and
// returns the new current value. Must only be called from the audio
// thread (the sole writer of `current`).
func (v *Value) Step() float64 {
	target := v.Target()
	v.current += (target - v.current) * v.coeff
	return v.current
}

// Current returns the last value computed by Step without advancing it.
func (v *Value) Current() float64 {
	return v.current
}

// SnapTo forces both current and target to value immediately, skipping
// smoothing, so the value does not ramp in from whatever it held before.
func (v *Value) SnapTo(value float64) {
	v.current = value
	v.SetTarget(value)
}
