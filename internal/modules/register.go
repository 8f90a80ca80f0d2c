package modules

import "github.com/cbegin/modularengine/internal/registry"

// init registers every leaf's constructor into the process-wide
// registry, generalizing the teacher's newEngineForMode/engineForModule
// switches (player.go, internal/wavetable/engine.go) from a closed
// 4-case switch into an open, fixed-at-init-time map (§4.2/§9).
//
// HiddenAudioInType is intentionally never registered here: it is a
// well-known module a host constructs directly and inserts out of band
// (mirroring the original's WellKnownModule::HiddenAudioIn), not a type
// a declarative patch may name.
func init() {
	registry.Default.Register("sine", newSine)
	registry.Default.Register("$saw", newSaw)
	registry.Default.Register("$pulse", newPulse)
	registry.Default.Register("noise", newNoise)
	registry.Default.Register("lpf", newLowpass)
	registry.Default.Register("$hpf", newHighpass)
	registry.Default.Register("bpf", newBandpass)
	registry.Default.Register("$clamp", newClamp)
	registry.Default.Register("slew", newLag)
	registry.Default.Register("sah", newSampleAndHold)
	registry.Default.Register("tah", newTrackAndHold)
	registry.Default.Register("schmittTrigger", newSchmittTrigger)
	registry.Default.Register("$rising", newRisingEdge)
	registry.Default.Register("$falling", newFallingEdge)
	registry.Default.Register("stereoMixer", newStereoMixer)
	registry.Default.Register("mixer", newMixer)
	registry.Default.Register("adsr", newEnvelope)
	registry.Default.Register("signal", newSignal)
	registry.Default.Register("breakpointTable", newBreakpointTable)
}
