package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// mixerMaxInputs bounds the fixed-size input array the same way
// poly.Signal bounds channels, so Update never allocates.
const mixerMaxInputs = 8

// mixer is "mixer": an N-input summing mixer with per-input level,
// generalizing the teacher's effects.Chain sequential-composition idiom
// (internal/effects/effects.go) from "apply effects in series" to "sum
// inputs in parallel" — no direct mixer.rs exists in the kept
// original_source subset (the closest relative is the pattern-keyed $mix
// used only inside a sequencer's JS-side helpers), so this leaf's shape
// is original to the Go port rather than a line-for-line port.
type mixer struct {
	id string

	inputs [mixerMaxInputs]input
	levels [mixerMaxInputs]input
	count  int

	out, nextOut poly.Signal
}

func newMixer(id string, sampleRate float64) (registry.Module, error) {
	return &mixer{id: id}, nil
}

func (m *mixer) ID() string   { return m.id }
func (m *mixer) Type() string { return "mixer" }

type mixerParams struct {
	Inputs []patchfmt.Param `json:"inputs"`
	Levels []patchfmt.Param `json:"levels"`
}

func (m *mixer) TryUpdateParams(raw json.RawMessage) error {
	var p mixerParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	n := len(p.Inputs)
	if n > mixerMaxInputs {
		n = mixerMaxInputs
	}
	var next [mixerMaxInputs]input
	var levels [mixerMaxInputs]input
	for i := 0; i < n; i++ {
		next[i].param = p.Inputs[i]
		if i < len(p.Levels) {
			levels[i].param = p.Levels[i]
		} else {
			one := 1.0
			levels[i].param = patchfmt.Param{Value: &one}
		}
	}
	m.inputs = next
	m.levels = levels
	m.count = n
	return nil
}

func (m *mixer) Connect(g registry.Graph) {
	for i := 0; i < m.count; i++ {
		m.inputs[i].connect(g)
		m.levels[i].connect(g)
	}
}

func (m *mixer) OnPatchUpdate() {}

func (m *mixer) Update() {
	n := 1
	for i := 0; i < m.count; i++ {
		if c := m.inputs[i].channels(); c > n {
			n = c
		}
	}
	m.nextOut.SetChannels(n)
	for ch := 0; ch < n; ch++ {
		var sum float64
		for i := 0; i < m.count; i++ {
			sum += m.inputs[i].value(ch, 0) * m.levels[i].value(ch, 1)
		}
		m.nextOut.Set(ch, sum)
	}
}

func (m *mixer) Tick() { m.out = m.nextOut }

func (m *mixer) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *mixer) DispatchMessage(json.RawMessage) error { return nil }
func (m *mixer) GetState() json.RawMessage             { return nil }
