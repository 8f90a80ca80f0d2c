package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// clampModule is "$clamp": independently-optional min/max bounds on a
// polyphonic signal, grounded on dsp/utilities/clamp.rs.
type clampModule struct {
	id string

	inputIn, minIn, maxIn input

	out, nextOut poly.Signal
}

func newClamp(id string, sampleRate float64) (registry.Module, error) {
	return &clampModule{id: id}, nil
}

func (m *clampModule) ID() string   { return m.id }
func (m *clampModule) Type() string { return "$clamp" }

type clampParams struct {
	Input patchfmt.Param `json:"input"`
	Min   patchfmt.Param `json:"min"`
	Max   patchfmt.Param `json:"max"`
}

func (m *clampModule) TryUpdateParams(raw json.RawMessage) error {
	var p clampParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.minIn.param = p.Min
	m.maxIn.param = p.Max
	return nil
}

func (m *clampModule) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.minIn.connect(g)
	m.maxIn.connect(g)
}

func (m *clampModule) OnPatchUpdate() {}

func (m *clampModule) Update() {
	n := m.inputIn.channels()
	m.nextOut.SetChannels(n)
	hasMin := m.minIn.param.IsCable() || m.minIn.param.Value != nil
	hasMax := m.maxIn.param.IsCable() || m.maxIn.param.Value != nil

	for ch := 0; ch < n; ch++ {
		val := m.inputIn.value(ch, 0)
		if hasMin {
			if lo := m.minIn.value(ch, val); val < lo {
				val = lo
			}
		}
		if hasMax {
			if hi := m.maxIn.value(ch, val); val > hi {
				val = hi
			}
		}
		m.nextOut.Set(ch, val)
	}
}

func (m *clampModule) Tick() { m.out = m.nextOut }

func (m *clampModule) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *clampModule) DispatchMessage(json.RawMessage) error { return nil }
func (m *clampModule) GetState() json.RawMessage             { return nil }
