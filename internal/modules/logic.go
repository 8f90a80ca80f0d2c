package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// edgeDetector is the shared implementation behind "$rising" and
// "$falling", grounded on dsp/utilities/logic.rs; rising is a strict
// comparison against the last sample, falling its mirror.
type edgeDetector struct {
	id       string
	typeName string
	rising   bool

	inputIn input
	last    []float64
	out     poly.Signal
	nextOut poly.Signal
}

func newRisingEdge(id string, sampleRate float64) (registry.Module, error) {
	return &edgeDetector{id: id, typeName: "$rising", rising: true}, nil
}

func newFallingEdge(id string, sampleRate float64) (registry.Module, error) {
	return &edgeDetector{id: id, typeName: "$falling", rising: false}, nil
}

func (m *edgeDetector) ID() string   { return m.id }
func (m *edgeDetector) Type() string { return m.typeName }

type edgeParams struct {
	Input patchfmt.Param `json:"input"`
}

func (m *edgeDetector) TryUpdateParams(raw json.RawMessage) error {
	var p edgeParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	return nil
}

func (m *edgeDetector) Connect(g registry.Graph) { m.inputIn.connect(g) }
func (m *edgeDetector) OnPatchUpdate()            {}

func (m *edgeDetector) Update() {
	n := m.inputIn.channels()
	if len(m.last) < n {
		m.last = append(m.last, make([]float64, n-len(m.last))...)
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		in := m.inputIn.value(ch, 0)
		var triggered bool
		if m.rising {
			triggered = in > m.last[ch]
		} else {
			triggered = in < m.last[ch]
		}
		m.last[ch] = in
		if triggered {
			m.nextOut.Set(ch, 5)
		} else {
			m.nextOut.Set(ch, 0)
		}
	}
}

func (m *edgeDetector) Tick() { m.out = m.nextOut }

func (m *edgeDetector) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *edgeDetector) DispatchMessage(json.RawMessage) error { return nil }
func (m *edgeDetector) GetState() json.RawMessage             { return nil }
