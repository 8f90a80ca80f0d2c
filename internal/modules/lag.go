package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// lag is "slew": an independent rise/fall slew limiter, grounded on
// dsp/utilities/lag.rs.
type lag struct {
	id         string
	sampleRate float64

	inputIn, riseIn, fallIn input

	current []float64
	out     poly.Signal
	nextOut poly.Signal
}

func newLag(id string, sampleRate float64) (registry.Module, error) {
	return &lag{id: id, sampleRate: sampleRate}, nil
}

func (m *lag) ID() string   { return m.id }
func (m *lag) Type() string { return "slew" }

type lagParams struct {
	Input patchfmt.Param `json:"input"`
	Rise  patchfmt.Param `json:"rise"`
	Fall  patchfmt.Param `json:"fall"`
}

func (m *lag) TryUpdateParams(raw json.RawMessage) error {
	var p lagParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.riseIn.param = p.Rise
	m.fallIn.param = p.Fall
	return nil
}

func (m *lag) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.riseIn.connect(g)
	m.fallIn.connect(g)
}

func (m *lag) OnPatchUpdate() {}

func (m *lag) Update() {
	n := maxChannels(&m.inputIn, &m.riseIn, &m.fallIn)
	if len(m.current) < n {
		m.current = append(m.current, make([]float64, n-len(m.current))...)
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		in := m.inputIn.value(ch, 0)

		fallTime := math.Max(m.fallIn.value(ch, 0.01), 0.001)
		riseTime := fallTime
		if m.riseIn.connected() || m.riseIn.param.Value != nil {
			riseTime = math.Max(m.riseIn.value(ch, 0.01), 0.001)
		}

		maxRise := 10.0 / (riseTime * m.sampleRate)
		maxFall := 10.0 / (fallTime * m.sampleRate)

		diff := in - m.current[ch]
		var change float64
		if diff > 0 {
			change = math.Min(diff, maxRise)
		} else {
			change = math.Max(diff, -maxFall)
		}
		m.current[ch] += change
		m.nextOut.Set(ch, m.current[ch])
	}
}

func (m *lag) Tick() { m.out = m.nextOut }

func (m *lag) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *lag) DispatchMessage(json.RawMessage) error { return nil }
func (m *lag) GetState() json.RawMessage             { return nil }
