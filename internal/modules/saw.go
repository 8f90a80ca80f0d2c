package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
	"github.com/cbegin/modularengine/internal/smooth"
)

// triangleIntegral is the DPW anti-derivative of the variable-symmetry
// triangle waveform used by saw, grounded verbatim on
// dsp/oscillators/saw.rs's triangle_integral.
func triangleIntegral(phase, s float64) float64 {
	if phase < s {
		return phase*phase/s - phase
	}
	d := phase - s
	return phase - d*d/(1-s) - s
}

func naiveTriangle(phase, s float64) float64 {
	if phase < s {
		return 2*phase/s - 1
	}
	return 1 - 2*(phase-s)/(1-s)
}

type sawChannel struct {
	phase float64
	shape *smooth.Value
}

// saw is "$saw": a DPW-differentiated variable-symmetry triangle that
// morphs between saw (shape=0), triangle (shape=2.5), and ramp (shape=5).
type saw struct {
	id         string
	sampleRate float64

	freqIn  input
	shapeIn input

	channels []sawChannel
	out      poly.Signal
	nextOut  poly.Signal
}

func newSaw(id string, sampleRate float64) (registry.Module, error) {
	return &saw{id: id, sampleRate: sampleRate}, nil
}

func (m *saw) ID() string   { return m.id }
func (m *saw) Type() string { return "$saw" }

type sawParams struct {
	Freq  patchfmt.Param `json:"freq"`
	Shape patchfmt.Param `json:"shape"`
}

func (m *saw) TryUpdateParams(raw json.RawMessage) error {
	var p sawParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.freqIn.param = p.Freq
	m.shapeIn.param = p.Shape
	return nil
}

func (m *saw) Connect(g registry.Graph) {
	m.freqIn.connect(g)
	m.shapeIn.connect(g)
}

func (m *saw) OnPatchUpdate() {}

func (m *saw) Update() {
	n := maxChannels(&m.freqIn, &m.shapeIn)
	if len(m.channels) < n {
		grown := make([]sawChannel, n)
		copy(grown, m.channels)
		for i := len(m.channels); i < n; i++ {
			grown[i].shape = smooth.New(0, 1)
		}
		m.channels = grown
	}
	m.nextOut.SetChannels(n)

	invSampleRate := 1.0 / m.sampleRate
	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		shapeVal := clampF(m.shapeIn.value(ch, 0), 0, 5)
		c.shape.SetTarget(shapeVal)
		s := clampF(1-c.shape.Step()*0.2, 0.001, 0.999)

		frequency := voctToHz(m.freqIn.value(ch, 0))
		phaseIncrement := frequency * invSampleRate

		integralOld := triangleIntegral(c.phase, s)
		c.phase += phaseIncrement
		if c.phase >= 1 {
			c.phase -= 1
		}
		integralNew := triangleIntegral(c.phase, s)

		var raw float64
		if phaseIncrement > 1e-7 {
			raw = (integralNew - integralOld) / phaseIncrement
		} else {
			raw = naiveTriangle(c.phase, s)
		}
		m.nextOut.Set(ch, raw*5)
	}
}

func (m *saw) Tick() { m.out = m.nextOut }

func (m *saw) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *saw) DispatchMessage(json.RawMessage) error { return nil }
func (m *saw) GetState() json.RawMessage             { return nil }
