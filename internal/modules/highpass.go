package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

func computeHighpassBiquad(cutoffVOct, resonance, sampleRate float64) biquadCoeffs {
	freq := voctToHz(cutoffVOct)
	freq = clampF(freq, 20, sampleRate*0.45)

	omega := 2 * math.Pi * freq / sampleRate
	sinw, cosw := math.Sin(omega), math.Cos(omega)
	q := math.Max(resonance/5*9+0.5, 0.5)
	alpha := sinw / (2 * q)

	b0 := (1 + cosw) / 2
	b1 := -(1 + cosw)
	b2 := (1 + cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// highpass is "$hpf": a 12dB/octave resonant highpass, grounded on
// dsp/filters/highpass.rs.
type highpass struct {
	id         string
	sampleRate float64

	inputIn, cutoffIn, resonanceIn input

	channels []biquadChannel
	out      poly.Signal
	nextOut  poly.Signal
}

func newHighpass(id string, sampleRate float64) (registry.Module, error) {
	return &highpass{id: id, sampleRate: sampleRate}, nil
}

func (m *highpass) ID() string   { return m.id }
func (m *highpass) Type() string { return "$hpf" }

func (m *highpass) TryUpdateParams(raw json.RawMessage) error {
	var p biquadParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.cutoffIn.param = p.Cutoff
	m.resonanceIn.param = p.Resonance
	return nil
}

func (m *highpass) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.cutoffIn.connect(g)
	m.resonanceIn.connect(g)
}

func (m *highpass) OnPatchUpdate() {}

func (m *highpass) Update() {
	n := maxChannels(&m.inputIn, &m.cutoffIn, &m.resonanceIn)
	if len(m.channels) < n {
		m.channels = append(m.channels, make([]biquadChannel, n-len(m.channels))...)
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		cutoff := m.cutoffIn.value(ch, 4)
		resonance := m.resonanceIn.value(ch, 0)
		if changed(cutoff, c.lastA) || changed(resonance, c.lastB) {
			c.coeffs = computeHighpassBiquad(cutoff, resonance, m.sampleRate)
			c.lastA, c.lastB = cutoff, resonance
		}

		in := m.inputIn.value(ch, 0)
		w := in - c.coeffs.a1*c.z1 - c.coeffs.a2*c.z2
		y := c.coeffs.b0*w + c.coeffs.b1*c.z1 + c.coeffs.b2*c.z2
		c.z2, c.z1 = c.z1, w
		m.nextOut.Set(ch, y)
	}
}

func (m *highpass) Tick() { m.out = m.nextOut }

func (m *highpass) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *highpass) DispatchMessage(json.RawMessage) error { return nil }
func (m *highpass) GetState() json.RawMessage             { return nil }
