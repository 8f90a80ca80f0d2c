package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

func computeBandpassBiquad(centerVOct, resonance, sampleRate float64) biquadCoeffs {
	freq := voctToHz(centerVOct)
	freq = clampF(freq, 20, sampleRate*0.45)

	omega := 2 * math.Pi * freq / sampleRate
	sinw, cosw := math.Sin(omega), math.Cos(omega)
	q := math.Max(resonance/5*9+0.5, 0.5)
	alpha := sinw / (2 * q)

	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// bandpass is "bpf": a 12dB/octave bandpass, grounded on
// dsp/filters/bandpass.rs.
type bandpass struct {
	id         string
	sampleRate float64

	inputIn, centerIn, resonanceIn input

	channels []biquadChannel
	out      poly.Signal
	nextOut  poly.Signal
}

func newBandpass(id string, sampleRate float64) (registry.Module, error) {
	return &bandpass{id: id, sampleRate: sampleRate}, nil
}

func (m *bandpass) ID() string   { return m.id }
func (m *bandpass) Type() string { return "bpf" }

type bandpassParams struct {
	Input     patchfmt.Param `json:"input"`
	Center    patchfmt.Param `json:"center"`
	Resonance patchfmt.Param `json:"resonance"`
}

func (m *bandpass) TryUpdateParams(raw json.RawMessage) error {
	var p bandpassParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.centerIn.param = p.Center
	m.resonanceIn.param = p.Resonance
	return nil
}

func (m *bandpass) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.centerIn.connect(g)
	m.resonanceIn.connect(g)
}

func (m *bandpass) OnPatchUpdate() {}

func (m *bandpass) Update() {
	n := maxChannels(&m.inputIn, &m.centerIn, &m.resonanceIn)
	if len(m.channels) < n {
		m.channels = append(m.channels, make([]biquadChannel, n-len(m.channels))...)
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		center := m.centerIn.value(ch, 4)
		resonance := m.resonanceIn.value(ch, 1)
		if changed(center, c.lastA) || changed(resonance, c.lastB) {
			c.coeffs = computeBandpassBiquad(center, resonance, m.sampleRate)
			c.lastA, c.lastB = center, resonance
		}

		in := m.inputIn.value(ch, 0)
		w := in - c.coeffs.a1*c.z1 - c.coeffs.a2*c.z2
		y := c.coeffs.b0*w + c.coeffs.b1*c.z1 + c.coeffs.b2*c.z2
		c.z2, c.z1 = c.z1, w
		m.nextOut.Set(ch, y)
	}
}

func (m *bandpass) Tick() { m.out = m.nextOut }

func (m *bandpass) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *bandpass) DispatchMessage(json.RawMessage) error { return nil }
func (m *bandpass) GetState() json.RawMessage             { return nil }
