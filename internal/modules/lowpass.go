package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// biquadCoeffs is a direct-form-II biquad's five coefficients, shared by
// lowpass/highpass/bandpass, all three ported from the original's
// separate (near-identical) BiquadCoeffs types.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

func computeLowpassBiquad(cutoffVOct, resonance, sampleRate float64) biquadCoeffs {
	freq := 55.0 * math.Exp2(cutoffVOct)
	freq = clampF(freq, 20, sampleRate*0.45)

	omega := 2 * math.Pi * freq / sampleRate
	sinw, cosw := math.Sin(omega), math.Cos(omega)
	q := math.Max(resonance/5*9+0.5, 0.5)
	alpha := sinw / (2 * q)

	b0 := (1 - cosw) / 2
	b1 := 1 - cosw
	b2 := (1 - cosw) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

type biquadChannel struct {
	z1, z2       float64
	coeffs       biquadCoeffs
	lastA, lastB float64
}

// lowpass is "lpf": a 12dB/octave resonant lowpass, grounded on
// dsp/filters/lowpass.rs.
type lowpass struct {
	id         string
	sampleRate float64

	inputIn, cutoffIn, resonanceIn input

	channels []biquadChannel
	out      poly.Signal
	nextOut  poly.Signal
}

func newLowpass(id string, sampleRate float64) (registry.Module, error) {
	return &lowpass{id: id, sampleRate: sampleRate}, nil
}

func (m *lowpass) ID() string   { return m.id }
func (m *lowpass) Type() string { return "lpf" }

type biquadParams struct {
	Input     patchfmt.Param `json:"input"`
	Cutoff    patchfmt.Param `json:"cutoff"`
	Resonance patchfmt.Param `json:"resonance"`
}

func (m *lowpass) TryUpdateParams(raw json.RawMessage) error {
	var p biquadParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.cutoffIn.param = p.Cutoff
	m.resonanceIn.param = p.Resonance
	return nil
}

func (m *lowpass) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.cutoffIn.connect(g)
	m.resonanceIn.connect(g)
}

func (m *lowpass) OnPatchUpdate() {}

func (m *lowpass) Update() {
	n := maxChannels(&m.inputIn, &m.cutoffIn, &m.resonanceIn)
	if len(m.channels) < n {
		m.channels = append(m.channels, make([]biquadChannel, n-len(m.channels))...)
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		cutoff := m.cutoffIn.value(ch, 0)
		resonance := m.resonanceIn.value(ch, 0)
		if changed(cutoff, c.lastA) || changed(resonance, c.lastB) {
			c.coeffs = computeLowpassBiquad(cutoff, resonance, m.sampleRate)
			c.lastA, c.lastB = cutoff, resonance
		}

		in := m.inputIn.value(ch, 0)
		w := in - c.coeffs.a1*c.z1 - c.coeffs.a2*c.z2
		y := c.coeffs.b0*w + c.coeffs.b1*c.z1 + c.coeffs.b2*c.z2
		c.z2, c.z1 = c.z1, w
		m.nextOut.Set(ch, y)
	}
}

func (m *lowpass) Tick() { m.out = m.nextOut }

func (m *lowpass) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *lowpass) DispatchMessage(json.RawMessage) error { return nil }
func (m *lowpass) GetState() json.RawMessage             { return nil }
