package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
	"github.com/cbegin/modularengine/internal/smooth"
)

const sineTableSize = 2048

var sineTable [sineTableSize + 1]float64

func init() {
	for i := range sineTable {
		sineTable[i] = math.Sin(2 * math.Pi * float64(i) / sineTableSize)
	}
}

func lookupSine(phase float64) float64 {
	pos := phase * sineTableSize
	i0 := int(pos) % sineTableSize
	if i0 < 0 {
		i0 += sineTableSize
	}
	frac := pos - math.Floor(pos)
	return sineTable[i0]*(1-frac) + sineTable[i0+1]*frac
}

// sineChannel is one voice's phase accumulator plus its smoothed pitch.
type sineChannel struct {
	phase float64
	freq  *smooth.Value
}

// sine is the "sine" oscillator, grounded on dsp/oscillators/sine.rs:
// a phase accumulator read through a wavetable, with a phase input that
// overrides frequency tracking entirely when connected.
type sine struct {
	id         string
	sampleRate float64

	freqIn  input
	phaseIn input

	channels []sineChannel
	out      poly.Signal
	phaseOut poly.Signal
	nextOut  poly.Signal
	nextPh   poly.Signal
}

func newSine(id string, sampleRate float64) (registry.Module, error) {
	return &sine{id: id, sampleRate: sampleRate}, nil
}

func (m *sine) ID() string   { return m.id }
func (m *sine) Type() string { return "sine" }

type sineParams struct {
	Freq  patchfmt.Param `json:"freq"`
	Phase patchfmt.Param `json:"phase"`
}

func (m *sine) TryUpdateParams(raw json.RawMessage) error {
	var p sineParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.freqIn.param = p.Freq
	m.phaseIn.param = p.Phase
	return nil
}

func (m *sine) Connect(g registry.Graph) {
	m.freqIn.connect(g)
	m.phaseIn.connect(g)
}

func (m *sine) OnPatchUpdate() {}

func (m *sine) Update() {
	n := maxChannels(&m.freqIn, &m.phaseIn)
	if len(m.channels) < n {
		grown := make([]sineChannel, n)
		copy(grown, m.channels)
		for i := len(m.channels); i < n; i++ {
			grown[i].freq = smooth.NewWithTimeConstant(0, 0.003, m.sampleRate)
		}
		m.channels = grown
	}
	m.nextOut.SetChannels(n)
	m.nextPh.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		if m.phaseIn.connected() {
			phase := m.phaseIn.value(ch, 0)
			phase -= math.Floor(phase)
			c.phase = phase
			m.nextOut.Set(ch, lookupSine(c.phase)*5)
		} else {
			freq := clampF(m.freqIn.value(ch, 0), -10, 10)
			c.freq.SetTarget(freq)
			hz := voctToHz(c.freq.Step()) / m.sampleRate
			c.phase += hz
			if c.phase >= 1 {
				c.phase -= math.Floor(c.phase)
			}
			m.nextOut.Set(ch, lookupSine(c.phase)*5)
		}
		m.nextPh.Set(ch, c.phase)
	}
}

func (m *sine) Tick() {
	m.out, m.phaseOut = m.nextOut, m.nextPh
}

func (m *sine) GetPoly(port string) poly.Signal {
	switch port {
	case "output":
		return m.out
	case "phaseOut":
		return m.phaseOut
	default:
		return poly.Signal{}
	}
}

func (m *sine) DispatchMessage(json.RawMessage) error { return nil }
func (m *sine) GetState() json.RawMessage             { return nil }

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
