package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// noiseColor selects the output coloring of the noise module, grounded
// on dsp/oscillators/noise.rs's NoiseKind enum.
type noiseColor int

const (
	noiseWhite noiseColor = iota
	noisePink
	noiseBrown
)

func parseNoiseColor(s string) noiseColor {
	switch s {
	case "pink":
		return noisePink
	case "brown":
		return noiseBrown
	default:
		return noiseWhite
	}
}

// lcgRNG is the original's 64-bit linear congruential generator, ported
// bit-for-bit so output is reproducible across a run for a fixed seed.
type lcgRNG struct {
	state uint64
}

func (r *lcgRNG) next() float64 {
	r.state = r.state*6364136223846793005 + 1
	bits := uint32(r.state >> 32)
	value := float64(bits) / float64(^uint32(0))
	return value*2 - 1
}

// pinkFilter is the Paul Kellet pink noise filter, ported verbatim from
// dsp/oscillators/noise.rs's PinkFilter.
type pinkFilter struct {
	b0, b1, b2, b3, b4, b5, b6 float64
}

func (p *pinkFilter) process(white float64) float64 {
	p.b0 = 0.99886*p.b0 + white*0.0555179
	p.b1 = 0.99332*p.b1 + white*0.0750759
	p.b2 = 0.96900*p.b2 + white*0.1538520
	p.b3 = 0.86650*p.b3 + white*0.3104856
	p.b4 = 0.55000*p.b4 + white*0.5329522
	p.b5 = -0.7616*p.b5 - white*0.0168980
	p.b6 = white * 0.5362

	pink := p.b0 + p.b1 + p.b2 + p.b3 + p.b4 + p.b5 + p.b6 + white*0.115926
	return clampF(pink*0.11, -1, 1)
}

func (p *pinkFilter) reset() { *p = pinkFilter{} }

// noise is the "noise" generator: selectable white/pink/brown coloring.
type noise struct {
	id string

	color        noiseColor
	lastColor    noiseColor
	generator    lcgRNG
	pink         pinkFilter
	brownState   float64
	out, nextOut poly.Signal
}

func newNoise(id string, sampleRate float64) (registry.Module, error) {
	return &noise{id: id, generator: lcgRNG{state: 0x12345678_9abcdef0}}, nil
}

func (m *noise) ID() string   { return m.id }
func (m *noise) Type() string { return "noise" }

type noiseParams struct {
	Color string `json:"color"`
}

func (m *noise) TryUpdateParams(raw json.RawMessage) error {
	var p noiseParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.color = parseNoiseColor(p.Color)
	return nil
}

func (m *noise) Connect(registry.Graph) {}
func (m *noise) OnPatchUpdate()          {}

func (m *noise) Update() {
	if m.color != m.lastColor {
		m.lastColor = m.color
		m.pink.reset()
		m.brownState = 0
	}

	white := m.generator.next()
	var colored float64
	switch m.color {
	case noisePink:
		colored = m.pink.process(white)
	case noiseBrown:
		m.brownState = clampF(m.brownState+white*0.02, -1, 1)
		colored = m.brownState
	default:
		colored = white
	}

	m.nextOut = poly.Mono(clampF(colored, -1, 1) * 5)
}

func (m *noise) Tick() { m.out = m.nextOut }

func (m *noise) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *noise) DispatchMessage(json.RawMessage) error { return nil }
func (m *noise) GetState() json.RawMessage             { return nil }
