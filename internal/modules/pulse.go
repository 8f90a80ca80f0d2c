package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
	"github.com/cbegin/modularengine/internal/smooth"
)

// polyBlepPulse is the PolyBLEP correction term applied at a pulse
// discontinuity, grounded verbatim on dsp/oscillators/pulse.rs.
func polyBlepPulse(phase, phaseIncrement float64) float64 {
	switch {
	case phase < phaseIncrement:
		t := phase / phaseIncrement
		return t + t - t*t - 1
	case phase > 1-phaseIncrement:
		t := (phase - 1) / phaseIncrement
		return t*t + t + t + 1
	default:
		return 0
	}
}

type pulseChannel struct {
	phase float64
	width *smooth.Value
}

// pulse is "$pulse": a band-limited pulse/square oscillator with pulse
// width modulation.
type pulse struct {
	id         string
	sampleRate float64

	freqIn  input
	widthIn input
	pwmIn   input

	channels []pulseChannel
	out      poly.Signal
	nextOut  poly.Signal
}

func newPulse(id string, sampleRate float64) (registry.Module, error) {
	return &pulse{id: id, sampleRate: sampleRate}, nil
}

func (m *pulse) ID() string   { return m.id }
func (m *pulse) Type() string { return "$pulse" }

type pulseParams struct {
	Freq  patchfmt.Param `json:"freq"`
	Width patchfmt.Param `json:"width"`
	PWM   patchfmt.Param `json:"pwm"`
}

func (m *pulse) TryUpdateParams(raw json.RawMessage) error {
	var p pulseParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.freqIn.param = p.Freq
	m.widthIn.param = p.Width
	m.pwmIn.param = p.PWM
	return nil
}

func (m *pulse) Connect(g registry.Graph) {
	m.freqIn.connect(g)
	m.widthIn.connect(g)
	m.pwmIn.connect(g)
}

func (m *pulse) OnPatchUpdate() {}

func (m *pulse) Update() {
	n := maxChannels(&m.freqIn, &m.widthIn, &m.pwmIn)
	if len(m.channels) < n {
		grown := make([]pulseChannel, n)
		copy(grown, m.channels)
		for i := len(m.channels); i < n; i++ {
			grown[i].width = smooth.New(2.5, 1)
		}
		m.channels = grown
	}
	m.nextOut.SetChannels(n)

	for ch := 0; ch < n; ch++ {
		c := &m.channels[ch]
		baseWidth := m.widthIn.value(ch, 2.5)
		pwm := m.pwmIn.value(ch, 0)
		c.width.SetTarget(clampF(baseWidth+pwm, 0, 5))

		frequency := voctToHz(m.freqIn.value(ch, 0))
		phaseIncrement := frequency / m.sampleRate

		pulseWidth := clampF(c.width.Step()/5, 0.01, 0.99)

		c.phase += phaseIncrement
		if c.phase >= 1 {
			c.phase -= 1
		}

		naive := 1.0
		if c.phase >= pulseWidth {
			naive = -1.0
		}
		naive += polyBlepPulse(c.phase, phaseIncrement)
		fallPhase := c.phase - pulseWidth
		if fallPhase < 0 {
			fallPhase += 1
		}
		naive -= polyBlepPulse(fallPhase, phaseIncrement)

		m.nextOut.Set(ch, naive*5)
	}
}

func (m *pulse) Tick() { m.out = m.nextOut }

func (m *pulse) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *pulse) DispatchMessage(json.RawMessage) error { return nil }
func (m *pulse) GetState() json.RawMessage             { return nil }
