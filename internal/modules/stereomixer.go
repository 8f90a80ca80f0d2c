package modules

import (
	"encoding/json"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
	"github.com/cbegin/modularengine/internal/smooth"
)

// stereoMixer is "stereoMixer": mixes a polyphonic input down to a
// 2-channel stereo signal with per-voice equal-power panning and an
// auto-spread "width" control, grounded on dsp/core/stereo_mixer.rs.
type stereoMixer struct {
	id         string
	sampleRate float64

	inputIn, panIn, widthIn input

	pans    []*smooth.Value
	out     poly.Signal
	nextOut poly.Signal
}

func newStereoMixer(id string, sampleRate float64) (registry.Module, error) {
	return &stereoMixer{id: id, sampleRate: sampleRate}, nil
}

func (m *stereoMixer) ID() string   { return m.id }
func (m *stereoMixer) Type() string { return "stereoMixer" }

type stereoMixerParams struct {
	Input patchfmt.Param `json:"input"`
	Pan   patchfmt.Param `json:"pan"`
	Width patchfmt.Param `json:"width"`
}

func (m *stereoMixer) TryUpdateParams(raw json.RawMessage) error {
	var p stereoMixerParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.panIn.param = p.Pan
	m.widthIn.param = p.Width
	return nil
}

func (m *stereoMixer) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.panIn.connect(g)
	m.widthIn.connect(g)
}

func (m *stereoMixer) OnPatchUpdate() {}

func (m *stereoMixer) Update() {
	inputChannels := m.inputIn.channels()
	if !m.inputIn.connected() {
		inputChannels = 0
	}
	if len(m.pans) < inputChannels {
		for i := len(m.pans); i < inputChannels; i++ {
			m.pans = append(m.pans, smooth.NewWithTimeConstant(0, 0.003, m.sampleRate))
		}
	}
	m.nextOut.SetChannels(2)

	width := clampF(m.widthIn.value(0, 0), 0, 5)

	var left, right float64
	for ch := 0; ch < inputChannels; ch++ {
		in := m.inputIn.value(ch, 0)
		basePan := clampF(m.panIn.value(ch, 0), -5, 5)

		spreadOffset := 0.0
		if inputChannels > 1 {
			voicePos := float64(ch) / float64(inputChannels-1)
			spreadOffset = (voicePos - 0.5) * 2 * width
		}
		finalPan := clampF(basePan+spreadOffset, -5, 5)

		m.pans[ch].SetTarget(finalPan)
		pan := m.pans[ch].Step()
		panNorm := (pan + 5) / 10

		leftGain := math.Sqrt(1 - panNorm)
		rightGain := math.Sqrt(panNorm)

		left += in * leftGain
		right += in * rightGain
	}

	m.nextOut.Set(0, left)
	m.nextOut.Set(1, right)
}

func (m *stereoMixer) Tick() { m.out = m.nextOut }

func (m *stereoMixer) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *stereoMixer) DispatchMessage(json.RawMessage) error { return nil }
func (m *stereoMixer) GetState() json.RawMessage             { return nil }
