package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// sampleAndHold is "sah": samples input on a trigger's rising edge,
// grounded on dsp/utilities/sample_and_hold.rs.
type sampleAndHold struct {
	id string

	inputIn, triggerIn input

	lastTrigger float64
	held        float64
	out         float64
	nextOut     float64
}

func newSampleAndHold(id string, sampleRate float64) (registry.Module, error) {
	return &sampleAndHold{id: id}, nil
}

func (m *sampleAndHold) ID() string   { return m.id }
func (m *sampleAndHold) Type() string { return "sah" }

type sahParams struct {
	Input   patchfmt.Param `json:"input"`
	Trigger patchfmt.Param `json:"trigger"`
}

func (m *sampleAndHold) TryUpdateParams(raw json.RawMessage) error {
	var p sahParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.triggerIn.param = p.Trigger
	return nil
}

func (m *sampleAndHold) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.triggerIn.connect(g)
}

func (m *sampleAndHold) OnPatchUpdate() {}

func (m *sampleAndHold) Update() {
	in := m.inputIn.value(0, 0)
	trig := m.triggerIn.value(0, 0)

	if trig > 0.1 && m.lastTrigger <= 0.1 {
		m.held = in
	}
	m.lastTrigger = trig
	m.nextOut = m.held
}

func (m *sampleAndHold) Tick() { m.out = m.nextOut }

func (m *sampleAndHold) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.out)
	}
	return poly.Signal{}
}

func (m *sampleAndHold) DispatchMessage(json.RawMessage) error { return nil }
func (m *sampleAndHold) GetState() json.RawMessage             { return nil }

// trackAndHold is "tah": tracks input while gate is high, holds the last
// value tracked before the gate fell while gate is low, grounded on
// dsp/utilities/sample_and_hold.rs's TrackAndHold.
type trackAndHold struct {
	id string

	inputIn, gateIn input

	lastGate float64
	held     float64
	out      float64
	nextOut  float64
}

func newTrackAndHold(id string, sampleRate float64) (registry.Module, error) {
	return &trackAndHold{id: id}, nil
}

func (m *trackAndHold) ID() string   { return m.id }
func (m *trackAndHold) Type() string { return "tah" }

type tahParams struct {
	Input patchfmt.Param `json:"input"`
	Gate  patchfmt.Param `json:"gate"`
}

func (m *trackAndHold) TryUpdateParams(raw json.RawMessage) error {
	var p tahParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.gateIn.param = p.Gate
	return nil
}

func (m *trackAndHold) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.gateIn.connect(g)
}

func (m *trackAndHold) OnPatchUpdate() {}

func (m *trackAndHold) Update() {
	in := m.inputIn.value(0, 0)
	gate := m.gateIn.value(0, 0)

	if gate > 2.5 {
		m.held = in
		m.nextOut = m.held
	} else {
		// Gate low: keep tracking input internally so the next rising
		// edge's held value is fresh, but the published output freezes
		// at whatever it last was while the gate was high.
		m.held = in
		m.nextOut = m.out
	}
	m.lastGate = gate
}

func (m *trackAndHold) Tick() { m.out = m.nextOut }

func (m *trackAndHold) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.out)
	}
	return poly.Signal{}
}

func (m *trackAndHold) DispatchMessage(json.RawMessage) error { return nil }
func (m *trackAndHold) GetState() json.RawMessage             { return nil }
