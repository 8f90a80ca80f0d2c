package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

type schmittState int

const (
	schmittUninitialized schmittState = iota
	schmittLow
	schmittHigh
)

// schmittTriggerFSM is the comparator-with-hysteresis state machine
// grounded on dsp/utilities/schmitt_trigger.rs.
type schmittTriggerFSM struct {
	state                 schmittState
	lowThresh, highThresh float64
}

func (t *schmittTriggerFSM) setThresholds(low, high float64) {
	t.lowThresh, t.highThresh = low, high
}

func (t *schmittTriggerFSM) process(input float64) schmittState {
	switch t.state {
	case schmittUninitialized:
		if input >= t.highThresh {
			t.state = schmittHigh
		} else {
			t.state = schmittLow
		}
	case schmittLow:
		if input >= t.highThresh {
			t.state = schmittHigh
		}
	case schmittHigh:
		if input <= t.lowThresh {
			t.state = schmittLow
		}
	}
	return t.state
}

// schmittModule is "schmittTrigger": outputs 5V once input rises above
// highThreshold, 0V once it falls below lowThreshold, holding in between.
type schmittModule struct {
	id string

	inputIn, lowIn, highIn input
	trigger                schmittTriggerFSM

	out, nextOut float64
}

func newSchmittTrigger(id string, sampleRate float64) (registry.Module, error) {
	return &schmittModule{id: id}, nil
}

func (m *schmittModule) ID() string   { return m.id }
func (m *schmittModule) Type() string { return "schmittTrigger" }

type schmittParams struct {
	Input         patchfmt.Param `json:"input"`
	LowThreshold  patchfmt.Param `json:"low_threshold"`
	HighThreshold patchfmt.Param `json:"high_threshold"`
}

func (m *schmittModule) TryUpdateParams(raw json.RawMessage) error {
	var p schmittParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.inputIn.param = p.Input
	m.lowIn.param = p.LowThreshold
	m.highIn.param = p.HighThreshold
	return nil
}

func (m *schmittModule) Connect(g registry.Graph) {
	m.inputIn.connect(g)
	m.lowIn.connect(g)
	m.highIn.connect(g)
}

func (m *schmittModule) OnPatchUpdate() {}

func (m *schmittModule) Update() {
	input := m.inputIn.value(0, 0)
	low := m.lowIn.value(0, -1)
	high := m.highIn.value(0, 1)

	m.trigger.setThresholds(low, high)
	switch m.trigger.process(input) {
	case schmittHigh:
		m.nextOut = 5
	default:
		m.nextOut = 0
	}
}

func (m *schmittModule) Tick() { m.out = m.nextOut }

func (m *schmittModule) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.out)
	}
	return poly.Signal{}
}

func (m *schmittModule) DispatchMessage(json.RawMessage) error { return nil }
func (m *schmittModule) GetState() json.RawMessage             { return nil }
