package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

type envStage int

const (
	envAttack envStage = iota
	envDecay
	envSustain
	envRelease
	envIdle
)

// envelope is "adsr": a standalone attack/decay/sustain/release envelope
// driven by a gate input, generalized from the teacher's per-voice
// envelope state machine (internal/chiptune/engine.go's advanceEnv) into
// a graph leaf any patch can route a gate through.
type envelope struct {
	id         string
	sampleRate float64

	gateIn                       input
	attackIn, decayIn, sustainIn input
	releaseIn                    input

	stage    envStage
	level    float64
	lastGate float64

	out, nextOut float64
}

func newEnvelope(id string, sampleRate float64) (registry.Module, error) {
	return &envelope{id: id, sampleRate: sampleRate, stage: envIdle}, nil
}

func (m *envelope) ID() string   { return m.id }
func (m *envelope) Type() string { return "adsr" }

type envelopeParams struct {
	Gate    patchfmt.Param `json:"gate"`
	Attack  patchfmt.Param `json:"attack"`
	Decay   patchfmt.Param `json:"decay"`
	Sustain patchfmt.Param `json:"sustain"`
	Release patchfmt.Param `json:"release"`
}

func (m *envelope) TryUpdateParams(raw json.RawMessage) error {
	var p envelopeParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.gateIn.param = p.Gate
	m.attackIn.param = p.Attack
	m.decayIn.param = p.Decay
	m.sustainIn.param = p.Sustain
	m.releaseIn.param = p.Release
	return nil
}

func (m *envelope) Connect(g registry.Graph) {
	m.gateIn.connect(g)
	m.attackIn.connect(g)
	m.decayIn.connect(g)
	m.sustainIn.connect(g)
	m.releaseIn.connect(g)
}

func (m *envelope) OnPatchUpdate() {}

func (m *envelope) Update() {
	gate := m.gateIn.value(0, 0)
	attackSec := posOr(m.attackIn.value(0, 0.01), 0.001)
	decaySec := posOr(m.decayIn.value(0, 0.1), 0.001)
	sustainLvl := clampF(m.sustainIn.value(0, 0.7), 0, 1)
	releaseSec := posOr(m.releaseIn.value(0, 0.2), 0.001)

	if gate > 2.5 && m.lastGate <= 2.5 {
		m.stage = envAttack
	} else if gate <= 2.5 && m.lastGate > 2.5 && m.stage != envIdle {
		m.stage = envRelease
	}
	m.lastGate = gate

	switch m.stage {
	case envAttack:
		m.level += 1.0 / (attackSec * m.sampleRate)
		if m.level >= 1 {
			m.level = 1
			m.stage = envDecay
		}
	case envDecay:
		m.level -= (1 - sustainLvl) / (decaySec * m.sampleRate)
		if m.level <= sustainLvl {
			m.level = sustainLvl
			m.stage = envSustain
		}
	case envSustain:
		m.level = sustainLvl
	case envRelease:
		m.level -= sustainLvl / (releaseSec * m.sampleRate)
		if m.level <= 0.0001 {
			m.level = 0
			m.stage = envIdle
		}
	case envIdle:
		m.level = 0
	}

	m.nextOut = m.level * 5
}

func posOr(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}

func (m *envelope) Tick() { m.out = m.nextOut }

func (m *envelope) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.out)
	}
	return poly.Signal{}
}

func (m *envelope) DispatchMessage(json.RawMessage) error { return nil }
func (m *envelope) GetState() json.RawMessage             { return nil }
