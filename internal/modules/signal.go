package modules

import (
	"encoding/json"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// signalPassthrough is "signal": a polyphonic passthrough, grounded on
// dsp/core/signal.rs. It's the type constructed for the patch graph's
// reserved ROOT id (internal/patch.RootType) as well as any ordinary
// patch cable-merge point a user wires up explicitly.
type signalPassthrough struct {
	id string

	sourceIn     input
	out, nextOut poly.Signal
}

func newSignal(id string, sampleRate float64) (registry.Module, error) {
	return &signalPassthrough{id: id}, nil
}

func (m *signalPassthrough) ID() string   { return m.id }
func (m *signalPassthrough) Type() string { return "signal" }

type signalParams struct {
	Source patchfmt.Param `json:"source"`
}

func (m *signalPassthrough) TryUpdateParams(raw json.RawMessage) error {
	var p signalParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	m.sourceIn.param = p.Source
	return nil
}

func (m *signalPassthrough) Connect(g registry.Graph) { m.sourceIn.connect(g) }
func (m *signalPassthrough) OnPatchUpdate()           {}

func (m *signalPassthrough) Update() {
	n := m.sourceIn.channels()
	if !m.sourceIn.connected() {
		n = 0
	}
	m.nextOut.SetChannels(n)
	for ch := 0; ch < n; ch++ {
		m.nextOut.Set(ch, m.sourceIn.value(ch, 0))
	}
}

func (m *signalPassthrough) Tick() { m.out = m.nextOut }

func (m *signalPassthrough) GetPoly(port string) poly.Signal {
	if port == "output" {
		return m.out
	}
	return poly.Signal{}
}

func (m *signalPassthrough) DispatchMessage(json.RawMessage) error { return nil }
func (m *signalPassthrough) GetState() json.RawMessage             { return nil }
