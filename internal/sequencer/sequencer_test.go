package sequencer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// fakePlayhead is a minimal registry.Module standing in for a CV source
// driving the sequencer's playhead, so tests can set an arbitrary cycle
// position without building a full patch graph.
type fakePlayhead struct {
	value float64
}

func (f *fakePlayhead) ID() string                           { return "playhead" }
func (f *fakePlayhead) Type() string                          { return "stub" }
func (f *fakePlayhead) Update()                               {}
func (f *fakePlayhead) Tick()                                 {}
func (f *fakePlayhead) GetPoly(string) poly.Signal            { return poly.Mono(f.value) }
func (f *fakePlayhead) TryUpdateParams(json.RawMessage) error { return nil }
func (f *fakePlayhead) Connect(registry.Graph)                {}
func (f *fakePlayhead) OnPatchUpdate()                        {}
func (f *fakePlayhead) DispatchMessage(json.RawMessage) error { return nil }
func (f *fakePlayhead) GetState() json.RawMessage             { return nil }

type fakeGraph struct {
	modules map[string]registry.Module
}

func (g fakeGraph) Lookup(id string) (registry.Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// recordingTarget stands in for a routed module, capturing every hap
// delivered to it via RouteTarget.
type recordingTarget struct {
	fakePlayhead
	received []routedHap
}

type routedHap struct {
	cv   float64
	trig bool
}

func (r *recordingTarget) ReceiveRoute(cv float64, trig bool) {
	r.received = append(r.received, routedHap{cv: cv, trig: trig})
}

func newSequencer(t *testing.T, patternSrc, lift string) (*Module, *fakePlayhead) {
	t.Helper()
	mod, err := New("seq1", 48000)
	require.NoError(t, err)
	ph := &fakePlayhead{}
	params, err := json.Marshal(moduleParams{
		Pattern:  patternSrc,
		Lift:     lift,
		Playhead: &patchfmt.CableRef{Module: "playhead", Port: "out"},
	})
	require.NoError(t, err)
	require.NoError(t, mod.TryUpdateParams(params))
	m := mod.(*Module)
	m.Connect(fakeGraph{modules: map[string]registry.Module{"playhead": ph}})
	return m, ph
}

func TestSequencerGateFollowsHapsAndRests(t *testing.T) {
	m, ph := newSequencer(t, "1 ~ 2 3", "number")

	ph.value = 0.1 // first quarter: value 1
	m.Update()
	m.Tick()
	assert.Equal(t, 1.0, m.outCV)
	assert.Equal(t, gateHigh, m.outGate)

	ph.value = 0.3 // second quarter: rest
	m.Update()
	m.Tick()
	assert.Equal(t, 0.0, m.outGate)

	ph.value = 0.6 // third quarter: value 2
	m.Update()
	m.Tick()
	assert.Equal(t, 2.0, m.outCV)
	assert.Equal(t, gateHigh, m.outGate)
}

func TestSequencerTrigPulsesOnNewHap(t *testing.T) {
	m, ph := newSequencer(t, "1 2 3 4", "number")

	ph.value = 0.0
	m.Update()
	m.Tick()
	require.Equal(t, trigHigh, m.outTrig)

	for i := 0; i < trigSamples+1; i++ {
		m.Update()
		m.Tick()
	}
	assert.Equal(t, 0.0, m.outTrig)

	ph.value = 0.26 // crosses into the next quarter's hap
	m.Update()
	m.Tick()
	assert.Equal(t, trigHigh, m.outTrig)
}

func TestSequencerNoteLiftMapsLetters(t *testing.T) {
	m, ph := newSequencer(t, "c4 e4 g4", "note")
	ph.value = 0.01
	m.Update()
	m.Tick()
	assert.InDelta(t, 0.0, m.outCV, 1e-9) // c4 is the V/Oct reference zero
}

func TestSequencerBadPatternKeepsPreviousCompile(t *testing.T) {
	m, _ := newSequencer(t, "1 2 3", "number")
	badParams, err := json.Marshal(moduleParams{Pattern: "[unterminated", Lift: "number"})
	require.NoError(t, err)
	err = m.TryUpdateParams(badParams)
	assert.Error(t, err)
	assert.Equal(t, "1 2 3", m.patternSrc)
}

func TestSequencerGetStateReportsPatternAndRoute(t *testing.T) {
	mod, err := New("seq1", 48000)
	require.NoError(t, err)
	m := mod.(*Module)
	params, err := json.Marshal(moduleParams{Pattern: "1 2 3 4", Lift: "number", Route: "drum1"})
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(params))

	var state struct {
		Pattern string `json:"pattern"`
		Route   string `json:"route"`
	}
	require.NoError(t, json.Unmarshal(m.GetState(), &state))
	assert.Equal(t, "1 2 3 4", state.Pattern)
	assert.Equal(t, "drum1", state.Route)
}

func TestSequencerRouteDeliversOnsetsToTargetModule(t *testing.T) {
	mod, err := New("seq1", 48000)
	require.NoError(t, err)
	m := mod.(*Module)
	ph := &fakePlayhead{}
	target := &recordingTarget{}
	params, err := json.Marshal(moduleParams{
		Pattern:  "1 2",
		Lift:     "number",
		Route:    "drum1",
		Playhead: &patchfmt.CableRef{Module: "playhead", Port: "out"},
	})
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(params))
	m.Connect(fakeGraph{modules: map[string]registry.Module{"playhead": ph, "drum1": target}})

	ph.value = 0.0
	m.Update()
	m.Tick()
	require.Len(t, target.received, 1)
	assert.Equal(t, 1.0, target.received[0].cv)
	assert.True(t, target.received[0].trig)

	// Holding inside the same hap's span must not re-fire the route.
	m.Update()
	m.Tick()
	assert.Len(t, target.received, 1)

	ph.value = 0.6 // next hap
	m.Update()
	m.Tick()
	assert.Len(t, target.received, 2)
}

func TestSequencerRouteSkipsRestOnsets(t *testing.T) {
	mod, err := New("seq1", 48000)
	require.NoError(t, err)
	m := mod.(*Module)
	ph := &fakePlayhead{}
	target := &recordingTarget{}
	params, err := json.Marshal(moduleParams{
		Pattern:  "~ 1",
		Lift:     "number",
		Route:    "drum1",
		Playhead: &patchfmt.CableRef{Module: "playhead", Port: "out"},
	})
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(params))
	m.Connect(fakeGraph{modules: map[string]registry.Module{"playhead": ph, "drum1": target}})

	ph.value = 0.1 // first half: a rest
	m.Update()
	m.Tick()
	assert.Empty(t, target.received, "a rest onset must not dispatch a route message")
}
