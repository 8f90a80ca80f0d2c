package modules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// stubGraph satisfies registry.Graph with no modules, for leaves whose
// inputs are left as bare constants (never resolved to a cable) in
// these tests.
type stubGraph struct{}

func (stubGraph) Lookup(string) (registry.Module, bool) { return nil, false }

// sourceGraph resolves exactly one cable target by id, for tests that
// need an input's connected() to report true.
type sourceGraph struct {
	id string
	v  poly.Signal
}

func (g sourceGraph) Lookup(id string) (registry.Module, bool) {
	if id != g.id {
		return nil, false
	}
	return &constSource{v: g.v}, true
}

type constSource struct{ v poly.Signal }

func (s *constSource) ID() string                           { return "src" }
func (s *constSource) Type() string                          { return "signal" }
func (s *constSource) Update()                               {}
func (s *constSource) Tick()                                 {}
func (s *constSource) GetPoly(string) poly.Signal            { return s.v }
func (s *constSource) TryUpdateParams(json.RawMessage) error { return nil }
func (s *constSource) Connect(registry.Graph)                {}
func (s *constSource) OnPatchUpdate()                        {}
func (s *constSource) DispatchMessage(json.RawMessage) error { return nil }
func (s *constSource) GetState() json.RawMessage             { return nil }

func step(m registry.Module) {
	m.Update()
	m.Tick()
}

func TestSineTracksFrequencyAndWrapsPhase(t *testing.T) {
	m, err := newSine("osc1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"freq": 0}`)))
	m.Connect(stubGraph{})

	// 0 V/Oct tracks to C4 (about 261.6 Hz); a few thousand samples must complete at
	// least one full phase wrap without ever seeing an out-of-range
	// sample.
	for i := 0; i < 4000; i++ {
		step(m)
		out := m.GetPoly("output").GetCycling(0)
		assert.GreaterOrEqual(t, out, -5.0001)
		assert.LessOrEqual(t, out, 5.0001)
	}
}

func TestSinePhaseInputOverridesFrequency(t *testing.T) {
	m, err := newSine("osc1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"freq": 5}`)))
	sm := m.(*sine)
	sm.phaseIn.param = patchfmt.Param{Cable: &patchfmt.CableRef{Module: "src", Port: "output"}}
	m.Connect(sourceGraph{id: "src", v: poly.Mono(0.25)})
	step(m)
	assert.InDelta(t, 0.25, m.GetPoly("phaseOut").GetCycling(0), 1e-9)
	assert.InDelta(t, lookupSine(0.25)*5, m.GetPoly("output").GetCycling(0), 1e-9)
}

func TestClampAppliesIndependentMinMax(t *testing.T) {
	m, err := newClamp("c1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": 10, "min": -1, "max": 2}`)))
	m.Connect(stubGraph{})
	step(m)
	assert.Equal(t, 2.0, m.GetPoly("output").GetCycling(0))
}

func TestClampWithOnlyMinSetLeavesUpperUnbounded(t *testing.T) {
	m, err := newClamp("c1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": 100, "min": -1}`)))
	m.Connect(stubGraph{})
	step(m)
	assert.Equal(t, 100.0, m.GetPoly("output").GetCycling(0))
}

func TestSchmittTriggerHysteresis(t *testing.T) {
	m, err := newSchmittTrigger("st1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": 0, "low_threshold": -1, "high_threshold": 1}`)))
	m.Connect(stubGraph{})

	step(m)
	assert.Equal(t, 0.0, m.GetPoly("output").GetCycling(0), "starts low since 0 < high threshold")

	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": 1.5, "low_threshold": -1, "high_threshold": 1}`)))
	step(m)
	assert.Equal(t, 5.0, m.GetPoly("output").GetCycling(0), "rises above high threshold")

	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": 0, "low_threshold": -1, "high_threshold": 1}`)))
	step(m)
	assert.Equal(t, 5.0, m.GetPoly("output").GetCycling(0), "stays high inside the hysteresis band")

	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"input": -1.5, "low_threshold": -1, "high_threshold": 1}`)))
	step(m)
	assert.Equal(t, 0.0, m.GetPoly("output").GetCycling(0), "falls below low threshold")
}

func TestEnvelopeAttackDecaySustainRelease(t *testing.T) {
	m, err := newEnvelope("env1", 1000) // 1kHz so attack/decay/release settle in a handful of samples
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(
		`{"gate": 5, "attack": 0.001, "decay": 0.001, "sustain": 0.5, "release": 0.001}`)))
	m.Connect(stubGraph{})

	var peak float64
	for i := 0; i < 50; i++ {
		step(m)
		if v := m.GetPoly("output").GetCycling(0); v > peak {
			peak = v
		}
	}
	assert.InDelta(t, 5.0, peak, 0.01, "attack should reach full scale")

	var afterDecay float64
	for i := 0; i < 50; i++ {
		step(m)
		afterDecay = m.GetPoly("output").GetCycling(0)
	}
	assert.InDelta(t, 2.5, afterDecay, 0.05, "should settle at the sustain level (0.5 * 5V)")

	require.NoError(t, m.TryUpdateParams(json.RawMessage(
		`{"gate": 0, "attack": 0.001, "decay": 0.001, "sustain": 0.5, "release": 0.001}`)))
	for i := 0; i < 50; i++ {
		step(m)
	}
	assert.InDelta(t, 0.0, m.GetPoly("output").GetCycling(0), 0.01, "release should decay to zero")
}

func TestBreakpointTableInterpolatesAndHoldsEnds(t *testing.T) {
	m, err := newBreakpointTable("bp1", 100)
	require.NoError(t, err)
	raw, err := json.Marshal(breakpointParams{
		Points: []breakpoint{{Time: 0, Value: 0}, {Time: 1, Value: 2}},
		Loop:   false,
	})
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(raw))
	m.Connect(stubGraph{})

	bt := m.(*BreakpointTable)
	assert.Equal(t, 0.0, bt.sampleAt(-1), "holds first value before the table starts")
	assert.InDelta(t, 1.0, bt.sampleAt(0.5), 1e-9, "linearly interpolates midway")
	assert.Equal(t, 2.0, bt.sampleAt(5), "holds last value past the table's end")
}

func TestBreakpointTableTrigResetsElapsed(t *testing.T) {
	m, err := newBreakpointTable("bp1", 100)
	require.NoError(t, err)
	raw, err := json.Marshal(breakpointParams{
		Points: []breakpoint{{Time: 0, Value: 0}, {Time: 1, Value: 10}},
	})
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(raw))
	m.Connect(stubGraph{})

	bt := m.(*BreakpointTable)
	for i := 0; i < 60; i++ {
		step(bt)
	}
	assert.Greater(t, bt.elapsed, 0.0)

	require.NoError(t, m.TryUpdateParams(json.RawMessage(`{"points":[{"time":0,"value":0},{"time":1,"value":10}],"trig":5}`)))
	step(bt)
	assert.Less(t, bt.elapsed, 0.02, "a rising trig edge resets elapsed back near zero")
}

func TestMixerSumsWeightedInputs(t *testing.T) {
	m, err := newMixer("mix1", 48000)
	require.NoError(t, err)
	require.NoError(t, m.TryUpdateParams(json.RawMessage(
		`{"inputs": [1, 2, 3], "levels": [1, 0.5, 1]}`)))
	m.Connect(stubGraph{})
	step(m)
	assert.InDelta(t, 1+1+3, m.GetPoly("output").GetCycling(0), 1e-9)
}
