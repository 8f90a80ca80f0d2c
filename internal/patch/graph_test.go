package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// recordingModule counts lifecycle calls and can look up a sibling by id
// to verify Connect sees the graph's current module set.
type recordingModule struct {
	id             string
	updates, ticks int
	connects       int
	lastLookupOK   bool
	lookupTarget   string
	dispatched     []string
	dispatchErr    error
	value          float64
}

func (m *recordingModule) ID() string   { return m.id }
func (m *recordingModule) Type() string { return "recorder" }
func (m *recordingModule) Update()      { m.updates++ }
func (m *recordingModule) Tick()        { m.ticks++ }
func (m *recordingModule) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.value)
	}
	return poly.Signal{}
}
func (m *recordingModule) TryUpdateParams(json.RawMessage) error { return nil }
func (m *recordingModule) Connect(g registry.Graph) {
	m.connects++
	if m.lookupTarget != "" {
		_, m.lastLookupOK = g.Lookup(m.lookupTarget)
	}
}
func (m *recordingModule) OnPatchUpdate() {}
func (m *recordingModule) DispatchMessage(msg json.RawMessage) error {
	m.dispatched = append(m.dispatched, string(msg))
	return m.dispatchErr
}
func (m *recordingModule) GetState() json.RawMessage { return nil }

func newTestRegistry() *registry.Registry {
	r := registry.New()
	r.Register(RootType, func(id string, sampleRate float64) (registry.Module, error) {
		return &recordingModule{id: id}, nil
	})
	return r
}

func TestNewSeedsReservedRoot(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	root, ok := g.Lookup(RootID)
	require.True(t, ok)
	assert.Equal(t, RootID, root.ID())
}

func TestInsertRejectsDuplicateAndReservedID(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)

	require.NoError(t, g.Insert("osc1", &recordingModule{id: "osc1"}))
	assert.Error(t, g.Insert("osc1", &recordingModule{id: "osc1"}), "duplicate id must be rejected")
	assert.Error(t, g.Insert(RootID, &recordingModule{id: RootID}), "ROOT is reserved")
}

func TestRemoveDetachesAndRefusesRoot(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	require.NoError(t, g.Insert("osc1", &recordingModule{id: "osc1"}))

	removed, ok := g.Remove("osc1")
	require.True(t, ok)
	assert.Equal(t, "osc1", removed.ID())
	_, ok = g.Lookup("osc1")
	assert.False(t, ok)

	_, ok = g.Remove(RootID)
	assert.False(t, ok, "removing ROOT must be refused")
}

func TestRekeyPreservesModuleState(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	m := &recordingModule{id: "osc1", value: 3.5}
	require.NoError(t, g.Insert("osc1", m))

	require.NoError(t, g.Rekey("osc1", "osc1renamed"))
	renamed, ok := g.Lookup("osc1renamed")
	require.True(t, ok)
	assert.Same(t, m, renamed, "the same module instance carries forward under the new id")
	_, ok = g.Lookup("osc1")
	assert.False(t, ok)

	assert.Error(t, g.Rekey("missing", "whatever"))
	assert.Error(t, g.Rekey(RootID, "x"), "cannot remap the reserved root id")
}

func TestConnectReachesEveryModule(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	a := &recordingModule{id: "a", lookupTarget: "b"}
	b := &recordingModule{id: "b"}
	require.NoError(t, g.Insert("a", a))
	require.NoError(t, g.Insert("b", b))

	g.Connect()

	assert.Equal(t, 1, a.connects)
	assert.Equal(t, 1, b.connects)
	assert.True(t, a.lastLookupOK, "Connect must see sibling modules already in the graph")
}

func TestUpdateTickRunEveryModuleOnce(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	a := &recordingModule{id: "a"}
	require.NoError(t, g.Insert("a", a))

	g.Update()
	g.Tick()

	root := g.Root().(*recordingModule)
	assert.Equal(t, 1, root.updates)
	assert.Equal(t, 1, root.ticks)
	assert.Equal(t, 1, a.updates)
	assert.Equal(t, 1, a.ticks)
}

func TestScopeTapsCaptureTickedOutput(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	osc := &recordingModule{id: "osc1", value: 1.25}
	require.NoError(t, g.Insert("osc1", osc))

	g.AddScope(NewScope("tap1", "osc1", "output", 0, 4))
	g.Update()
	g.Tick()

	snap := []float64{0, 0, 0, 1.25}
	scope, ok := g.Scope("tap1")
	require.True(t, ok)
	assert.Equal(t, snap, scope.Snapshot())

	g.RemoveScope("tap1")
	_, ok = g.Scope("tap1")
	assert.False(t, ok)
}

func TestDispatchDeliversToModulesSeenSinceLastOnPatchUpdate(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	a := &recordingModule{id: "a"}
	require.NoError(t, g.Insert("a", a))

	g.OnPatchUpdate()
	err = g.Dispatch(json.RawMessage(`{"hello":true}`))
	require.NoError(t, err)
	require.Len(t, a.dispatched, 1)
	assert.JSONEq(t, `{"hello":true}`, a.dispatched[0])
}

func TestDispatchReportsFirstErrorButStillReachesEveryListener(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	failing := &recordingModule{id: "a", dispatchErr: assert.AnError}
	other := &recordingModule{id: "b"}
	require.NoError(t, g.Insert("a", failing))
	require.NoError(t, g.Insert("b", other))

	g.OnPatchUpdate()
	err = g.Dispatch(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Len(t, other.dispatched, 1, "a failing listener must not stop delivery to the rest")
}

func TestRootOutputReadsRootModule(t *testing.T) {
	g, err := New(newTestRegistry(), 48000, nil)
	require.NoError(t, err)
	g.Root().(*recordingModule).value = 2.0
	g.Update()
	g.Tick()
	assert.Equal(t, 2.0, g.RootOutput().GetCycling(0))
}
