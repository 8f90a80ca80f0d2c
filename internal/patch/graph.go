// Package patch implements the running patch graph: the owning
// collection of live modules keyed by stable string id, the reserved
// ROOT sink, scope taps, and the connect/on_patch_update passes that run
// after every structural change.
package patch

import (
	"encoding/json"
	"fmt"

	"github.com/cbegin/modularengine/internal/health"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// RootID is the reserved id of the master audio sink, required to exist
// for the lifetime of a patch.
const RootID = "ROOT"

// RootType is the module type constructed for RootID.
const RootType = "signal"

// Scope is a non-intrusive tap copying a module's output channel into a
// control-thread-visible ring buffer, single-writer (audio) /
// single-reader (control).
type Scope struct {
	ID      string
	Module  string
	Port    string
	Channel int
	buf     []float64
	pos     int
}

// NewScope allocates a scope with the given ring size. Allocation only
// ever happens on the control thread (during a patch update's step 7),
// never on the audio thread.
func NewScope(id, module, port string, channel, size int) *Scope {
	if size < 1 {
		size = 1
	}
	return &Scope{ID: id, Module: module, Port: port, Channel: channel, buf: make([]float64, size)}
}

// Push records one sample into the ring. Called from the audio thread.
func (s *Scope) Push(v float64) {
	s.buf[s.pos] = v
	s.pos = (s.pos + 1) % len(s.buf)
}

// Snapshot returns a frozen, oldest-first copy of the ring. Called from
// the control thread; the copy means concurrent audio writes never tear
// the reader's view.
func (s *Scope) Snapshot() []float64 {
	out := make([]float64, len(s.buf))
	copy(out, s.buf[s.pos:])
	copy(out[len(s.buf)-s.pos:], s.buf[:s.pos])
	return out
}

// Graph owns the live modules of a running patch, keyed by id. It is
// uniquely owned by the audio thread while running; the control thread
// never reads the live graph directly (it keeps its own shadow
// declarative description for diffing — see internal/diff).
type Graph struct {
	modules map[string]registry.Module
	order   []string // insertion order; iteration order is immaterial to
	// correctness per the update/tick invariant, but kept stable across
	// frames so scope/health output doesn't jitter cosmetically.
	scopes   map[string]*Scope
	health   *health.Counters
	listened []registry.Module // modules that accept DispatchMessage
}

// New constructs an empty graph already containing the reserved ROOT
// module, built from reg. Returns an error only if the registry has no
// "signal" type registered — a fatal configuration error per §7.5.
func New(reg *registry.Registry, sampleRate float64, h *health.Counters) (*Graph, error) {
	root, err := reg.Construct(RootType, RootID, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("patch: constructing root module: %w", err)
	}
	g := &Graph{
		modules: map[string]registry.Module{RootID: root},
		order:   []string{RootID},
		scopes:  make(map[string]*Scope),
		health:  h,
	}
	return g, nil
}

// Lookup implements registry.Graph for modules' Connect calls.
func (g *Graph) Lookup(id string) (registry.Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Insert adds a freshly constructed module under id. Inserting a
// duplicate id is an invariant violation (§3: id is unique within the
// patch) and is fatal per §7.5.
func (g *Graph) Insert(id string, m registry.Module) error {
	if id == RootID {
		return fmt.Errorf("patch: %q is reserved for the root module", RootID)
	}
	if _, exists := g.modules[id]; exists {
		return fmt.Errorf("patch: duplicate module id %q", id)
	}
	g.modules[id] = m
	g.order = append(g.order, id)
	return nil
}

// Remove detaches id from the graph and returns the removed module so
// the caller can hand it to the garbage queue. Removing ROOT is refused.
func (g *Graph) Remove(id string) (registry.Module, bool) {
	if id == RootID {
		return nil, false
	}
	m, ok := g.modules[id]
	if !ok {
		return nil, false
	}
	delete(g.modules, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return m, true
}

// Rekey applies a module id remap in place, used by the diff engine's
// remap step before insert/remove so an existing module keeps its state
// under a new id instead of being torn down and rebuilt.
func (g *Graph) Rekey(oldID, newID string) error {
	if oldID == RootID || newID == RootID {
		return fmt.Errorf("patch: cannot remap the reserved root id")
	}
	m, ok := g.modules[oldID]
	if !ok {
		return fmt.Errorf("patch: remap source %q not found", oldID)
	}
	if _, exists := g.modules[newID]; exists {
		return fmt.Errorf("patch: remap target %q already exists", newID)
	}
	delete(g.modules, oldID)
	g.modules[newID] = m
	for i, oid := range g.order {
		if oid == oldID {
			g.order[i] = newID
			break
		}
	}
	return nil
}

// Root returns the reserved root module.
func (g *Graph) Root() registry.Module { return g.modules[RootID] }

// Modules returns the graph's modules in stable iteration order.
func (g *Graph) Modules() []registry.Module {
	out := make([]registry.Module, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.modules[id])
	}
	return out
}

// Connect calls Connect(g) on every module, refreshing cable targets
// against the current id set. A dangling target is the module's own
// responsibility to treat as disconnected; Connect itself never fails.
// This runs from the audio callback's patch-apply path (driver.go's
// applyPatchUpdate/clearPatch), so — like OnPatchUpdate below — it stays
// a plain sequential loop: no goroutine spawns, no allocation.
func (g *Graph) Connect() {
	for _, id := range g.order {
		g.modules[id].Connect(g)
	}
}

// OnPatchUpdate calls OnPatchUpdate on every module after Connect,
// letting modules (e.g. sequencers) rebuild derived indexes.
func (g *Graph) OnPatchUpdate() {
	g.listened = g.listened[:0]
	for _, id := range g.order {
		m := g.modules[id]
		m.OnPatchUpdate()
		g.listened = append(g.listened, m)
	}
}

// Update runs the update pass across every module, in iteration order.
func (g *Graph) Update() {
	for _, id := range g.order {
		g.modules[id].Update()
	}
}

// Tick runs the tick pass across every module, in iteration order, then
// copies the tapped sample of every active scope.
func (g *Graph) Tick() {
	for _, id := range g.order {
		g.modules[id].Tick()
	}
	for _, s := range g.scopes {
		m, ok := g.modules[s.Module]
		if !ok {
			continue
		}
		s.Push(m.GetPoly(s.Port).GetCycling(s.Channel))
	}
}

// RootOutput reads the root module's single output port.
func (g *Graph) RootOutput() poly.Signal {
	return g.Root().GetPoly("output")
}

// AddScope registers a new scope tap.
func (g *Graph) AddScope(s *Scope) { g.scopes[s.ID] = s }

// RemoveScope unregisters a scope tap by id.
func (g *Graph) RemoveScope(id string) { delete(g.scopes, id) }

// Scope returns a scope by id for snapshotting from the control thread.
func (g *Graph) Scope(id string) (*Scope, bool) {
	s, ok := g.scopes[id]
	return s, ok
}

// Dispatch delivers msg to every module that wants it, recording the
// first failure (if any) so the caller can surface it on the error
// queue; dispatch to the remaining listeners still proceeds.
func (g *Graph) Dispatch(msg json.RawMessage) error {
	var first error
	for _, m := range g.listened {
		if err := m.DispatchMessage(msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
