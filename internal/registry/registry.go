// Package registry defines the uniform Module contract every DSP leaf
// obeys and the process-wide type-name to constructor lookup used to
// build modules from a declarative patch description.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/cbegin/modularengine/internal/poly"
)

// Graph is the narrow view of the patch graph that a module needs during
// connect: lookup a sibling module by id. Modules never see more than
// this; the patch package implements it.
type Graph interface {
	Lookup(id string) (Module, bool)
}

// Module is the uniform interface every DSP leaf implements. The audio
// thread calls Update/Tick every sample; the control thread (via the
// command queue) calls the rest during a patch update.
type Module interface {
	// ID returns this module's stable, immutable id.
	ID() string
	// Type returns the registry type name this module was constructed from.
	Type() string

	// Update computes the module's next value from current inputs into an
	// internal staging slot. Must not allocate. Inputs are read from the
	// producing module's previous Tick via GetPoly.
	Update()
	// Tick publishes the staging slot computed by Update to the module's
	// public output, making it visible to consumers on the next Update.
	Tick()

	// GetPoly returns the current published signal on the named output
	// port. An unknown port returns the zero Signal (disconnected).
	GetPoly(port string) poly.Signal

	// TryUpdateParams validates and applies a new parameter set. On
	// failure the module must retain its previous parameters.
	TryUpdateParams(params json.RawMessage) error

	// Connect resolves any cable-valued parameters against the graph by
	// id lookup. Called after every structural patch update. Must be
	// idempotent and tolerate dangling targets (treat as disconnected).
	Connect(g Graph)

	// OnPatchUpdate runs after Connect across the whole graph, letting a
	// module precompute derived state (e.g. rebuild a listener index).
	OnPatchUpdate()

	// DispatchMessage delivers an out-of-band control message (used by
	// sequencers and transport listeners). Modules that don't listen
	// return nil.
	DispatchMessage(msg json.RawMessage) error

	// GetState returns an optional JSON snapshot of module state, or nil
	// if the module has nothing worth snapshotting.
	GetState() json.RawMessage
}

// Constructor builds a fresh Module instance given its id and the
// engine's sample rate. Construction runs on the control thread, where
// allocation (e.g. a wavetable LUT) is allowed.
type Constructor func(id string, sampleRate float64) (Module, error)

// Registry is a process-wide, append-only type-name to Constructor map.
// It must be fully populated (via Register, typically from package
// init() functions) before any engine starts; lookups are never guarded
// by a mutex, matching §9's "no locking needed on lookup paths".
type Registry struct {
	constructors map[string]Constructor
}

// New returns an empty Registry. Use Default for the process-wide
// instance populated by internal/modules.
func New() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a constructor under typeName. Calling Register twice for
// the same type name is a programming error and panics, since the
// registry is meant to be assembled once at program start from a fixed
// set of init() functions, not merged at runtime.
func (r *Registry) Register(typeName string, ctor Constructor) {
	if _, exists := r.constructors[typeName]; exists {
		panic(fmt.Sprintf("registry: duplicate module type %q", typeName))
	}
	r.constructors[typeName] = ctor
}

// Construct builds a module of the given type, or returns an error if
// typeName is unregistered. This is the "unknown module type in diff"
// failure site from §4.10: it must run on the control thread, before any
// command is enqueued.
func (r *Registry) Construct(typeName, id string, sampleRate float64) (Module, error) {
	ctor, ok := r.constructors[typeName]
	if !ok {
		return nil, fmt.Errorf("registry: unknown module type %q", typeName)
	}
	return ctor(id, sampleRate)
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	_, ok := r.constructors[typeName]
	return ok
}

// Default is the process-wide registry populated by internal/modules'
// init() functions before any engine is constructed.
var Default = New()
