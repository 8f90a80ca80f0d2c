package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cbegin/modularengine/internal/registry"
)

// Remap is an old-id to new-id rename applied before insert/remove, so a
// module keeps its live state under a new id instead of being rebuilt.
type Remap struct {
	OldID string
	NewID string
}

// ParamUpdate is one module's new parameter JSON plus its declared
// channel count (used by §4.4 step 4).
type ParamUpdate struct {
	ModuleID     string
	Params       json.RawMessage
	ChannelCount int
}

// Insert pairs an id with an already-constructed module (construction —
// which may allocate — runs on the control thread per §4.4).
type Insert struct {
	ID     string
	Module registry.Module
}

// ScopeAdd requests a new scope tap.
type ScopeAdd struct {
	ID      string
	Module  string
	Port    string
	Channel int
	Size    int
}

// ScopeUpdate changes an existing scope's tap target.
type ScopeUpdate struct {
	ID      string
	Module  string
	Port    string
	Channel int
}

// PatchUpdate is the minimal change set the diff engine (C4) computes
// between two declarative patch descriptions, applied atomically by the
// audio callback driver in the order remap -> insert -> remove -> param
// -> connect -> hook -> scope (§4.4, §5).
type PatchUpdate struct {
	Remaps       []Remap
	Inserts      []Insert
	Removes      []string
	ParamUpdates []ParamUpdate
	ScopeAdds    []ScopeAdd
	ScopeRemoves []string
	ScopeUpdates []ScopeUpdate
	SampleRate   float64
}

// IsEmpty reports whether applying this update would be a no-op.
func (p *PatchUpdate) IsEmpty() bool {
	return p == nil ||
		(len(p.Remaps) == 0 && len(p.Inserts) == 0 && len(p.Removes) == 0 &&
			len(p.ParamUpdates) == 0 && len(p.ScopeAdds) == 0 &&
			len(p.ScopeRemoves) == 0 && len(p.ScopeUpdates) == 0)
}

// SingleParamUpdate is the fast path for a slider change: it bypasses
// connection re-resolution and calls TryUpdateParams only (§4.5).
type SingleParamUpdate struct {
	ModuleID string
	Params   json.RawMessage
}

// DispatchMessage is an out-of-band message delivered to every listening
// module (sequencers, transport listeners).
type DispatchMessage struct {
	Payload json.RawMessage
}

// Start, Stop and ClearPatch are the remaining command kinds named in
// §4.5's commands table; they carry no payload.
type (
	Start       struct{}
	Stop        struct{}
	ClearPatch  struct{}
)

// Command is the sum type pushed through the command queue. Exactly one
// field is set.
type Command struct {
	PatchUpdate       *PatchUpdate
	SingleParamUpdate *SingleParamUpdate
	DispatchMessage   *DispatchMessage
	Start             *Start
	Stop              *Stop
	ClearPatch        *ClearPatch
}

// AudioErrorKind enumerates the §4.5 error-queue payload kinds.
type AudioErrorKind int

const (
	ParamUpdateFailed AudioErrorKind = iota
	MessageDispatchFailed
	ModuleNotFound
	PatchProcessingError
)

// AudioError is what the audio thread reports on the error queue when an
// apply-time, recoverable failure occurs (§7.2).
type AudioError struct {
	Kind     AudioErrorKind
	ModuleID string
	Message  string
}

func (e AudioError) Error() string {
	switch e.Kind {
	case ParamUpdateFailed:
		return fmt.Sprintf("param update failed for %q: %s", e.ModuleID, e.Message)
	case MessageDispatchFailed:
		return fmt.Sprintf("message dispatch failed: %s", e.Message)
	case ModuleNotFound:
		return fmt.Sprintf("module %q not found", e.ModuleID)
	case PatchProcessingError:
		return fmt.Sprintf("patch processing error: %s", e.Message)
	default:
		return e.Message
	}
}

// GarbageItem is an owned module removed from the graph, handed to the
// control thread so its teardown never runs on the audio thread.
type GarbageItem struct {
	ID     string
	Module registry.Module
}
