// Package diff implements the diff engine (C4): given the previous and
// next declarative patch descriptions, it computes the minimal
// PatchUpdate the audio thread needs to apply, pre-constructing any new
// modules off the audio thread (construction may allocate, e.g. a
// wavetable LUT).
package diff

import (
	"fmt"

	"github.com/cbegin/modularengine/internal/engine"
	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/registry"
)

// Diff computes the PatchUpdate to move from prev to next, given reg for
// constructing new module instances and sampleRate for the engine. prev
// may be nil (first patch ever applied). Diff is pure and runs entirely
// on the control thread; it never touches the live graph.
func Diff(reg *registry.Registry, prev, next *patchfmt.Description, sampleRate float64) (*engine.PatchUpdate, error) {
	if next == nil {
		return nil, fmt.Errorf("diff: next patch description is nil")
	}

	prevByID := indexModules(prev)
	nextByID := indexModules(next)

	update := &engine.PatchUpdate{SampleRate: sampleRate}

	// Remaps are applied first so a renamed module is matched against
	// its *new* id for the remaining steps, letting it carry its live
	// state forward instead of being torn down and reinserted.
	remapped := map[string]string{} // newID -> oldID, for prevByID lookups below
	if next != nil {
		for _, r := range next.ModuleIDRemaps {
			if _, ok := prevByID[r.OldID]; !ok {
				return nil, fmt.Errorf("diff: remap source %q not found in previous patch", r.OldID)
			}
			update.Remaps = append(update.Remaps, engine.Remap{OldID: r.OldID, NewID: r.NewID})
			remapped[r.NewID] = r.OldID
		}
	}

	effectivePrev := map[string]patchfmt.ModuleDesc{}
	for id, m := range prevByID {
		effectivePrev[id] = m
	}
	for newID, oldID := range remapped {
		if m, ok := effectivePrev[oldID]; ok {
			delete(effectivePrev, oldID)
			effectivePrev[newID] = m
		}
	}

	for id, nm := range nextByID {
		if !reg.Has(nm.ModuleType) {
			return nil, fmt.Errorf("diff: unknown module type %q for module %q", nm.ModuleType, id)
		}
		pm, existed := effectivePrev[id]
		switch {
		case !existed:
			mod, err := reg.Construct(nm.ModuleType, id, sampleRate)
			if err != nil {
				return nil, fmt.Errorf("diff: constructing %q: %w", id, err)
			}
			update.Inserts = append(update.Inserts, engine.Insert{ID: id, Module: mod})
			update.ParamUpdates = append(update.ParamUpdates, engine.ParamUpdate{ModuleID: id, Params: nm.Params})
		case pm.ModuleType != nm.ModuleType:
			// A type change can't be expressed as a param update; treat
			// as remove+insert.
			update.Removes = append(update.Removes, id)
			mod, err := reg.Construct(nm.ModuleType, id, sampleRate)
			if err != nil {
				return nil, fmt.Errorf("diff: constructing %q: %w", id, err)
			}
			update.Inserts = append(update.Inserts, engine.Insert{ID: id, Module: mod})
			update.ParamUpdates = append(update.ParamUpdates, engine.ParamUpdate{ModuleID: id, Params: nm.Params})
		default:
			update.ParamUpdates = append(update.ParamUpdates, engine.ParamUpdate{ModuleID: id, Params: nm.Params})
		}
	}

	// Implicit removals: keys(prev) \ keys(next after remap).
	for id := range effectivePrev {
		if _, ok := nextByID[id]; !ok {
			update.Removes = append(update.Removes, id)
		}
	}

	diffScopes(prev, next, update)

	return update, nil
}

func indexModules(d *patchfmt.Description) map[string]patchfmt.ModuleDesc {
	out := map[string]patchfmt.ModuleDesc{}
	if d == nil {
		return out
	}
	for _, m := range d.Modules {
		out[m.ID] = m
	}
	return out
}

func diffScopes(prev, next *patchfmt.Description, update *engine.PatchUpdate) {
	prevScopes := map[string]patchfmt.ScopeDesc{}
	if prev != nil {
		for _, s := range prev.Scopes {
			prevScopes[s.ID] = s
		}
	}
	nextScopes := map[string]patchfmt.ScopeDesc{}
	if next != nil {
		for _, s := range next.Scopes {
			nextScopes[s.ID] = s
		}
	}
	for id, s := range nextScopes {
		ps, existed := prevScopes[id]
		switch {
		case !existed:
			update.ScopeAdds = append(update.ScopeAdds, engine.ScopeAdd{ID: s.ID, Module: s.Module, Port: s.Port, Channel: s.Channel, Size: s.Size})
		case ps != s:
			update.ScopeUpdates = append(update.ScopeUpdates, engine.ScopeUpdate{ID: s.ID, Module: s.Module, Port: s.Port, Channel: s.Channel})
		}
	}
	for id := range prevScopes {
		if _, ok := nextScopes[id]; !ok {
			update.ScopeRemoves = append(update.ScopeRemoves, id)
		}
	}
}
