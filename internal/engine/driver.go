package engine

import (
	"time"

	"github.com/cbegin/modularengine/internal/health"
	"github.com/cbegin/modularengine/internal/patch"
)

// voltageScale converts the ±5V modular convention to the device's
// normalized -1..+1 range (§4.6 step 3c, §6 "Voltage conventions").
const voltageScale = 1.0 / 5.0

// MaxCommandsPerCallback bounds how many queued commands a single
// callback drains, capping the worst-case latency the drain itself can
// add to the callback (§4.6 step 1, §5 "back-pressure on structural
// changes, never on audio").
const MaxCommandsPerCallback = 64

// Recorder is the narrow interface the driver tees completed frames
// into when a recording sink (C10) is attached. internal/record
// implements it; defined here (rather than imported) so engine does not
// depend on record's writer-thread plumbing.
type Recorder interface {
	Write(frame []float32)
}

// Driver is the audio callback driver (C6): it owns the running graph
// exclusively from the audio thread's point of view, drains commands at
// the start of every buffer, and runs the per-sample update/tick passes.
type Driver struct {
	Graph *patch.Graph

	cmds    *CommandQueue
	errs    *ErrorQueue
	garbage *GarbageQueue
	health  *health.Counters

	running bool

	// garbageSideList holds modules that could not be pushed to the
	// garbage queue because it was full; retried every callback. Never
	// freed here — per §4.5 a module is "never freed on the audio
	// thread", so this just defers the handoff.
	garbageSideList []GarbageItem

	recorder Recorder
}

// NewDriver wires a graph to its command/error/garbage queues and health
// counters. Construction runs on the control thread before the audio
// stream starts.
func NewDriver(g *patch.Graph, cmds *CommandQueue, errs *ErrorQueue, garbage *GarbageQueue, h *health.Counters) *Driver {
	return &Driver{Graph: g, cmds: cmds, errs: errs, garbage: garbage, health: h}
}

// SetRecorder attaches or detaches (nil) a recording sink.
func (d *Driver) SetRecorder(r Recorder) { d.recorder = r }

// Callback is the host's audio callback entry point: out is an
// interleaved buffer of frames*deviceChannels samples. It must never
// allocate, lock, or block.
func (d *Driver) Callback(out []float32, frames, deviceChannels int) {
	start := time.Now()

	drained := d.drainCommands()
	d.retryGarbageSideList()

	if !d.running {
		for i := range out {
			out[i] = 0
		}
		d.health.RecordDrainDepth(drained)
		d.health.RecordCallback(time.Since(start))
		return
	}

	for f := 0; f < frames; f++ {
		d.Graph.Update()
		d.Graph.Tick()

		root := d.Graph.RootOutput()
		base := f * deviceChannels
		for ch := 0; ch < deviceChannels; ch++ {
			v := float32(root.GetCycling(ch) * voltageScale)
			out[base+ch] = v
		}
		if d.recorder != nil {
			d.recorder.Write(out[base : base+deviceChannels])
		}
	}

	d.health.SetModuleCount(len(d.Graph.Modules()))
	d.health.RecordDrainDepth(drained)
	d.health.RecordCallback(time.Since(start))
}

// drainCommands applies up to MaxCommandsPerCallback queued commands and
// returns how many it drained.
func (d *Driver) drainCommands() int {
	n := 0
	for n < MaxCommandsPerCallback {
		cmd, ok := d.cmds.TryPop()
		if !ok {
			break
		}
		d.apply(cmd)
		n++
	}
	return n
}

func (d *Driver) apply(cmd Command) {
	switch {
	case cmd.PatchUpdate != nil:
		d.applyPatchUpdate(cmd.PatchUpdate)
	case cmd.SingleParamUpdate != nil:
		d.applySingleParamUpdate(cmd.SingleParamUpdate)
	case cmd.DispatchMessage != nil:
		if err := d.Graph.Dispatch(cmd.DispatchMessage.Payload); err != nil {
			d.pushError(AudioError{Kind: MessageDispatchFailed, Message: err.Error()})
		}
	case cmd.Start != nil:
		d.running = true
	case cmd.Stop != nil:
		d.running = false
	case cmd.ClearPatch != nil:
		d.clearPatch()
	}
}

// applyPatchUpdate runs the seven-step order from §4.4: remap, insert,
// remove, param, connect, hook, scope. A failure in the param step does
// not stop steps 5-7 from running.
func (d *Driver) applyPatchUpdate(u *PatchUpdate) {
	for _, r := range u.Remaps {
		if err := d.Graph.Rekey(r.OldID, r.NewID); err != nil {
			d.pushError(AudioError{Kind: PatchProcessingError, Message: err.Error()})
		}
	}
	for _, ins := range u.Inserts {
		if err := d.Graph.Insert(ins.ID, ins.Module); err != nil {
			d.pushError(AudioError{Kind: PatchProcessingError, ModuleID: ins.ID, Message: err.Error()})
		}
	}
	for _, id := range u.Removes {
		if m, ok := d.Graph.Remove(id); ok {
			d.toGarbage(GarbageItem{ID: id, Module: m})
		}
	}
	for _, pu := range u.ParamUpdates {
		m, ok := d.Graph.Lookup(pu.ModuleID)
		if !ok {
			d.pushError(AudioError{Kind: ModuleNotFound, ModuleID: pu.ModuleID})
			continue
		}
		if err := m.TryUpdateParams(pu.Params); err != nil {
			d.pushError(AudioError{Kind: ParamUpdateFailed, ModuleID: pu.ModuleID, Message: err.Error()})
		}
	}
	d.Graph.Connect()
	d.Graph.OnPatchUpdate()
	for _, s := range u.ScopeAdds {
		d.Graph.AddScope(patch.NewScope(s.ID, s.Module, s.Port, s.Channel, s.Size))
	}
	for _, id := range u.ScopeRemoves {
		d.Graph.RemoveScope(id)
	}
	for _, su := range u.ScopeUpdates {
		if existing, ok := d.Graph.Scope(su.ID); ok {
			d.Graph.RemoveScope(su.ID)
			d.Graph.AddScope(patch.NewScope(su.ID, su.Module, su.Port, su.Channel, len(existing.Snapshot())))
		}
	}
}

func (d *Driver) applySingleParamUpdate(u *SingleParamUpdate) {
	m, ok := d.Graph.Lookup(u.ModuleID)
	if !ok {
		d.pushError(AudioError{Kind: ModuleNotFound, ModuleID: u.ModuleID})
		return
	}
	if err := m.TryUpdateParams(u.Params); err != nil {
		d.pushError(AudioError{Kind: ParamUpdateFailed, ModuleID: u.ModuleID, Message: err.Error()})
	}
}

func (d *Driver) clearPatch() {
	for _, m := range d.Graph.Modules() {
		if m.ID() == d.Graph.Root().ID() {
			continue
		}
		if removed, ok := d.Graph.Remove(m.ID()); ok {
			d.toGarbage(GarbageItem{ID: removed.ID(), Module: removed})
		}
	}
	d.Graph.Connect()
	d.Graph.OnPatchUpdate()
}

// toGarbage pushes item to the garbage queue, falling back to the
// audio-side side-list if the queue is momentarily full (§4.5, §4.10).
func (d *Driver) toGarbage(item GarbageItem) {
	if !d.garbage.Push(item) {
		d.garbageSideList = append(d.garbageSideList, item)
	}
}

// retryGarbageSideList attempts to flush any deferred garbage before
// doing anything else this callback.
func (d *Driver) retryGarbageSideList() {
	if len(d.garbageSideList) == 0 {
		return
	}
	kept := d.garbageSideList[:0]
	for _, item := range d.garbageSideList {
		if !d.garbage.Push(item) {
			kept = append(kept, item)
		}
	}
	d.garbageSideList = kept
}

// pushError forwards err to the error queue, dropping the newest error
// on overflow per §4.10, and records it in the health snapshot so it
// shows up even if the control thread never drains the error queue.
func (d *Driver) pushError(err AudioError) {
	d.errs.Push(err)
	d.health.RecordError(err.Message)
}
