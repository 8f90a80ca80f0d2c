package engine

import (
	"github.com/cbegin/modularengine/internal/health"
	"github.com/cbegin/modularengine/internal/patch"
)

// Control is the control thread's handle onto a running engine: the
// command queue to push into, plus the drain side of the error and
// garbage queues. It never touches the live graph directly (§5:
// "control thread holds a parallel shadow copy... it does not read the
// live graph").
type Control struct {
	Commands *CommandQueue
	Errors   *ErrorQueue
	Garbage  *GarbageQueue
	Health   *health.Counters
}

// Wire builds the three queues and health counters shared between a
// Control handle and the Driver that will run g on the audio thread.
func Wire(g *patch.Graph) (*Control, *Driver) {
	cmds := NewCommandQueue()
	errs := NewErrorQueue()
	garbage := NewGarbageQueue()
	h := health.New()
	c := &Control{Commands: cmds, Errors: errs, Garbage: garbage, Health: h}
	d := NewDriver(g, cmds, errs, garbage, h)
	return c, d
}

// DrainErrors pops every currently-queued error without blocking.
func (c *Control) DrainErrors() []AudioError {
	var out []AudioError
	for {
		e, ok := c.Errors.TryPop()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// DrainGarbage pops every currently-queued garbage item without
// blocking, running the control thread's teardown of each (Go's GC does
// the actual free; this just drops the last reference off the audio
// path).
func (c *Control) DrainGarbage() int {
	n := 0
	for {
		_, ok := c.Garbage.TryPop()
		if !ok {
			break
		}
		n++
	}
	return n
}

// Send pushes a command, matching §4.10's "blocks briefly or batches;
// never silently drops": a false return means the queue stayed full
// through the bounded retry and the caller should retry later.
func (c *Control) Send(cmd Command) bool {
	return c.Commands.Push(cmd)
}
