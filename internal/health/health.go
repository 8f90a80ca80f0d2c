// Package health holds the audio-thread-side counters the control
// thread samples to monitor the running engine: callback duration,
// underrun count, queue drain depth, and the last reported error.
//
// Every field is single-writer (audio) / single-reader (control) and
// uses the same atomic bit-pattern trick as the teacher's EQ5Band for
// lock-free access from either side.
package health

import (
	"sync/atomic"
	"time"
)

// Counters is partly reset on each read by the control thread: Read
// clears the worst-callback and drain-depth watermarks and the last
// error. The last-callback duration, the underrun total and the module
// count are not reset by Read.
type Counters struct {
	lastCallbackNanos atomic.Int64
	worstCallbackNanos atomic.Int64
	underrunCount      atomic.Uint64
	maxDrainDepth      atomic.Int64
	moduleCount        atomic.Int64
	lastError          atomic.Pointer[string]
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }

// RecordCallback records one audio callback's duration and updates the
// worst-case watermark. Called only from the audio thread.
func (c *Counters) RecordCallback(d time.Duration) {
	n := d.Nanoseconds()
	c.lastCallbackNanos.Store(n)
	for {
		worst := c.worstCallbackNanos.Load()
		if n <= worst {
			break
		}
		if c.worstCallbackNanos.CompareAndSwap(worst, n) {
			break
		}
	}
}

// RecordUnderrun increments the underrun counter.
func (c *Counters) RecordUnderrun() { c.underrunCount.Add(1) }

// RecordDrainDepth records how many commands one callback drained,
// keeping the maximum observed.
func (c *Counters) RecordDrainDepth(n int) {
	for {
		cur := c.maxDrainDepth.Load()
		if int64(n) <= cur {
			break
		}
		if c.maxDrainDepth.CompareAndSwap(cur, int64(n)) {
			break
		}
	}
}

// SetModuleCount records the current graph size.
func (c *Counters) SetModuleCount(n int) { c.moduleCount.Store(int64(n)) }

// RecordError stashes the most recent error message the audio thread
// pushed onto the error queue so Snapshot can report it once.
func (c *Counters) RecordError(msg string) { c.lastError.Store(&msg) }

// Snapshot is the control thread's reset-on-read view.
type Snapshot struct {
	LastCallback  time.Duration
	WorstCallback time.Duration
	Underruns     uint64
	MaxDrainDepth int
	ModuleCount   int
	LastError     string
}

// Read returns the current counters and resets the watermark/error
// fields (not the monotonically-useful module count or total
// underruns, which the caller tracks cumulatively).
func (c *Counters) Read() Snapshot {
	s := Snapshot{
		LastCallback:  time.Duration(c.lastCallbackNanos.Load()),
		WorstCallback: time.Duration(c.worstCallbackNanos.Swap(0)),
		Underruns:     c.underrunCount.Load(),
		MaxDrainDepth: int(c.maxDrainDepth.Swap(0)),
		ModuleCount:   int(c.moduleCount.Load()),
	}
	if p := c.lastError.Swap(nil); p != nil {
		s.LastError = *p
	}
	return s
}
