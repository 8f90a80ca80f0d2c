// Package modules implements the leaf DSP modules every patch is built
// from (C2's registered types): oscillators, filters, utilities, and the
// root signal sink. Each leaf mirrors the original_source dsp/ module it
// was ported from, restated against registry.Module instead of the
// original's napi/serde scaffolding.
package modules

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// input is a module's one cable-or-constant parameter: a patchfmt.Param
// (cable reference or scalar) resolved, at Connect time, against the
// live graph into the poly.Signal it currently reads. Every leaf module
// embeds one input per port instead of hand-rolling cable resolution.
type input struct {
	param patchfmt.Param
	sig   poly.Signal
}

func (in *input) connect(g registry.Graph) {
	if !in.param.IsCable() {
		in.sig = poly.Signal{}
		return
	}
	src, ok := g.Lookup(in.param.Cable.Module)
	if !ok {
		in.sig = poly.Signal{}
		return
	}
	in.sig = src.GetPoly(in.param.Cable.Port)
}

// connected reports whether this input is wired to a live cable (as
// opposed to carrying a constant or dangling reference).
func (in *input) connected() bool { return in.param.IsCable() && in.sig.Channels() > 0 }

// value reads channel ch, falling back to the param's constant (or def,
// if the param itself is absent) when disconnected.
func (in *input) value(ch int, def float64) float64 {
	if in.connected() {
		return in.sig.GetCycling(ch)
	}
	return in.param.Default(def)
}

// channels reports how many voices this input carries, for modules that
// size their own polyphonic output off an input's width.
func (in *input) channels() int {
	if in.connected() {
		return in.sig.Channels()
	}
	return 1
}

// maxChannels returns the widest channel count across several inputs,
// matching the original's PolySignal::max_channels helper.
func maxChannels(ins ...*input) int {
	max := 1
	for _, in := range ins {
		if c := in.channels(); c > max {
			max = c
		}
	}
	return max
}

// decodeParams unmarshals raw into dst, wrapping the error with the
// module's id and type for §7's error-reporting conventions.
func decodeParams(moduleType, id string, raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s %q: malformed params: %w", moduleType, id, err)
	}
	return nil
}

// voctToHz converts a V/Oct pitch CV to a frequency in Hz, 0V = C4,
// matching every oscillator/filter in the original that calls
// dsp::utils::voct_to_hz.
func voctToHz(volts float64) float64 {
	const c4 = 261.6255653005986
	return c4 * math.Exp2(volts)
}

// changed reports whether a and b differ enough to be worth
// recomputing cached filter coefficients over, matching the original's
// dsp::utils::changed used to gate the coefficient-recompute branch.
func changed(a, b float64) bool {
	const epsilon = 1e-6
	d := a - b
	return d > epsilon || d < -epsilon
}
