// Package sequencer implements the sequencer module (C8): it bridges the
// mini-notation pattern system (internal/pattern) to the patch graph as
// a plain registry.Module, exposing cv/gate/trig output ports driven by
// a playhead CV cable.
package sequencer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/cbegin/modularengine/internal/pattern"
	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

const (
	trigSamples = 64 // fixed trigger pulse width; long enough for any downstream schmitt trigger to see it
	gateHigh    = 5.0
	trigHigh    = 5.0
)

// A sequencer pattern's value type is float64, with a NaN sentinel
// standing in for the original's `Value::Rest` — unlike the bare
// Float64Lifter demonstrated in internal/pattern's tests, a sequencer
// must represent rests (mini-notation "~"), since a rest is exactly what
// drives the gate/trig outputs low (§4.8).

func isRestValue(v float64) bool { return math.IsNaN(v) }

// noteLifter lifts bare note-letter atoms (c, d, e...) with optional
// sharps/flats and a trailing octave digit to a V/Oct offset from C4;
// anything else falls back to a plain number.
type noteLifter struct{}

var noteSemitone = map[byte]float64{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

func (noteLifter) FromAtom(text string, span pattern.SourceSpan) (float64, error) {
	if len(text) > 0 {
		if base, ok := noteSemitone[text[0]]; ok {
			semis := base
			i := 1
			for i < len(text) && (text[i] == 's' || text[i] == '#') {
				semis++
				i++
			}
			for i < len(text) && text[i] == 'f' {
				semis--
				i++
			}
			octave := 4
			if i < len(text) {
				var n int
				if _, err := fmt.Sscanf(text[i:], "%d", &n); err == nil {
					octave = n
				}
			}
			return (semis + float64(octave-4)*12) / 12.0, nil
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("pattern: %q is not a note or number (at %d-%d)", text, span.Start, span.End)
	}
	return v, nil
}

func (noteLifter) Rest() (float64, bool) { return math.NaN(), true }

// numberLifter lifts bare numeric atoms, supporting rest the same way
// noteLifter does.
type numberLifter struct{}

func (numberLifter) FromAtom(text string, span pattern.SourceSpan) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("pattern: %q is not a number (at %d-%d): %w", text, span.Start, span.End, err)
	}
	return v, nil
}

func (numberLifter) Rest() (float64, bool) { return math.NaN(), true }

func lifterFor(kind string) pattern.Lifter[float64] {
	if kind == "note" {
		return noteLifter{}
	}
	return numberLifter{}
}

// cachedHap is the last hap produced by a pattern query, plus the
// absolute cycle span it covers; reused across samples while the
// playhead stays inside that span (§4.8).
type cachedHap struct {
	span    pattern.TimeSpan
	value   float64
	isRest  bool
	present bool
}

// Module is the sequencer (C8): reads a playhead CV in cycles, queries
// the compiled pattern at that position, and republishes cv/gate/trig.
type Module struct {
	id         string
	sampleRate float64

	patternSrc string
	liftKind   string
	routeTo    string
	pattern    pattern.Pattern[float64]

	playheadCable *patchfmt.CableRef
	playheadSig   poly.Signal

	graph registry.Graph

	cache cachedHap

	trigRemaining int

	outCV, outGate, outTrig    float64
	nextCV, nextGate, nextTrig float64
}

type moduleParams struct {
	Pattern  string             `json:"pattern"`
	Lift     string             `json:"lift"`
	Route    string             `json:"route,omitempty"`
	Playhead *patchfmt.CableRef `json:"playhead,omitempty"`
}

// New constructs a sequencer module; satisfies registry.Constructor.
func New(id string, sampleRate float64) (registry.Module, error) {
	m := &Module{id: id, sampleRate: sampleRate, liftKind: "number"}
	m.pattern = pattern.Silence[float64]()
	return m, nil
}

func init() {
	registry.Default.Register("seq", New)
}

func (m *Module) ID() string   { return m.id }
func (m *Module) Type() string { return "seq" }

func (m *Module) compile(params moduleParams) error {
	parsed, err := pattern.Parse(params.Pattern)
	if err != nil {
		return fmt.Errorf("sequencer %q: parsing pattern: %w", m.id, err)
	}
	p, err := pattern.Build[float64](parsed.Base, lifterFor(params.Lift))
	if err != nil {
		return fmt.Errorf("sequencer %q: building pattern: %w", m.id, err)
	}
	if len(parsed.Pipes) > 0 {
		p, err = pattern.ApplyPipes(p, parsed.Pipes)
		if err != nil {
			return fmt.Errorf("sequencer %q: applying operators: %w", m.id, err)
		}
	}
	m.pattern = p
	m.patternSrc = params.Pattern
	m.liftKind = params.Lift
	m.routeTo = params.Route
	m.playheadCable = params.Playhead
	m.cache = cachedHap{}
	return nil
}

// TryUpdateParams parses and recompiles the pattern; on failure the
// module keeps whatever it had compiled before (§4.10).
func (m *Module) TryUpdateParams(raw json.RawMessage) error {
	var params moduleParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("sequencer %q: malformed params: %w", m.id, err)
	}
	if params.Lift == "" {
		params.Lift = "number"
	}
	return m.compile(params)
}

// Connect resolves the playhead cable against the graph, and keeps the
// graph itself around so a routed trigger (the Route operator, §10.2)
// can be delivered straight to its target module by id.
func (m *Module) Connect(g registry.Graph) {
	m.graph = g
	if m.playheadCable == nil {
		m.playheadSig = poly.Signal{}
		return
	}
	src, ok := g.Lookup(m.playheadCable.Module)
	if !ok {
		m.playheadSig = poly.Signal{}
		return
	}
	m.playheadSig = src.GetPoly(m.playheadCable.Port)
}

func (m *Module) OnPatchUpdate() {}

// Update queries the pattern at the current playhead position (if it
// has left the cached hap's span) and stages cv/gate/trig for Tick.
func (m *Module) Update() {
	channel := 0
	if m.playheadCable != nil {
		channel = m.playheadCable.Channel
		if m.graph != nil {
			if src, ok := m.graph.Lookup(m.playheadCable.Module); ok {
				m.playheadSig = src.GetPoly(m.playheadCable.Port)
			} else {
				m.playheadSig = poly.Signal{}
			}
		}
	}
	playhead := m.playheadSig.GetCycling(channel)

	at := pattern.FromFloat(playhead)
	if !m.cache.present || at.Lt(m.cache.span.Begin) || !at.Lt(m.cache.span.End) {
		m.requery(at)
	}

	if m.cache.isRest || !m.cache.present {
		m.nextCV = 0
		m.nextGate = 0
	} else {
		m.nextCV = m.cache.value
		m.nextGate = gateHigh
	}
	if m.trigRemaining > 0 {
		m.nextTrig = trigHigh
		m.trigRemaining--
	} else {
		m.nextTrig = 0
	}
}

// requery re-queries the pattern at a small window starting at `at`,
// taking the first hap whose part contains `at`, and retriggers the
// pulse outputs when the new hap is not a rest, or when nothing was
// cached before.
func (m *Module) requery(at pattern.Fraction) {
	window := pattern.TimeSpan{Begin: at, End: at.Add(pattern.New(1, 1<<20))}
	haps := m.pattern.Query(pattern.State{Span: window, Controls: pattern.NewControls()})

	prevPresent := m.cache.present
	m.cache = cachedHap{}
	for _, h := range haps {
		if at.Lt(h.Part.Begin) || !at.Lt(h.Part.End) {
			continue
		}
		span := h.Part
		if h.Whole != nil {
			span = *h.Whole
		}
		m.cache = cachedHap{span: span, value: h.Value, isRest: isRestValue(h.Value), present: true}
		break
	}
	if !m.cache.present {
		// No hap covers `at` (a gap between sparse events); hold silence
		// for a narrow span so we re-query again almost immediately.
		m.cache = cachedHap{
			span:    window,
			isRest:  true,
			present: true,
		}
	}
	if !prevPresent || !m.cache.isRest {
		m.trigRemaining = trigSamples
		m.routeHap()
	}
}

// RouteTarget is implemented by modules that want to receive routed
// sequencer triggers (the Route operator, §10.2) directly, bypassing
// the JSON-encoded DispatchMessage path: routeHap runs on the audio
// thread on every triggered hap, so it must not allocate, and this
// dispatch is same-thread, same-process — it never crosses the C5
// SPSC boundary, so JSON's wire-format role doesn't apply here.
type RouteTarget interface {
	ReceiveRoute(cv float64, trig bool)
}

// routeHap delivers the just-triggered hap straight to routeTo's module,
// when the track names one and it implements RouteTarget. trigRemaining
// also resets on the very first rest (the silence-to-silence edge case
// in requery's comment), so this still guards on isRest itself.
func (m *Module) routeHap() {
	if m.routeTo == "" || m.graph == nil || m.cache.isRest {
		return
	}
	target, ok := m.graph.Lookup(m.routeTo)
	if !ok {
		return
	}
	if rt, ok := target.(RouteTarget); ok {
		rt.ReceiveRoute(m.cache.value, true)
	}
}

func (m *Module) Tick() {
	m.outCV, m.outGate, m.outTrig = m.nextCV, m.nextGate, m.nextTrig
}

func (m *Module) GetPoly(port string) poly.Signal {
	switch port {
	case "cv":
		return poly.Mono(m.outCV)
	case "gate":
		return poly.Mono(m.outGate)
	case "trig":
		return poly.Mono(m.outTrig)
	default:
		return poly.Signal{}
	}
}

// DispatchMessage is for inbound out-of-band messages (the host's
// broadcast control channel, patch.Graph.Dispatch); the sequencer
// itself never listens for one, so this always returns nil. Routed
// triggers (routeHap, the Route operator) go out through RouteTarget
// instead, not through this method.
func (m *Module) DispatchMessage(json.RawMessage) error { return nil }

func (m *Module) GetState() json.RawMessage {
	state := struct {
		Pattern string `json:"pattern"`
		Route   string `json:"route,omitempty"`
	}{Pattern: m.patternSrc, Route: m.routeTo}
	data, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	return data
}
