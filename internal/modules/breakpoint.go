package modules

import (
	"encoding/json"
	"sort"

	"github.com/cbegin/modularengine/internal/patchfmt"
	"github.com/cbegin/modularengine/internal/poly"
	"github.com/cbegin/modularengine/internal/registry"
)

// breakpoint is one (time, value) vertex of a table, time in seconds
// from the table's start.
type breakpoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// BreakpointTable is the supplemented §10.3 table/breakpoint modulation
// source: a standalone graph node generalizing the teacher's per-track
// TABLEn{...} definitions (internal/mml/parser.go's TABLE directive
// parsing) and the original's dsp/utilities/seq.rs pattern-driven
// modulation idea into a leaf any patch can route a cable into, rather
// than a sequencer-only internal table.
type BreakpointTable struct {
	id         string
	sampleRate float64

	points []breakpoint
	loop   bool

	trigIn, rateIn input

	elapsed      float64
	lastTrig     float64
	out, nextOut float64
}

func newBreakpointTable(id string, sampleRate float64) (registry.Module, error) {
	return &BreakpointTable{id: id, sampleRate: sampleRate}, nil
}

func (m *BreakpointTable) ID() string   { return m.id }
func (m *BreakpointTable) Type() string { return "breakpointTable" }

type breakpointParams struct {
	Points []breakpoint   `json:"points"`
	Loop   bool           `json:"loop"`
	Trig   patchfmt.Param `json:"trig"`
	Rate   patchfmt.Param `json:"rate"`
}

func (m *BreakpointTable) TryUpdateParams(raw json.RawMessage) error {
	var p breakpointParams
	if err := decodeParams(m.Type(), m.id, raw, &p); err != nil {
		return err
	}
	points := append([]breakpoint(nil), p.Points...)
	sort.Slice(points, func(i, j int) bool { return points[i].Time < points[j].Time })
	m.points = points
	m.loop = p.Loop
	m.trigIn.param = p.Trig
	m.rateIn.param = p.Rate
	return nil
}

func (m *BreakpointTable) Connect(g registry.Graph) {
	m.trigIn.connect(g)
	m.rateIn.connect(g)
}

func (m *BreakpointTable) OnPatchUpdate() {}

// sampleAt linearly interpolates the table at elapsed seconds, holding
// the first/last value outside the table's span.
func (m *BreakpointTable) sampleAt(t float64) float64 {
	if len(m.points) == 0 {
		return 0
	}
	if t <= m.points[0].Time {
		return m.points[0].Value
	}
	last := m.points[len(m.points)-1]
	if t >= last.Time {
		return last.Value
	}
	for i := 1; i < len(m.points); i++ {
		if t <= m.points[i].Time {
			a, b := m.points[i-1], m.points[i]
			span := b.Time - a.Time
			if span <= 0 {
				return b.Value
			}
			frac := (t - a.Time) / span
			return a.Value + (b.Value-a.Value)*frac
		}
	}
	return last.Value
}

func (m *BreakpointTable) Update() {
	trig := m.trigIn.value(0, 0)
	if trig > 2.5 && m.lastTrig <= 2.5 {
		m.elapsed = 0
	}
	m.lastTrig = trig

	rate := m.rateIn.value(0, 1)
	if rate <= 0 {
		rate = 1
	}

	m.nextOut = m.sampleAt(m.elapsed) * 5
	if len(m.points) > 0 {
		duration := m.points[len(m.points)-1].Time
		if m.loop && duration > 0 && m.elapsed >= duration {
			m.elapsed -= duration
		}
	}
	m.elapsed += rate / m.sampleRate
}

func (m *BreakpointTable) Tick() { m.out = m.nextOut }

func (m *BreakpointTable) GetPoly(port string) poly.Signal {
	if port == "output" {
		return poly.Mono(m.out)
	}
	return poly.Signal{}
}

func (m *BreakpointTable) DispatchMessage(json.RawMessage) error { return nil }
func (m *BreakpointTable) GetState() json.RawMessage             { return nil }
