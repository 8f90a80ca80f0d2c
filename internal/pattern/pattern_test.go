package pattern

import (
	"testing"
)

// noteLifter lifts note-letter atoms (a, b, c...) to MIDI-ish values for
// the scenario tests in §8; it has no rest representation, matching the
// f64 example in the original.
type noteLifter struct{}

var noteBase = map[byte]float64{'c': 60, 'd': 62, 'e': 64, 'f': 65, 'g': 67, 'a': 69, 'b': 71}

func (noteLifter) FromAtom(text string, span SourceSpan) (float64, error) {
	if v, ok := noteBase[text[0]]; ok {
		return v, nil
	}
	return Float64Lifter{}.FromAtom(text, span)
}

func (noteLifter) Rest() (float64, bool) { return 0, false }

func TestMiniNotationSequence(t *testing.T) {
	parsed, err := Parse("c4 d4 e4 f4")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	p, err := Build[float64](parsed.Base, noteLifter{})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	haps := p.QueryCycles(FromInt(0), FromInt(1))
	if len(haps) != 4 {
		t.Fatalf("expected 4 haps, got %d", len(haps))
	}
	wantValues := []float64{60, 62, 64, 65}
	wantBounds := []Fraction{FromInt(0), New(1, 4), New(2, 4), New(3, 4)}
	for i, h := range haps {
		if h.Value != wantValues[i] {
			t.Errorf("hap %d value = %v, want %v", i, h.Value, wantValues[i])
		}
		if !h.Part.Begin.Eq(wantBounds[i]) {
			t.Errorf("hap %d begin = %v, want %v", i, h.Part.Begin, wantBounds[i])
		}
	}
}

func TestSlowCatAlternates(t *testing.T) {
	parsed, err := Parse("<a b>")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	p, err := Build[float64](parsed.Base, noteLifter{})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	check := func(cycle int64, want float64) {
		haps := p.QueryCycles(FromInt(cycle), FromInt(cycle+1))
		if len(haps) != 1 {
			t.Fatalf("cycle %d: expected 1 hap, got %d", cycle, len(haps))
		}
		if haps[0].Value != want {
			t.Fatalf("cycle %d: value = %v, want %v", cycle, haps[0].Value, want)
		}
	}
	check(0, noteBase['a'])
	check(1, noteBase['b'])
	check(2, noteBase['a'])
}

func TestRestRejectedForFloat64(t *testing.T) {
	parsed, err := Parse("1 ~ 2")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	_, err = Build[float64](parsed.Base, Float64Lifter{})
	if err == nil {
		t.Fatalf("expected RestNotSupportedError, got nil")
	}
	if _, ok := err.(RestNotSupportedError); !ok {
		t.Fatalf("expected RestNotSupportedError, got %T: %v", err, err)
	}
}

func TestBjorklundBasicHits(t *testing.T) {
	got := Bjorklund(3, 8)
	count := 0
	for _, b := range got {
		if b {
			count++
		}
	}
	if count != 3 {
		t.Fatalf("expected 3 hits in 8 steps, got %d in %v", count, got)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 steps, got %d", len(got))
	}
}

func TestQueryResultsIntersectRequestedSpan(t *testing.T) {
	parsed, err := Parse("0 1 2 3")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	p, err := Build[float64](parsed.Base, Float64Lifter{})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	haps := p.QueryCycles(New(1, 4), New(3, 4))
	if len(haps) == 0 {
		t.Fatalf("expected at least one hap")
	}
	window := TimeSpan{Begin: New(1, 4), End: New(3, 4)}
	for _, h := range haps {
		if _, ok := h.Part.Intersect(window); !ok {
			t.Errorf("hap %+v does not intersect query window %+v", h, window)
		}
	}
}
