package pattern

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

// restLifter is Float64Lifter with a NaN rest, since the euclid modifier
// in the property source needs a rest representation to build.
type restLifter struct{ Float64Lifter }

func (restLifter) Rest() (float64, bool) { return math.NaN(), true }

// TestQueryMonotonicWithWindow encodes §8's containment invariant:
// P.query(a, b) is a subset of P.query(a-k, b+k) for any k >= 0.
func TestQueryMonotonicWithWindow(t *testing.T) {
	src := "0 1 [2 3] <4 5>(3,8)"
	parsed, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	p, err := Build[float64](parsed.Base, restLifter{})
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	rapid.Check(t, func(t *rapid.T) {
		aN := rapid.Int64Range(0, 8).Draw(t, "a")
		width := rapid.Int64Range(1, 8).Draw(t, "width")
		k := rapid.Int64Range(0, 4).Draw(t, "k")

		a := New(aN, 2)
		b := a.Add(New(width, 2))
		inner := p.QueryCycles(a, b)

		widerA := a.Sub(New(k, 2))
		widerB := b.Add(New(k, 2))
		outer := p.QueryCycles(widerA, widerB)

		for _, h := range inner {
			if !containsHap(outer, h) {
				t.Fatalf("hap %+v present in query(%v,%v) missing from wider query(%v,%v)", h, a, b, widerA, widerB)
			}
		}
	})
}

func containsHap(haps []Hap[float64], target Hap[float64]) bool {
	for _, h := range haps {
		if h.Part.Begin.Eq(target.Part.Begin) && h.Part.End.Eq(target.Part.End) && h.Value == target.Value {
			return true
		}
	}
	return false
}
