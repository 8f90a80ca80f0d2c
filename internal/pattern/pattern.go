package pattern

// Pattern is semantically a function from a queried time span to the
// haps active within it (§4.7). Query must only return haps whose Part
// intersects the requested span; it may be called repeatedly and must
// be pure (no hidden mutable state) so that P.query(a,b) is always a
// subset of P.query(a-k, b+k) for k >= 0 (§8).
type Pattern[T any] struct {
	Query func(State) []Hap[T]
}

// QueryCycles runs p over [begin, end) with empty controls, the usual
// entry point from outside the package. It does not split the window
// itself; the combinators below that need per-cycle behavior (pure,
// rev, slowcat) split their own query at integer cycle boundaries.
func (p Pattern[T]) QueryCycles(begin, end Fraction) []Hap[T] {
	return p.Query(NewState(begin, end))
}

// Silence is the empty pattern.
func Silence[T any]() Pattern[T] {
	return Pattern[T]{Query: func(State) []Hap[T] { return nil }}
}

// Pure produces one hap per cycle carrying v, clipped to the query
// window.
func Pure[T any](v T) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		var out []Hap[T]
		for _, cyc := range st.Span.CycleSpans() {
			whole := TimeSpan{Begin: FromInt(cyc.Begin.Floor()), End: FromInt(cyc.Begin.Floor() + 1)}
			out = append(out, Hap[T]{Part: cyc, Whole: &whole, Value: v})
		}
		return out
	}}
}

// withTime transforms the query span with queryT before delegating to p,
// and transforms each resulting hap's times back with hapT — the standard
// "time-warp" shape fast/slow/rev are all built from.
func withTime[T any](p Pattern[T], queryT, hapT func(Fraction) Fraction) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		inner := st.WithSpan(st.Span.WithTime(queryT))
		haps := p.Query(inner)
		out := make([]Hap[T], len(haps))
		for i, h := range haps {
			out[i] = mapSpan(h, func(s TimeSpan) TimeSpan { return s.WithTime(hapT) })
		}
		return out
	}}
}

// Fast speeds p up by factor (factor > 1 packs more cycles of p into
// one cycle of the result).
func Fast[T any](factor Fraction, p Pattern[T]) Pattern[T] {
	if factor.Num == 0 {
		return Silence[T]()
	}
	if factor.Num < 0 {
		factor = factor.Neg()
		p = Rev(p)
	}
	return withTime(p,
		func(t Fraction) Fraction { return t.Mul(factor) },
		func(t Fraction) Fraction { return t.Div(factor) },
	)
}

// Slow slows p down by factor; Slow(n, p) == Fast(1/n, p).
func Slow[T any](factor Fraction, p Pattern[T]) Pattern[T] {
	if factor.Num == 0 {
		return Silence[T]()
	}
	return Fast(New(factor.Den, factor.Num), p)
}

// Rev mirrors time within each integer cycle.
func Rev[T any](p Pattern[T]) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		var out []Hap[T]
		for _, cyc := range st.Span.CycleSpans() {
			cycleStart := FromInt(cyc.Begin.Floor())
			cycleEnd := cycleStart.Add(FromInt(1))
			reflect := func(t Fraction) Fraction { return cycleStart.Add(cycleEnd).Sub(t) }
			reflected := TimeSpan{Begin: reflect(cyc.End), End: reflect(cyc.Begin)}
			haps := p.Query(NewState(reflected.Begin, reflected.End).WithSpan(reflected))
			for _, h := range haps {
				out = append(out, mapSpan(h, func(s TimeSpan) TimeSpan {
					return TimeSpan{Begin: reflect(s.End), End: reflect(s.Begin)}
				}))
			}
		}
		return out
	}}
}

// Stack unions the haps of every child, each queried over the same
// span.
func Stack[T any](pats ...Pattern[T]) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		var out []Hap[T]
		for _, p := range pats {
			out = append(out, p.Query(st)...)
		}
		return out
	}}
}

// compress maps p's whole first cycle into [b, e) of the parent cycle —
// the primitive fastcat/sequence builds each slice from.
func compress[T any](b, e Fraction, p Pattern[T]) Pattern[T] {
	if b.Gt(e) || b.Lt(FromInt(0)) || e.Gt(FromInt(1)) || b.Eq(e) {
		return Silence[T]()
	}
	span := e.Sub(b)
	return rotateThenScale(b, span, p)
}

func rotateThenScale[T any](offset, span Fraction, p Pattern[T]) Pattern[T] {
	fast := Fast(span, p)
	return Pattern[T]{Query: func(st State) []Hap[T] {
		shifted := st.Span.WithTime(func(t Fraction) Fraction { return t.Sub(offset) })
		haps := fast.Query(st.WithSpan(shifted))
		out := make([]Hap[T], len(haps))
		for i, h := range haps {
			out[i] = mapSpan(h, func(s TimeSpan) TimeSpan { return s.WithTime(func(t Fraction) Fraction { return t.Add(offset) }) })
		}
		return out
	}}
}

// Weighted pairs a pattern with its relative share of a sequence's
// cycle (§4.7 "Weights").
type Weighted[T any] struct {
	Pattern Pattern[T]
	Weight  Fraction
}

// FastCat lays out children sequentially within one cycle, each sized by
// its weight (default weight 1), matching §4.7's "sequence: elements
// share a cycle evenly" generalized to weighted shares.
func FastCat[T any](children []Weighted[T]) Pattern[T] {
	if len(children) == 0 {
		return Silence[T]()
	}
	total := FromInt(0)
	for _, c := range children {
		total = total.Add(c.Weight)
	}
	parts := make([]Pattern[T], 0, len(children))
	pos := FromInt(0)
	for _, c := range children {
		share := c.Weight.Div(total)
		end := pos.Add(share)
		parts = append(parts, compress(pos, end, c.Pattern))
		pos = end
	}
	return Stack(parts...)
}

// Seq is FastCat with uniform weight 1, the common case.
func Seq[T any](children ...Pattern[T]) Pattern[T] {
	w := make([]Weighted[T], len(children))
	for i, c := range children {
		w[i] = Weighted[T]{Pattern: c, Weight: FromInt(1)}
	}
	return FastCat(w)
}

// SlowCat picks one child per cycle, cycling through them in order —
// `<a b c>` in mini-notation.
func SlowCat[T any](children ...Pattern[T]) Pattern[T] {
	n := int64(len(children))
	if n == 0 {
		return Silence[T]()
	}
	return Pattern[T]{Query: func(st State) []Hap[T] {
		var out []Hap[T]
		for _, cyc := range st.Span.CycleSpans() {
			cycle := cyc.Begin.Floor()
			idx := cycle % n
			if idx < 0 {
				idx += n
			}
			child := children[idx]
			haps := child.Query(st.WithSpan(cyc))
			out = append(out, haps...)
		}
		return out
	}}
}

// Euclid expands k hits over n steps (optionally rotated by r) via
// Bjorklund's algorithm, applying p on hits and silence on rests.
func Euclid[T any](k, n, r int, p Pattern[T]) Pattern[T] {
	hits := Bjorklund(k, n)
	if r != 0 {
		hits = rotate(hits, r)
	}
	children := make([]Weighted[T], len(hits))
	for i, on := range hits {
		if on {
			children[i] = Weighted[T]{Pattern: p, Weight: FromInt(1)}
		} else {
			children[i] = Weighted[T]{Pattern: Silence[T](), Weight: FromInt(1)}
		}
	}
	return FastCat(children)
}

func rotate(bits []bool, r int) []bool {
	n := len(bits)
	if n == 0 {
		return bits
	}
	r = ((r % n) + n) % n
	out := make([]bool, n)
	for i := range bits {
		out[i] = bits[(i+r)%n]
	}
	return out
}

// Degrade drops each hap with probability p (default 0.5), using a
// deterministic PRNG seeded from the hap's source span and cycle
// number, so the same pattern text always degrades the same way for a
// given cycle (§4.7).
func Degrade[T any](prob float64, p Pattern[T]) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		haps := p.Query(st)
		out := haps[:0:0]
		for _, h := range haps {
			seed := hashSpan(h.Part.Begin.Floor(), h.Spans)
			if randFloat(seed) >= prob {
				out = append(out, h)
			}
		}
		return out
	}}
}

func hashSpan(cycle int64, spans []SourceSpan) uint64 {
	h := uint64(1469598103934665603) // FNV offset basis
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211
	}
	mix(uint64(cycle))
	for _, s := range spans {
		mix(uint64(s.Start))
		mix(uint64(s.End))
	}
	return h
}

func randFloat(seed uint64) float64 {
	// xorshift64* for a deterministic, dependency-free PRNG.
	x := seed
	x ^= x >> 12
	x ^= x << 25
	x ^= x >> 27
	x *= 2685821657736338717
	return float64(x>>11) / float64(1<<53)
}

// Replicate repeats p n times in place within its slot, used for `x!n`.
func Replicate[T any](n int, p Pattern[T]) []Weighted[T] {
	out := make([]Weighted[T], n)
	for i := range out {
		out[i] = Weighted[T]{Pattern: p, Weight: FromInt(1)}
	}
	return out
}
