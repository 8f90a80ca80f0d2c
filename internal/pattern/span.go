package pattern

// TimeSpan is a half-open interval [Begin, End) of cycle time.
type TimeSpan struct {
	Begin, End Fraction
}

// NewSpan builds a span without checking whether it is inverted —
// callers only ever construct spans from query windows or subdivisions,
// both of which are always non-decreasing by construction.
func NewSpan(begin, end Fraction) TimeSpan {
	return TimeSpan{Begin: begin, End: end}
}

// Intersect returns the overlap of two spans and whether it is
// non-empty. Touching spans (zero-width overlap where Begin == End)
// count as non-intersecting, matching half-open interval semantics.
func (s TimeSpan) Intersect(o TimeSpan) (TimeSpan, bool) {
	b := maxFrac(s.Begin, o.Begin)
	e := min(s.End, o.End)
	if b.Gte(e) {
		return TimeSpan{}, false
	}
	return TimeSpan{Begin: b, End: e}, true
}

// CycleSpans splits s into one sub-span per integer cycle it crosses,
// so combinators that need per-cycle behavior (slowcat, degrade) can
// process one cycle at a time even when queried with a wider window.
func (s TimeSpan) CycleSpans() []TimeSpan {
	if s.Begin.Gte(s.End) {
		if s.Begin.Eq(s.End) {
			return []TimeSpan{s}
		}
		return nil
	}
	var out []TimeSpan
	cur := s.Begin
	for cur.Lt(s.End) {
		nextCycle := FromInt(cur.Floor() + 1)
		end := min(nextCycle, s.End)
		out = append(out, TimeSpan{Begin: cur, End: end})
		cur = end
	}
	return out
}

// WithTime maps both endpoints through f, used by fast/slow/rev to
// transform a span into the child pattern's time domain.
func (s TimeSpan) WithTime(f func(Fraction) Fraction) TimeSpan {
	return TimeSpan{Begin: f(s.Begin), End: f(s.End)}
}

// SourceSpan is a [start,end) byte offset range into the original
// mini-notation source text, carried from atoms onto every hap derived
// from them for editor highlighting (§4.7 "Source tracking").
type SourceSpan struct {
	Start, End int
}
