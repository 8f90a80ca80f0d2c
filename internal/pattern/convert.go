package pattern

import "fmt"

// Lifter converts parsed mini-notation atoms into a concrete pattern
// value type V, and declares whether V has a rest representation.
// Sequencers lift to a note/gate-bearing event type that does support
// rest; consumers that just want raw numeric patterns typically don't,
// matching §4.7's "If V has no rest representation, operators that
// introduce rests fail with RestNotSupported at build time".
type Lifter[T any] interface {
	FromAtom(text string, span SourceSpan) (T, error)
	Rest() (T, bool)
}

// RestNotSupportedError is returned at build time (never at query time)
// when a rest atom, euclidean rest, or degrade-dropped slot would need a
// rest value that the target type cannot represent.
type RestNotSupportedError struct {
	Span SourceSpan
}

func (e RestNotSupportedError) Error() string {
	return fmt.Sprintf("pattern: value type has no rest representation (atom at %d-%d)", e.Span.Start, e.Span.End)
}

// Build converts a parsed AST node into a queryable Pattern[T] using l to
// lift atoms, failing fast with RestNotSupportedError if a rest-bearing
// construct is used against a type that cannot represent one.
func Build[T any](n Node, l Lifter[T]) (Pattern[T], error) {
	p, err := build(n, l)
	if err != nil {
		return Pattern[T]{}, err
	}
	return p, nil
}

func build[T any](n Node, l Lifter[T]) (Pattern[T], error) {
	var p Pattern[T]

	switch n.Kind {
	case KindAtom:
		v, err := l.FromAtom(n.Text, n.Span)
		if err != nil {
			return Pattern[T]{}, err
		}
		p = withSourceSpan(Pure(v), n.Span)

	case KindRest:
		rv, ok := l.Rest()
		if !ok {
			return Pattern[T]{}, RestNotSupportedError{Span: n.Span}
		}
		p = withSourceSpan(Pure(rv), n.Span)

	case KindSeq:
		weighted := make([]Weighted[T], 0, len(n.Children))
		for _, c := range n.Children {
			cp, err := build(c, l)
			if err != nil {
				return Pattern[T]{}, err
			}
			weighted = append(weighted, Weighted[T]{Pattern: cp, Weight: c.Weight})
		}
		p = FastCat(weighted)

	case KindStack:
		pats := make([]Pattern[T], 0, len(n.Children))
		for _, c := range n.Children {
			cp, err := build(c, l)
			if err != nil {
				return Pattern[T]{}, err
			}
			pats = append(pats, cp)
		}
		p = Stack(pats...)

	case KindSlowSub:
		pats := make([]Pattern[T], 0, len(n.Children))
		for _, c := range n.Children {
			cp, err := build(c, l)
			if err != nil {
				return Pattern[T]{}, err
			}
			pats = append(pats, cp)
		}
		p = SlowCat(pats...)

	default:
		return Pattern[T]{}, fmt.Errorf("pattern: unknown node kind %d", n.Kind)
	}

	if n.Euclid != nil {
		if _, ok := l.Rest(); !ok {
			return Pattern[T]{}, RestNotSupportedError{Span: n.Span}
		}
		p = Euclid(n.Euclid.K, n.Euclid.N, n.Euclid.R, p)
	}
	if n.Fast != nil {
		p = Fast(*n.Fast, p)
	}
	if n.Slow != nil {
		p = Slow(*n.Slow, p)
	}
	if n.Degrade != nil {
		if _, ok := l.Rest(); !ok {
			return Pattern[T]{}, RestNotSupportedError{Span: n.Span}
		}
		p = Degrade(*n.Degrade, p)
	}
	return p, nil
}

func withSourceSpan[T any](p Pattern[T], span SourceSpan) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		haps := p.Query(st)
		out := make([]Hap[T], len(haps))
		for i, h := range haps {
			spans := make([]SourceSpan, 0, len(h.Spans)+1)
			spans = append(spans, h.Spans...)
			spans = append(spans, span)
			h.Spans = spans
			out[i] = h
		}
		return out
	}}
}
