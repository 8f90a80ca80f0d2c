package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// Numeric is the constraint pattern operators (add/mul/scale) require:
// a type that is representable as a float64 for arithmetic.
type Numeric interface {
	~float64
}

// Float64Lifter lifts mini-notation atoms to plain float64s, matching
// §9's example of a value type with no rest representation: Rest
// reports ok=false, so a bare "~" or a degrade/euclid applied to a
// Pattern[float64] fails at build time with RestNotSupportedError
// (the original_source test this mirrors: parse::<f64>("1 ~ 2") fails).
type Float64Lifter struct{}

func (Float64Lifter) FromAtom(text string, span SourceSpan) (float64, error) {
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("pattern: %q is not a number (at %d-%d): %w", text, span.Start, span.End, err)
	}
	return v, nil
}

func (Float64Lifter) Rest() (float64, bool) { return 0, false }

// ApplyPipes applies a parsed `$` operator chain to p in order,
// supporting the operators named in §4.7: fast, slow, rev, add, mul,
// scale. Unknown operator names are a build-time error.
func ApplyPipes[T Numeric](p Pattern[T], pipes []PipeOp) (Pattern[T], error) {
	for _, op := range pipes {
		var err error
		p, err = applyOne(p, op)
		if err != nil {
			return Pattern[T]{}, err
		}
	}
	return p, nil
}

func applyOne[T Numeric](p Pattern[T], op PipeOp) (Pattern[T], error) {
	switch op.Name {
	case "fast":
		f, err := singleFractionArg(op)
		if err != nil {
			return Pattern[T]{}, err
		}
		return Fast(f, p), nil
	case "slow":
		f, err := singleFractionArg(op)
		if err != nil {
			return Pattern[T]{}, err
		}
		return Slow(f, p), nil
	case "rev":
		return Rev(p), nil
	case "add":
		x, err := singleFloatArg(op)
		if err != nil {
			return Pattern[T]{}, err
		}
		return CachedAdd(x, p), nil
	case "mul":
		x, err := singleFloatArg(op)
		if err != nil {
			return Pattern[T]{}, err
		}
		return CachedMul(x, p), nil
	case "scale":
		if len(op.Args) < 1 {
			return Pattern[T]{}, fmt.Errorf("pattern: scale(...) requires a scale name argument")
		}
		scaleName := strings.TrimSpace(op.Args[0])
		root := RootSpec[T]{Fixed: 0}
		if len(op.Args) >= 2 {
			rootArg := strings.TrimSpace(op.Args[1])
			if f, err := strconv.ParseFloat(rootArg, 64); err == nil {
				root = RootSpec[T]{Fixed: T(f)}
			} else {
				parsed, err := Parse(rootArg)
				if err != nil {
					return Pattern[T]{}, fmt.Errorf("pattern: scale root %q: %w", rootArg, err)
				}
				rootPattern, err := Build[T](parsed.Base, numericLifter[T]{})
				if err != nil {
					return Pattern[T]{}, err
				}
				root = RootSpec[T]{Dynamic: &rootPattern}
			}
		}
		return Scale(scaleName, root, p)
	default:
		return Pattern[T]{}, fmt.Errorf("pattern: unknown operator %q", op.Name)
	}
}

func singleFractionArg(op PipeOp) (Fraction, error) {
	if len(op.Args) != 1 {
		return Fraction{}, fmt.Errorf("pattern: %s(...) takes exactly one argument", op.Name)
	}
	f, pos, err := parseNumberFraction(op.Args[0], 0)
	if err != nil || pos != len(op.Args[0]) {
		return Fraction{}, fmt.Errorf("pattern: %s(...) argument must be a number", op.Name)
	}
	return f, nil
}

func singleFloatArg(op PipeOp) (float64, error) {
	f, err := singleFractionArg(op)
	if err != nil {
		return 0, err
	}
	return f.Float64(), nil
}

// numericLifter is an internal helper so Scale's dynamic-root sub-parse
// can build a Pattern[T] for any Numeric T, reusing Float64Lifter's
// parsing and just converting the result.
type numericLifter[T Numeric] struct{}

func (numericLifter[T]) FromAtom(text string, span SourceSpan) (T, error) {
	v, err := (Float64Lifter{}).FromAtom(text, span)
	return T(v), err
}

func (numericLifter[T]) Rest() (T, bool) { return 0, false }

// CachedAdd and CachedMul are the "cached" arithmetic operators from
// §4.7: the operation is fixed at build time and applied per hap during
// query, with no per-hap allocation beyond the value itself.
func CachedAdd[T Numeric](x float64, p Pattern[T]) Pattern[T] {
	return mapValues(p, func(v T) T { return T(float64(v) + x) })
}

func CachedMul[T Numeric](x float64, p Pattern[T]) Pattern[T] {
	return mapValues(p, func(v T) T { return T(float64(v) * x) })
}

func mapValues[T any](p Pattern[T], f func(T) T) Pattern[T] {
	return Pattern[T]{Query: func(st State) []Hap[T] {
		haps := p.Query(st)
		out := make([]Hap[T], len(haps))
		for i, h := range haps {
			h.Value = f(h.Value)
			out[i] = h
		}
		return out
	}}
}

// RootSpec is scale's tonic argument: either a fixed semitone offset or
// a pattern queried per hap to obtain the current tonic (§4.7, §9).
type RootSpec[T Numeric] struct {
	Fixed   T
	Dynamic *Pattern[T]
}

// scaleTable holds the small set of scales needed by the sequencer demo
// and tests; semitone offsets from the tonic within one octave.
var scaleTable = map[string][]int{
	"major":          {0, 2, 4, 5, 7, 9, 11},
	"minor":          {0, 2, 3, 5, 7, 8, 10},
	"dorian":         {0, 2, 3, 5, 7, 9, 10},
	"mixolydian":     {0, 2, 4, 5, 7, 9, 10},
	"majPentatonic":  {0, 2, 4, 7, 9},
	"minPentatonic":  {0, 3, 5, 7, 10},
	"chromatic":      {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// scaleSnapper maps an integer scale degree to an absolute semitone
// value for one (root, scaleName) pair, the unit the §10.1 cache is
// keyed by.
type scaleSnapper struct {
	root      float64
	intervals []int
}

func newScaleSnapper(root float64, intervals []int) *scaleSnapper {
	return &scaleSnapper{root: root, intervals: intervals}
}

func (s *scaleSnapper) snap(degree float64) float64 {
	n := len(s.intervals)
	d := int(degree)
	frac := degree - float64(d)
	octave := floorDiv(d, n)
	idx := d - octave*n
	return s.root + float64(octave*12) + float64(s.intervals[idx]) + frac
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Scale snaps each hap's value onto scaleName relative to root,
// resolving a dynamic root per hap (queried at the hap's start time) and
// memoizing a scaleSnapper per (root value, scaleName) for the life of
// the returned pattern, per the §9/§10.1 decision to cache rather than
// rebuild a snapper on every query.
func Scale[T Numeric](scaleName string, root RootSpec[T], p Pattern[T]) (Pattern[T], error) {
	intervals, ok := scaleTable[scaleName]
	if !ok {
		return Pattern[T]{}, fmt.Errorf("pattern: unknown scale %q", scaleName)
	}
	cache := map[float64]*scaleSnapper{}
	resolveRoot := func(st State, at Fraction) float64 {
		if root.Dynamic == nil {
			return float64(root.Fixed)
		}
		haps := root.Dynamic.Query(st.WithSpan(TimeSpan{Begin: at, End: at.Add(New(1, 1000000))}))
		if len(haps) == 0 {
			return 0
		}
		return float64(haps[0].Value)
	}
	return Pattern[T]{Query: func(st State) []Hap[T] {
		haps := p.Query(st)
		out := make([]Hap[T], len(haps))
		for i, h := range haps {
			rootVal := resolveRoot(st, h.Part.Begin)
			snapper, ok := cache[rootVal]
			if !ok {
				snapper = newScaleSnapper(rootVal, intervals)
				cache[rootVal] = snapper
			}
			h.Value = T(snapper.snap(float64(h.Value)))
			out[i] = h
		}
		return out
	}}, nil
}
