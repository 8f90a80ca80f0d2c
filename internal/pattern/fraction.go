// Package pattern implements the mini-notation pattern system (C7): a
// pattern is a function from a half-open cycle interval to the list of
// haps active within it. Time is kept as exact rationals (Fraction) so
// subdivision never accumulates floating-point drift.
package pattern

import "fmt"

// Fraction is a reduced rational number used for all pattern time
// arithmetic.
type Fraction struct {
	Num, Den int64
}

// FromInt builds an integer-valued Fraction.
func FromInt(n int64) Fraction { return Fraction{Num: n, Den: 1} }

// FromFloat approximates f as a Fraction with a fixed large denominator,
// for turning a continuously-varying playhead voltage into the exact
// rational span boundaries the query machinery needs.
func FromFloat(f float64) Fraction {
	const den = 1 << 20
	return New(int64(f*den), den)
}

// New builds and reduces num/den. Panics on a zero denominator, which
// can only happen from a programming error (malformed construction), not
// from parsed user input.
func New(num, den int64) Fraction {
	if den == 0 {
		panic("pattern: zero-denominator fraction")
	}
	return Fraction{Num: num, Den: den}.reduce()
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func (f Fraction) reduce() Fraction {
	if f.Den < 0 {
		f.Num, f.Den = -f.Num, -f.Den
	}
	g := gcd(f.Num, f.Den)
	return Fraction{Num: f.Num / g, Den: f.Den / g}
}

func (f Fraction) Add(o Fraction) Fraction {
	return New(f.Num*o.Den+o.Num*f.Den, f.Den*o.Den)
}

func (f Fraction) Sub(o Fraction) Fraction {
	return New(f.Num*o.Den-o.Num*f.Den, f.Den*o.Den)
}

func (f Fraction) Mul(o Fraction) Fraction {
	return New(f.Num*o.Num, f.Den*o.Den)
}

func (f Fraction) Div(o Fraction) Fraction {
	return New(f.Num*o.Den, f.Den*o.Num)
}

func (f Fraction) Neg() Fraction { return Fraction{Num: -f.Num, Den: f.Den} }

func (f Fraction) Cmp(o Fraction) int {
	l := f.Num * o.Den
	r := o.Num * f.Den
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func (f Fraction) Lt(o Fraction) bool  { return f.Cmp(o) < 0 }
func (f Fraction) Lte(o Fraction) bool { return f.Cmp(o) <= 0 }
func (f Fraction) Gt(o Fraction) bool  { return f.Cmp(o) > 0 }
func (f Fraction) Gte(o Fraction) bool { return f.Cmp(o) >= 0 }
func (f Fraction) Eq(o Fraction) bool  { return f.Cmp(o) == 0 }

// Floor returns the greatest integer <= f, using floor division for
// negative numerators (unlike Go's truncating integer /).
func (f Fraction) Floor() int64 {
	q := f.Num / f.Den
	if f.Num%f.Den != 0 && (f.Num < 0) != (f.Den < 0) {
		q--
	}
	return q
}

// CyclePos returns f's position within its own integer cycle, in [0, 1).
func (f Fraction) CyclePos() Fraction {
	return f.Sub(FromInt(f.Floor()))
}

func (f Fraction) Float64() float64 {
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	if f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

func min(a, b Fraction) Fraction {
	if a.Lte(b) {
		return a
	}
	return b
}

func maxFrac(a, b Fraction) Fraction {
	if a.Gte(b) {
		return a
	}
	return b
}
