package pattern

// Kind tags the shape of a parsed mini-notation node. Node itself is a
// single flat struct with fields used selectively by Kind, mirroring
// the teacher's internal/mml.Event convention of one struct carrying
// every variant's fields rather than a sum of small types.
type Kind int

const (
	KindAtom Kind = iota
	KindRest
	KindSeq     // whitespace-separated elements sharing a cycle (fastcat)
	KindStack   // comma-separated alternatives
	KindSlowSub // <a b c>, one child per cycle
)

// EuclidArgs holds a parsed `(k,n[,r])` rhythm modifier.
type EuclidArgs struct {
	K, N, R int
}

// Node is one parsed mini-notation term. Children holds sub-terms for
// KindSeq/KindStack/KindSlowSub. Fast/Slow/Euclid/Degrade are modifiers
// applied to this node itself (`x*2`, `x/2`, `x(3,8)`, `x?`); Weight is
// read by the parent Seq builder for `x@n`.
type Node struct {
	Kind     Kind
	Text     string
	Span     SourceSpan
	Children []Node

	Weight  Fraction
	Fast    *Fraction
	Slow    *Fraction
	Euclid  *EuclidArgs
	Degrade *float64
}

// PipeOp is one `$ name(args)` stage in a top-level operator chain.
type PipeOp struct {
	Name string
	Args []string
	Span SourceSpan
}

// Parsed is the result of parsing one mini-notation string: the base
// expression tree plus any trailing operator-pipe chain.
type Parsed struct {
	Base  Node
	Pipes []PipeOp
}
