// Package analyzer defines the C4 contract: given an abstract state and the
// instruction at the current location, compute every abstract successor
// location and the state reaching it. The contract is generic over the
// per-architecture state type so x86 and chip8 each get a statically typed
// Step implementation without a shared state shape.
package analyzer

import (
	"fmt"

	"github.com/DealPete/decompiler/pkg/arch"
)

// Location is a (code segment, instruction pointer) pair. Flat architectures
// such as chip8 always use CS == 0.
type Location struct {
	CS uint16
	IP uint16
}

func (l Location) String() string {
	return fmt.Sprintf("%04x:%04x", l.CS, l.IP)
}

// EdgeKind classifies a control-flow successor, matching the six edge types
// the flow graph (C5) records.
type EdgeKind int

const (
	FallThrough EdgeKind = iota
	Jump
	BranchTaken
	BranchNotTaken
	Call
	Return
)

func (k EdgeKind) String() string {
	switch k {
	case FallThrough:
		return "fall-through"
	case Jump:
		return "jump"
	case BranchTaken:
		return "branch-taken"
	case BranchNotTaken:
		return "branch-not-taken"
	case Call:
		return "call"
	case Return:
		return "return"
	default:
		return "unknown"
	}
}

// Successor is one abstract continuation of executing an instruction: the
// state reaching it, and where. A Return successor carries no Target — the
// driver resolves it against every call site recorded for the enclosing
// procedure (spec's "the fall-through edge is generated later when the
// callee's abstract return is reached").
type Successor[S any] struct {
	Kind   EdgeKind
	State  S
	Target Location // unused (zero) when Kind == Return
}

// Analyzer computes the abstract successors of one instruction. An error
// return is fatal to the analysis path (decode failure, or a jump/call
// target that is AnyValue and therefore cannot be soundly enumerated) and is
// surfaced by the driver rather than silently dropped.
type Analyzer[S any] interface {
	Step(st S, loc Location, inst arch.Instruction) ([]Successor[S], error)
}

// ErrUnresolvedTarget is returned by a Step implementation when a jump,
// call, or branch target resolves to AnyValue — the driver cannot soundly
// enumerate an unbounded successor set, so analysis of that path must stop.
type ErrUnresolvedTarget struct {
	At   Location
	What string
}

func (e *ErrUnresolvedTarget) Error() string {
	return fmt.Sprintf("%s: %s target is not a bounded concrete set", e.At, e.What)
}
