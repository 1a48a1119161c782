// Package driver implements the analysis driver (C6): a worklist-based
// fixpoint algorithm that walks an Architecture's decode and an Analyzer's
// Step function outward from an entry point, populating a flow.Graph and
// accumulating abstract state per visited location until every reachable
// location's state has converged.
//
// Grounded on pkg/search/search.go's Config+Run(cfg) shape and
// pkg/search/worker.go's worklist-popping loop, adapted to be
// single-threaded and pure per spec §5 — no goroutines, no sync, no
// WorkerPool. That concurrency is deliberately not ported; see DESIGN.md.
package driver

import (
	"fmt"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
	"github.com/DealPete/decompiler/pkg/flow"
	"github.com/DealPete/decompiler/pkg/state"
)

// Config describes one analysis run, mirroring the teacher's Config+Run
// pattern (pkg/search/search.go's Config{MaxTargetLen, MaxCandLen,
// NumWorkers, Verbose}).
type Config[S state.Abstract[S]] struct {
	Arch     arch.Architecture
	Analyzer analyzer.Analyzer[S]
	Buffer   []byte
	Entry    analyzer.Location
	Initial  S
	Verbose  bool
}

// returnSite records where control returns to after a CALL, and the
// procedure context the call site itself was executing within, so that
// context can be resumed once the callee reaches RET.
type returnSite struct {
	target    analyzer.Location
	procEntry analyzer.Location
}

// Result is the outcome of a completed analysis run: the recovered flow
// graph and the converged state at every visited location.
type Result[S any] struct {
	Graph   *flow.Graph
	Visited map[analyzer.Location]S
}

// workItem carries a location and state to process, plus the entry
// location of the procedure it is currently executing within — tracked by
// the driver rather than by the abstract state, since CALL/RET targets are
// always statically known entries (DESIGN.md, pkg/driver).
// A RET's return edges are resolved by looking up every call site ever
// recorded against procEntry, per spec's "the fall-through edge is
// generated later when the callee's abstract return is reached".
type workItem[S any] struct {
	loc       analyzer.Location
	state     S
	procEntry analyzer.Location
}

// Run executes the worklist fixpoint algorithm described above. It returns
// an error if decode fails or the analyzer reports an unresolvable
// (AnyValue) control-flow target anywhere on the reachable path — both are
// treated as fatal per spec §7, not swallowed or skipped.
func Run[S state.Abstract[S]](cfg Config[S]) (*Result[S], error) {
	g := flow.NewGraph()
	visited := make(map[analyzer.Location]S)
	pendingReturns := make(map[analyzer.Location][]returnSite)
	nodeOf := make(map[analyzer.Location]flow.NodeID)

	worklist := []workItem[S]{{loc: cfg.Entry, state: cfg.Initial, procEntry: cfg.Entry}}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]
		loc, st := item.loc, item.state

		if prior, ok := visited[loc]; ok {
			if st.IsSubset(prior) {
				continue // already converged for this location
			}
			st = st.Union(prior)
		}
		visited[loc] = st

		nodeID := ensureNode(g, nodeOf, loc)

		inst, err := cfg.Arch.Decode(cfg.Buffer, int(loc.IP))
		if err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}
		g.Append(nodeID, inst)

		successors, err := cfg.Analyzer.Step(st, loc, inst)
		if err != nil {
			return nil, fmt.Errorf("driver: %w", err)
		}

		for _, succ := range successors {
			switch succ.Kind {
			case analyzer.Call:
				calleeID, err := ensureNodeForEdge(g, nodeOf, succ.Target)
				if err != nil {
					return nil, err
				}
				g.AddEdge(nodeID, analyzer.Call, calleeID)
				returnTo := analyzer.Location{CS: loc.CS, IP: uint16(inst.Offset + inst.Length)}
				pendingReturns[succ.Target] = append(pendingReturns[succ.Target], returnSite{target: returnTo, procEntry: item.procEntry})
				worklist = append(worklist, workItem[S]{loc: succ.Target, state: succ.State, procEntry: succ.Target})

			case analyzer.Return:
				for _, rs := range pendingReturns[item.procEntry] {
					toID, err := ensureNodeForEdge(g, nodeOf, rs.target)
					if err != nil {
						return nil, err
					}
					g.AddEdge(nodeID, analyzer.Return, toID)
					worklist = append(worklist, workItem[S]{loc: rs.target, state: succ.State, procEntry: rs.procEntry})
				}

			case analyzer.FallThrough:
				// A straight-line continuation stays in the current node
				// unless its target is already a distinct node (a merge
				// point reached some other way) — otherwise every
				// instruction would end up in its own singleton node.
				if _, ok := nodeOf[succ.Target]; !ok {
					nodeOf[succ.Target] = nodeID
				} else if nodeOf[succ.Target] != nodeID {
					toID, err := ensureNodeForEdge(g, nodeOf, succ.Target)
					if err != nil {
						return nil, err
					}
					g.AddEdge(nodeID, analyzer.FallThrough, toID)
				}
				worklist = append(worklist, workItem[S]{loc: succ.Target, state: succ.State, procEntry: item.procEntry})

			default:
				toID, err := ensureNodeForEdge(g, nodeOf, succ.Target)
				if err != nil {
					return nil, err
				}
				g.AddEdge(nodeID, succ.Kind, toID)
				worklist = append(worklist, workItem[S]{loc: succ.Target, state: succ.State, procEntry: item.procEntry})
			}
		}
	}

	return &Result[S]{Graph: g, Visited: visited}, nil
}

// ensureNode returns the node loc should be appended to, creating one if
// this is the first time loc has been decoded.
func ensureNode(g *flow.Graph, nodeOf map[analyzer.Location]flow.NodeID, loc analyzer.Location) flow.NodeID {
	if id, ok := nodeOf[loc]; ok {
		return id
	}
	id := g.NewNode(loc)
	nodeOf[loc] = id
	return id
}

// ensureNodeForEdge resolves the node a successor edge should target,
// splitting an existing node if the target address lands mid-block.
func ensureNodeForEdge(g *flow.Graph, nodeOf map[analyzer.Location]flow.NodeID, target analyzer.Location) (flow.NodeID, error) {
	if id, ok := nodeOf[target]; ok {
		return id, nil
	}
	if existingID, ok := g.NodeAt(int(target.IP)); ok {
		newID, err := g.Split(existingID, int(target.IP))
		if err != nil {
			return 0, err
		}
		nodeOf[target] = newID
		return newID, nil
	}
	id := g.NewNode(target)
	nodeOf[target] = id
	return id, nil
}
