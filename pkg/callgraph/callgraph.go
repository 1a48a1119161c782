// Package callgraph implements call-graph recovery (C7): partitioning a
// flow.Graph into procedures (nodes reachable from a call target without
// crossing another call edge), then computing strongly connected components
// over the resulting procedure-call relation and emitting procedures in
// reverse topological order — so compiling them in that order never forward
// -references a callee that hasn't been emitted yet, matching
// original_source/c8compile.rs's "last node popped from the call graph
// becomes run_game/main" convention.
//
// Grounded on spec §4.5/§9 directly; no corpus repo implements call-graph
// recovery or SCC partitioning (justified stdlib-only in DESIGN.md).
package callgraph

import (
	"sort"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/flow"
)

// ProcID indexes a recovered procedure.
type ProcID int

// Procedure is a maximal set of flow-graph nodes reachable from Entry
// without crossing a Call edge.
type Procedure struct {
	Entry flow.NodeID
	Nodes []flow.NodeID
}

// CallGraph is the recovered set of procedures plus the call edges between
// them (Caller calls Callee at least once).
type CallGraph struct {
	Procedures []Procedure
	Edges      map[ProcID][]ProcID
	// Recursive lists the procedures whose mutual calls formed a
	// multi-member strongly connected component. These are still emitted
	// as separate, ordinary procedures; they are not merged or restructured,
	// and nothing is logged about them.
	Recursive []ProcID
}

// Build partitions g into procedures rooted at each of the given entry
// points (typically the analysis entry plus every distinct Call edge
// target discovered by the driver), then computes the emission order.
func Build(g *flow.Graph, entries []flow.NodeID) *CallGraph {
	procOf := make(map[flow.NodeID]ProcID)
	var procs []Procedure

	entrySet := make(map[flow.NodeID]bool, len(entries))
	for _, e := range entries {
		entrySet[e] = true
	}

	for _, entry := range entries {
		if _, done := procOf[entry]; done {
			continue
		}
		id := ProcID(len(procs))
		nodes := collectProcedure(g, entry, entrySet)
		for _, n := range nodes {
			procOf[n] = id
		}
		procs = append(procs, Procedure{Entry: entry, Nodes: nodes})
	}

	edges := make(map[ProcID][]ProcID)
	for callerID, proc := range procs {
		for _, n := range proc.Nodes {
			for _, e := range g.Node(n).Edges {
				if e.Kind != analyzer.Call {
					continue
				}
				if calleeID, ok := procOf[e.To]; ok {
					addEdge(edges, ProcID(callerID), calleeID)
				}
			}
		}
	}

	cg := &CallGraph{Procedures: procs, Edges: edges}
	cg.Recursive = recursiveComponents(len(procs), edges)
	return cg
}

func addEdge(edges map[ProcID][]ProcID, from, to ProcID) {
	for _, existing := range edges[from] {
		if existing == to {
			return
		}
	}
	edges[from] = append(edges[from], to)
}

// collectProcedure does a breadth-first walk of g from entry, following
// every edge except Call (4) and Return (5), and stopping at any node that
// is itself a different procedure's entry point.
func collectProcedure(g *flow.Graph, entry flow.NodeID, entrySet map[flow.NodeID]bool) []flow.NodeID {
	seen := map[flow.NodeID]bool{entry: true}
	queue := []flow.NodeID{entry}
	var nodes []flow.NodeID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		nodes = append(nodes, id)
		for _, e := range g.Node(id).Edges {
			if e.Kind == analyzer.Call || e.Kind == analyzer.Return {
				continue
			}
			if entrySet[e.To] && e.To != entry {
				continue
			}
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Order returns procedure ids in reverse topological order of the call
// relation: callees before callers, so the last id in the slice is always
// an entry procedure (spec's "last node popped becomes main/run_game").
// Recursive components are emitted together, in ascending ProcID order,
// at the point their component is reached.
func (cg *CallGraph) Order() []ProcID {
	n := len(cg.Procedures)
	comp := tarjanSCC(n, cg.Edges)

	// Group procedures by component, then topologically order components
	// by the condensed call relation, and finally flatten callees-first.
	byComp := make(map[int][]ProcID)
	for p, c := range comp {
		byComp[c] = append(byComp[c], ProcID(p))
	}
	condensed := make(map[int][]int)
	for from, tos := range cg.Edges {
		for _, to := range tos {
			cf, ct := comp[from], comp[to]
			if cf != ct {
				condensed[cf] = append(condensed[cf], ct)
			}
		}
	}

	var order []int
	visited := make(map[int]bool)
	var visit func(int)
	visit = func(c int) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, next := range condensed[c] {
			visit(next)
		}
		order = append(order, c) // post-order: callees appended before their caller
	}
	comps := make([]int, 0, len(byComp))
	for c := range byComp {
		comps = append(comps, c)
	}
	sort.Ints(comps)
	for _, c := range comps {
		visit(c)
	}

	var result []ProcID
	for _, c := range order {
		members := byComp[c]
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		result = append(result, members...)
	}
	return result
}

// recursiveComponents returns the ids of every procedure belonging to a
// strongly connected component with more than one member.
func recursiveComponents(n int, edges map[ProcID][]ProcID) []ProcID {
	comp := tarjanSCC(n, edges)
	size := make(map[int]int)
	for _, c := range comp {
		size[c]++
	}
	var recursive []ProcID
	for p, c := range comp {
		if size[c] > 1 {
			recursive = append(recursive, ProcID(p))
		}
	}
	sort.Slice(recursive, func(i, j int) bool { return recursive[i] < recursive[j] })
	return recursive
}

// tarjanSCC computes strongly connected components over n nodes (0..n-1)
// and the given adjacency, returning each node's component index.
func tarjanSCC(n int, edges map[ProcID][]ProcID) map[ProcID]int {
	index := make(map[ProcID]int)
	lowlink := make(map[ProcID]int)
	onStack := make(map[ProcID]bool)
	comp := make(map[ProcID]int)
	var stack []ProcID
	counter := 0
	compCount := 0

	var strongconnect func(v ProcID)
	strongconnect = func(v ProcID) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, ok := index[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = compCount
				if w == v {
					break
				}
			}
			compCount++
		}
	}

	for v := ProcID(0); v < ProcID(n); v++ {
		if _, ok := index[v]; !ok {
			strongconnect(v)
		}
	}
	return comp
}
