// Package flow implements the control-flow graph (C5): an owned, integer-id
// indexed container of basic blocks and typed edges between them, built
// incrementally by the driver (C6) as analysis discovers new instructions
// and targets.
package flow

import (
	"fmt"
	"sort"

	"github.com/DealPete/decompiler/pkg/analyzer"
	"github.com/DealPete/decompiler/pkg/arch"
)

// NodeID indexes a Node within a Graph. IDs are stable once assigned but a
// node-split reassigns the instructions after the split point to a new ID,
// per spec's node-splitting invariant.
type NodeID int

// Edge is one outgoing control-flow edge from a node.
type Edge struct {
	Kind analyzer.EdgeKind
	To   NodeID
}

// Node is a maximal straight-line instruction sequence sharing one entry
// point: every instruction in Instructions falls through to the next except
// possibly the last, which transfers control via Edges.
type Node struct {
	Entry        analyzer.Location
	Instructions []arch.Instruction
	Edges        []Edge
}

// Graph owns all nodes by integer id, plus the location-to-node index used
// to detect when a newly discovered address already lives mid-block.
type Graph struct {
	nodes    map[NodeID]*Node
	byOffset map[int]NodeID // instruction offset -> owning node
	nextID   NodeID
}

// Snapshot is Graph's gob-serializable form, used by pkg/driver's cache.
type Snapshot struct {
	Nodes  map[NodeID]*Node
	NextID NodeID
}

// Snapshot captures g for persistence.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: g.nodes, NextID: g.nextID}
}

// FromSnapshot rebuilds a Graph from a previously captured Snapshot,
// reconstructing the offset index that Snapshot itself does not carry.
func FromSnapshot(s Snapshot) *Graph {
	g := &Graph{nodes: s.Nodes, byOffset: make(map[int]NodeID), nextID: s.NextID}
	for id, n := range g.nodes {
		for _, inst := range n.Instructions {
			g.byOffset[inst.Offset] = id
		}
	}
	return g
}

// NewGraph returns an empty flow graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node), byOffset: make(map[int]NodeID)}
}

// NodeAt returns the node owning offset, if any.
func (g *Graph) NodeAt(offset int) (NodeID, bool) {
	id, ok := g.byOffset[offset]
	return id, ok
}

// Node returns the node for id.
func (g *Graph) Node(id NodeID) *Node {
	return g.nodes[id]
}

// Nodes returns every node id in ascending order, for deterministic
// iteration (printing, call-graph partitioning).
func (g *Graph) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NewNode creates a fresh node starting at entry with no instructions yet,
// and returns its id.
func (g *Graph) NewNode(entry analyzer.Location) NodeID {
	id := g.nextID
	g.nextID++
	g.nodes[id] = &Node{Entry: entry}
	return id
}

// Append adds inst to the end of node id's instruction sequence and indexes
// its offset.
func (g *Graph) Append(id NodeID, inst arch.Instruction) {
	n := g.nodes[id]
	n.Instructions = append(n.Instructions, inst)
	g.byOffset[inst.Offset] = id
}

// AddEdge records an outgoing edge from node id.
func (g *Graph) AddEdge(id NodeID, kind analyzer.EdgeKind, to NodeID) {
	n := g.nodes[id]
	for _, e := range n.Edges {
		if e.Kind == kind && e.To == to {
			return
		}
	}
	n.Edges = append(n.Edges, Edge{Kind: kind, To: to})
}

// Split breaks node id in two at the instruction whose offset is
// splitOffset: the prefix stays in id, the suffix (splitOffset onward)
// moves to a new node, which inherits id's outgoing edges, and id gains a
// single fall-through edge into it. It returns the new node's id.
//
// This is required whenever analysis discovers a jump target that lands
// mid-block in an already-built node — spec's invariant that every offset
// belongs to exactly one node, and every edge target's entry equals the
// target offset, would otherwise be violated.
func (g *Graph) Split(id NodeID, splitOffset int) (NodeID, error) {
	n := g.nodes[id]
	idx := -1
	for i, inst := range n.Instructions {
		if inst.Offset == splitOffset {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return 0, fmt.Errorf("flow: split offset %#x is not a mid-block instruction of node %d", splitOffset, id)
	}

	newID := g.nextID
	g.nextID++
	suffix := append([]arch.Instruction(nil), n.Instructions[idx:]...)
	g.nodes[newID] = &Node{
		Entry:        analyzer.Location{CS: n.Entry.CS, IP: uint16(splitOffset)},
		Instructions: suffix,
		Edges:        n.Edges,
	}
	for _, inst := range suffix {
		g.byOffset[inst.Offset] = newID
	}

	n.Instructions = n.Instructions[:idx]
	n.Edges = []Edge{{Kind: analyzer.FallThrough, To: newID}}
	return newID, nil
}
