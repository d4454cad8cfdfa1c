// Package temporalnet implements a Simple Temporal Network (STN) over task
// timepoints (start, pickup, delivery), represented as a dense distance
// matrix in the style of this corpus's matrix.Dense/FloydWarshall technique.
// It provides the all-pairs-shortest-path closure, consistency check, and
// dispatchable-graph computation a Timetable needs.
package temporalnet

import (
	"math"

	"github.com/google/uuid"
	"github.com/joeycumines/fleet-auction/internal/task"
)

// Node identifies one timepoint in the network: either the zero-timepoint
// anchor (the zero value, Z) or a (TaskID, Kind) pair belonging to a task.
type Node struct {
	TaskID uuid.UUID
	Kind   task.TimepointKind
}

// Z is the zero-timepoint anchor node every network carries; all other
// timepoints are constrained relative to it.
var Z = Node{}

// IsZ reports whether n is the zero-timepoint anchor.
func (n Node) IsZ() bool {
	return n == Z
}

// Network is a dense-matrix Simple Temporal Network. dist[i*n+j] holds the
// tightest known upper bound on timepoint(j) - timepoint(i); math.Inf(1)
// means "no constraint yet". The diagonal is always 0.
type Network struct {
	nodes []Node
	index map[Node]int
	dist  []float64
	n     int
}

// NewNetwork returns an empty network containing only the Z anchor.
func NewNetwork() *Network {
	net := &Network{
		index: make(map[Node]int, 16),
	}
	net.addNode(Z)
	return net
}

// addNode registers n if absent, growing the distance matrix, and returns
// its index.
func (net *Network) addNode(n Node) int {
	if i, ok := net.index[n]; ok {
		return i
	}
	old := net.n
	newN := old + 1
	grown := make([]float64, newN*newN)
	for i := 0; i < newN; i++ {
		for j := 0; j < newN; j++ {
			switch {
			case i == j:
				grown[i*newN+j] = 0
			case i < old && j < old:
				grown[i*newN+j] = net.dist[i*old+j]
			default:
				grown[i*newN+j] = math.Inf(1)
			}
		}
	}
	net.dist = grown
	net.n = newN
	net.nodes = append(net.nodes, n)
	net.index[n] = old
	return old
}

// NodeIndex returns the index of n and whether it is present.
func (net *Network) NodeIndex(n Node) (int, bool) {
	i, ok := net.index[n]
	return i, ok
}

// HasTask reports whether any of a task's three timepoints are present.
func (net *Network) HasTask(taskID uuid.UUID) bool {
	_, ok := net.index[Node{TaskID: taskID, Kind: task.Start}]
	return ok
}

// IsEmpty reports whether the network carries no task timepoints (only Z).
func (net *Network) IsEmpty() bool {
	return net.n <= 1
}

// SetBound tightens the directed edge from -> to so that
// timepoint(to) - timepoint(from) <= ub, adding either node if new.
func (net *Network) SetBound(from, to Node, ub float64) {
	i := net.addNode(from)
	j := net.addNode(to)
	if ub < net.dist[i*net.n+j] {
		net.dist[i*net.n+j] = ub
	}
}

// SetInterval constrains timepoint(to) - timepoint(from) to lie in [lb, ub],
// the standard two-edge distance-graph encoding of a bounded interval
// constraint.
func (net *Network) SetInterval(from, to Node, lb, ub float64) {
	net.SetBound(from, to, ub)
	net.SetBound(to, from, -lb)
}

// Clone deep-copies the network, used by the bidder to try a candidate
// insertion without mutating the robot's live timetable.
func (net *Network) Clone() *Network {
	out := &Network{
		nodes: append([]Node(nil), net.nodes...),
		index: make(map[Node]int, len(net.index)),
		dist:  append([]float64(nil), net.dist...),
		n:     net.n,
	}
	for k, v := range net.index {
		out.index[k] = v
	}
	return out
}

// RemoveTask drops a task's start/pickup/delivery nodes from the network and
// compacts the distance matrix. Returns ErrTaskNotFound if the task is
// absent.
func (net *Network) RemoveTask(taskID uuid.UUID) error {
	if !net.HasTask(taskID) {
		return ErrTaskNotFound
	}
	keep := make([]Node, 0, net.n)
	for _, n := range net.nodes {
		if n.TaskID == taskID {
			continue
		}
		keep = append(keep, n)
	}
	net.rebuild(keep)
	return nil
}

// rebuild recomputes the index and a fresh (non-constraining) matrix sized
// for keep, then restores the surviving pairwise bounds from the old matrix.
func (net *Network) rebuild(keep []Node) {
	oldIndex := net.index
	oldDist := net.dist
	oldN := net.n

	newN := len(keep)
	newIndex := make(map[Node]int, newN)
	newDist := make([]float64, newN*newN)
	for i := range keep {
		newIndex[keep[i]] = i
	}
	for i := 0; i < newN; i++ {
		for j := 0; j < newN; j++ {
			if i == j {
				newDist[i*newN+j] = 0
				continue
			}
			oi, iok := oldIndex[keep[i]]
			oj, jok := oldIndex[keep[j]]
			if iok && jok {
				newDist[i*newN+j] = oldDist[oi*oldN+oj]
			} else {
				newDist[i*newN+j] = math.Inf(1)
			}
		}
	}

	net.nodes = keep
	net.index = newIndex
	net.dist = newDist
	net.n = newN
}

// Nodes returns a snapshot of the network's node list, Z first.
func (net *Network) Nodes() []Node {
	return append([]Node(nil), net.nodes...)
}
