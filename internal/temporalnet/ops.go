package temporalnet

// GetTime computes the earliest (lower=true) or latest (lower=false) time at
// node n, relative to Z, by closing the network. Returns false if n is
// absent. Callers holding a dispatchable graph already computed via
// ComputeDispatchableGraph should prefer Minimal.Time, which avoids
// recomputing the closure.
func (net *Network) GetTime(n Node, lower bool) (float64, bool) {
	return net.FloydWarshall().Time(n, lower)
}

// IsConsistent reports whether net's minimal network has no negative cycle.
func (net *Network) IsConsistent() bool {
	return net.FloydWarshall().IsConsistent()
}

// ComputeDispatchableGraph runs the full-closure tightening (Floyd-Warshall,
// then a consistency check, then edge rewriting) and returns a new Network
// whose bounds are the minimal-network values. Returns ErrNoSTPSolution if
// the input is inconsistent.
func ComputeDispatchableGraph(stn *Network) (*Network, error) {
	minimal := stn.FloydWarshall()
	if !minimal.IsConsistent() {
		return nil, ErrNoSTPSolution
	}
	dispatchable := stn.Clone()
	minimal.ApplyTo(dispatchable)
	return dispatchable, nil
}

// AssignTimepoint sets both bounds at node n equal to t (seconds relative to
// Z), collapsing its window to a single instant. If force is false, the
// assignment is rejected (network left unmodified) when it would make the
// network inconsistent; if force is true, the bound is applied regardless,
// allowing the caller to detect and recover from the resulting inconsistency
// separately (matching the monitor's force=true timepoint updates from
// execution progress).
func (net *Network) AssignTimepoint(n Node, t float64, force bool) error {
	if !force {
		trial := net.Clone()
		trial.SetBound(Z, n, t)
		trial.SetBound(n, Z, -t)
		if !trial.IsConsistent() {
			return ErrNoSTPSolution
		}
	}
	net.SetBound(Z, n, t)
	net.SetBound(n, Z, -t)
	return nil
}

// ExecuteEdge sets the edge between two already-assigned nodes to [d, d],
// replacing its previous bounds, d the already-observed difference
// time(to) - time(from) read from each node's own lower bound relative to Z
// (no closure is computed), recording that the segment's actual duration is
// now known with zero remaining slack, mirroring the monitor's execute_edge
// step once both a segment's endpoints are observed. A no-op if either node
// is absent from the network.
func (net *Network) ExecuteEdge(from, to Node) {
	i, ok := net.index[from]
	if !ok {
		return
	}
	j, ok := net.index[to]
	if !ok {
		return
	}
	z := net.index[Z]
	d := net.dist[i*net.n+z] - net.dist[j*net.n+z]
	net.dist[i*net.n+j] = d
	net.dist[j*net.n+i] = -d
}
