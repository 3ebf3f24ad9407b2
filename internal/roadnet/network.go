package roadnet

// DistanceFunc is the environment's distance oracle. ok is false when the
// pair is disconnected or unknown to the environment.
type DistanceFunc func(from, to int64) (float64, bool)

// Network is the static road graph handed to the solver by the environment.
// Adjacency is directed: Adjacency[n] lists the nodes reachable from n in
// one hop. The oracle gives the real distance between two nodes.
type Network struct {
	Adjacency map[int64][]int64
	Distance  DistanceFunc
}

// Nodes returns every node mentioned in the adjacency structure, as keys or
// as neighbors.
func (n *Network) Nodes() []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(n.Adjacency))
	for from, tos := range n.Adjacency {
		if _, ok := seen[from]; !ok {
			seen[from] = struct{}{}
			out = append(out, from)
		}
		for _, to := range tos {
			if _, ok := seen[to]; !ok {
				seen[to] = struct{}{}
				out = append(out, to)
			}
		}
	}
	return out
}

// EdgeDistance returns the oracle distance between two adjacent nodes,
// falling back to DefaultEdgeDistance when the oracle has no answer.
func (n *Network) EdgeDistance(from, to int64) float64 {
	if n.Distance != nil {
		if d, ok := n.Distance(from, to); ok && d > 0 {
			return d
		}
	}
	return DefaultEdgeDistance
}

// DefaultEdgeDistance stands in for pairs the oracle cannot price.
const DefaultEdgeDistance = 50.0
