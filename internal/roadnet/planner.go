package roadnet

import (
	"math"
	"strconv"

	"github.com/katalvlaran/lvlath/bfs"
	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"
)

// Algorithm selects how FindPath explores the graph.
type Algorithm string

const (
	// AlgoBFS finds the path with the fewest edges, treating every edge as
	// unit cost. Cheap, but a fewest-hop path can be much longer in real
	// distance.
	AlgoBFS Algorithm = "bfs"
	// AlgoDijkstra finds the path minimizing cumulative oracle distance.
	// Preferred whenever the environment prices edges.
	AlgoDijkstra Algorithm = "dijkstra"
)

// weightScale converts oracle distances to the integer weights the graph
// library works with. Three decimal places survive the round trip.
const weightScale = 1000

// Planner answers node-to-node path queries over a static Network. It keeps
// two prepared graphs: an unweighted one for hop-count search and a weighted
// one for distance search. Build it once per solve; queries are read-only.
type Planner struct {
	net *Network
	hop *core.Graph
	wtd *core.Graph
}

// NewPlanner prepares the search graphs for net. Edges the oracle cannot
// price are still traversable by BFS but carry the default distance for
// Dijkstra, so an unpriced edge never makes a route look free.
func NewPlanner(net *Network) *Planner {
	hop := core.NewGraph(core.WithDirected(true))
	wtd := core.NewGraph(core.WithDirected(true), core.WithWeighted())
	for _, n := range net.Nodes() {
		id := nodeKey(n)
		_ = hop.AddVertex(id)
		_ = wtd.AddVertex(id)
	}
	type pair struct{ from, to int64 }
	seen := map[pair]struct{}{}
	for from, tos := range net.Adjacency {
		for _, to := range tos {
			if from == to {
				continue
			}
			if _, dup := seen[pair{from, to}]; dup {
				continue
			}
			seen[pair{from, to}] = struct{}{}
			w := int64(net.EdgeDistance(from, to)*weightScale + 0.5)
			if w < 1 {
				w = 1
			}
			_, _ = hop.AddEdge(nodeKey(from), nodeKey(to), 0)
			_, _ = wtd.AddEdge(nodeKey(from), nodeKey(to), w)
		}
	}
	return &Planner{net: net, hop: hop, wtd: wtd}
}

// FindPath returns the node sequence from start to end inclusive, or
// ok=false when no path exists within the limit. The limit bounds work on
// degenerate graphs: for BFS it caps path length in hops, for Dijkstra it
// caps the explored distance in oracle units. limit <= 0 means unbounded.
// Missing or disconnected nodes yield ok=false, never an error.
func (p *Planner) FindPath(algo Algorithm, start, end int64, limit float64) ([]int64, bool) {
	if start == end {
		return []int64{start}, true
	}
	if !p.hop.HasVertex(nodeKey(start)) || !p.hop.HasVertex(nodeKey(end)) {
		return nil, false
	}
	switch algo {
	case AlgoBFS:
		return p.hopPath(start, end, int(limit))
	default:
		return p.shortestPath(start, end, limit)
	}
}

func (p *Planner) hopPath(start, end int64, maxHops int) ([]int64, bool) {
	opts := []bfs.Option{}
	if maxHops > 0 {
		opts = append(opts, bfs.WithMaxDepth(maxHops))
	}
	res, err := bfs.BFS(p.hop, nodeKey(start), opts...)
	if err != nil {
		return nil, false
	}
	if _, reached := res.Depth[nodeKey(end)]; !reached {
		return nil, false
	}
	return walkParents(res.Parent, start, end)
}

func (p *Planner) shortestPath(start, end int64, maxDist float64) ([]int64, bool) {
	opts := []dijkstra.Option{dijkstra.Source(nodeKey(start)), dijkstra.WithReturnPath()}
	if maxDist > 0 {
		opts = append(opts, dijkstra.WithMaxDistance(int64(maxDist*weightScale)))
	}
	dist, prev, err := dijkstra.Dijkstra(p.wtd, opts...)
	if err != nil {
		return nil, false
	}
	if d, reached := dist[nodeKey(end)]; !reached || d == math.MaxInt64 {
		return nil, false
	}
	return walkParents(prev, start, end)
}

// walkParents rebuilds the start..end node sequence from a predecessor map.
func walkParents(parent map[string]string, start, end int64) ([]int64, bool) {
	path := []int64{end}
	cur := nodeKey(end)
	startKey := nodeKey(start)
	for cur != startKey {
		prev, ok := parent[cur]
		if !ok || prev == "" {
			return nil, false
		}
		n, err := strconv.ParseInt(prev, 10, 64)
		if err != nil {
			return nil, false
		}
		path = append(path, n)
		cur = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

// Distances runs an uncapped single-source shortest-path query and returns
// the distance to every reachable node, in oracle units. Unreachable nodes
// are absent from the map.
func (p *Planner) Distances(from int64) map[int64]float64 {
	out := map[int64]float64{}
	if !p.wtd.HasVertex(nodeKey(from)) {
		return out
	}
	dist, _, err := dijkstra.Dijkstra(p.wtd, dijkstra.Source(nodeKey(from)))
	if err != nil {
		return out
	}
	for key, d := range dist {
		if d == math.MaxInt64 {
			continue
		}
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		out[n] = float64(d) / weightScale
	}
	return out
}

// PathDistance sums oracle distances along consecutive nodes of a path.
func (p *Planner) PathDistance(path []int64) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		total += p.net.EdgeDistance(path[i], path[i+1])
	}
	return total
}

func nodeKey(n int64) string { return strconv.FormatInt(n, 10) }
