package solver

import (
	"math"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// testEnv is a map-backed Environment for tests. Its distance oracle is
// all-pairs shortest paths over the declared edges.
type testEnv struct {
	skus       map[string]model.SKU
	orders     map[string]model.Order
	orderIDs   []string
	vehicles   map[string]model.Vehicle
	vehicleIDs []string
	warehouses map[string]model.Warehouse
	net        *roadnet.Network
	dist       map[int64]map[int64]float64
}

func (e *testEnv) OrderIDs() []string { return e.orderIDs }

func (e *testEnv) OrderRequirements(orderID string) map[string]int {
	if o, ok := e.orders[orderID]; ok {
		return o.Requirements
	}
	return nil
}

func (e *testEnv) OrderLocation(orderID string) (int64, bool) {
	o, ok := e.orders[orderID]
	return o.Node, ok
}

func (e *testEnv) SKU(skuID string) (model.SKU, bool) {
	s, ok := e.skus[skuID]
	return s, ok
}

func (e *testEnv) VehicleIDs() []string { return e.vehicleIDs }

func (e *testEnv) Vehicle(vehicleID string) (model.Vehicle, bool) {
	v, ok := e.vehicles[vehicleID]
	return v, ok
}

func (e *testEnv) Warehouse(warehouseID string) (model.Warehouse, bool) {
	w, ok := e.warehouses[warehouseID]
	return w, ok
}

func (e *testEnv) WarehouseInventory(warehouseID string) map[string]int {
	if w, ok := e.warehouses[warehouseID]; ok {
		return w.Inventory
	}
	return nil
}

func (e *testEnv) Network() *roadnet.Network { return e.net }

func (e *testEnv) Distance(from, to int64) (float64, bool) {
	if from == to {
		return 0, true
	}
	d, ok := e.dist[from][to]
	return d, ok
}

type testEdge struct {
	from, to int64
	dist     float64
}

// newTestEnv wires the maps and derives the oracle from the bidirectional
// edge list with Floyd-Warshall.
func newTestEnv(skus []model.SKU, orders []model.Order, vehicles []model.Vehicle, warehouses []model.Warehouse, edges []testEdge) *testEnv {
	e := &testEnv{
		skus:       map[string]model.SKU{},
		orders:     map[string]model.Order{},
		vehicles:   map[string]model.Vehicle{},
		warehouses: map[string]model.Warehouse{},
	}
	for _, s := range skus {
		e.skus[s.ID] = s
	}
	for _, o := range orders {
		e.orders[o.ID] = o
		e.orderIDs = append(e.orderIDs, o.ID)
	}
	for _, v := range vehicles {
		e.vehicles[v.ID] = v
		e.vehicleIDs = append(e.vehicleIDs, v.ID)
	}
	for _, w := range warehouses {
		e.warehouses[w.ID] = w
	}

	adjacency := map[int64][]int64{}
	direct := map[int64]map[int64]float64{}
	addEdge := func(a, b int64, d float64) {
		adjacency[a] = append(adjacency[a], b)
		if direct[a] == nil {
			direct[a] = map[int64]float64{}
		}
		direct[a][b] = d
	}
	nodeSet := map[int64]struct{}{}
	for _, ed := range edges {
		addEdge(ed.from, ed.to, ed.dist)
		addEdge(ed.to, ed.from, ed.dist)
		nodeSet[ed.from] = struct{}{}
		nodeSet[ed.to] = struct{}{}
	}

	nodes := make([]int64, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	dist := map[int64]map[int64]float64{}
	for _, a := range nodes {
		dist[a] = map[int64]float64{a: 0}
		for _, b := range nodes {
			if a == b {
				continue
			}
			if d, ok := direct[a][b]; ok {
				dist[a][b] = d
			} else {
				dist[a][b] = math.Inf(1)
			}
		}
	}
	for _, k := range nodes {
		for _, i := range nodes {
			for _, j := range nodes {
				if dist[i][k]+dist[k][j] < dist[i][j] {
					dist[i][j] = dist[i][k] + dist[k][j]
				}
			}
		}
	}
	e.dist = map[int64]map[int64]float64{}
	for _, a := range nodes {
		e.dist[a] = map[int64]float64{}
		for _, b := range nodes {
			if !math.IsInf(dist[a][b], 1) {
				e.dist[a][b] = dist[a][b]
			}
		}
	}

	e.net = &roadnet.Network{
		Adjacency: adjacency,
		Distance: func(from, to int64) (float64, bool) {
			d, ok := direct[from][to]
			return d, ok
		},
	}
	return e
}

// ringEnv is the shared fixture: six nodes on a ring, two warehouses, five
// orders, one truck per warehouse.
//
//	1(W1) - 2 - 3 - 4(W2) - 5 - 6 - 1
func ringEnv() *testEnv {
	skus := []model.SKU{
		{ID: "skuA", Weight: 1, Volume: 1},
		{ID: "skuB", Weight: 2, Volume: 2},
	}
	orders := []model.Order{
		{ID: "o1", Node: 2, Requirements: map[string]int{"skuA": 2}},
		{ID: "o2", Node: 3, Requirements: map[string]int{"skuA": 1, "skuB": 1}},
		{ID: "o3", Node: 5, Requirements: map[string]int{"skuB": 2}},
		{ID: "o4", Node: 6, Requirements: map[string]int{"skuA": 3}},
		{ID: "o5", Node: 3, Requirements: map[string]int{"skuB": 1}},
	}
	vehicles := []model.Vehicle{
		{ID: "v1", Type: model.MediumTruck, CapacityWeight: 40, CapacityVolume: 40, MaxDistance: 200, HomeWarehouseID: "w1"},
		{ID: "v2", Type: model.MediumTruck, CapacityWeight: 40, CapacityVolume: 40, MaxDistance: 200, HomeWarehouseID: "w2"},
	}
	warehouses := []model.Warehouse{
		{ID: "w1", Node: 1, Inventory: map[string]int{"skuA": 20, "skuB": 20}},
		{ID: "w2", Node: 4, Inventory: map[string]int{"skuA": 20, "skuB": 20}},
	}
	edges := []testEdge{
		{1, 2, 2}, {2, 3, 2}, {3, 4, 2}, {4, 5, 2}, {5, 6, 2}, {6, 1, 3},
	}
	return newTestEnv(skus, orders, vehicles, warehouses, edges)
}
