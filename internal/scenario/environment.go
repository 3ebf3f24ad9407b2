package scenario

import (
	"sync"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// Environment adapts a parsed Document to the solver's planning interface.
// The distance oracle is all-pairs shortest path over the declared edges,
// computed lazily one source at a time and memoized, so small scenarios
// never pay for a full matrix.
type Environment struct {
	skus       map[string]model.SKU
	orders     map[string]model.Order
	orderIDs   []string
	vehicles   map[string]model.Vehicle
	vehicleIDs []string
	warehouses map[string]model.Warehouse
	net        *roadnet.Network
	planner    *roadnet.Planner

	mu   sync.Mutex
	dist map[int64]map[int64]float64 // per-source shortest distances
}

// NewEnvironment builds the solver view of a validated document.
func NewEnvironment(doc *Document) *Environment {
	e := &Environment{
		skus:       map[string]model.SKU{},
		orders:     map[string]model.Order{},
		vehicles:   map[string]model.Vehicle{},
		warehouses: map[string]model.Warehouse{},
		dist:       map[int64]map[int64]float64{},
	}
	for _, s := range doc.SKUs {
		e.skus[s.ID] = model.SKU{ID: s.ID, Weight: s.Weight, Volume: s.Volume}
	}
	for _, o := range doc.Orders {
		reqs := make(map[string]int, len(o.Requirements))
		for k, v := range o.Requirements {
			reqs[k] = v
		}
		e.orders[o.ID] = model.Order{ID: o.ID, Node: o.Node, Requirements: reqs}
		e.orderIDs = append(e.orderIDs, o.ID)
	}
	for _, w := range doc.Warehouses {
		inv := make(map[string]int, len(w.Inventory))
		for k, v := range w.Inventory {
			inv[k] = v
		}
		e.warehouses[w.ID] = model.Warehouse{ID: w.ID, Node: w.Node, Inventory: inv}
	}
	for _, v := range doc.Vehicles {
		e.vehicles[v.ID] = model.Vehicle{
			ID:              v.ID,
			Type:            v.vehicleType(),
			CapacityWeight:  v.CapacityWeight,
			CapacityVolume:  v.CapacityVolume,
			MaxDistance:     v.MaxDistance,
			HomeWarehouseID: v.HomeWarehouse,
		}
		e.vehicleIDs = append(e.vehicleIDs, v.ID)
	}

	adjacency := map[int64][]int64{}
	direct := map[int64]map[int64]float64{}
	addEdge := func(from, to int64, d float64) {
		adjacency[from] = append(adjacency[from], to)
		if direct[from] == nil {
			direct[from] = map[int64]float64{}
		}
		direct[from][to] = d
	}
	for _, ed := range doc.Edges {
		addEdge(ed.From, ed.To, ed.Distance)
		if !ed.Oneway {
			addEdge(ed.To, ed.From, ed.Distance)
		}
	}
	// Warehouse and order nodes belong to the graph even when no edge
	// mentions them; they are just unreachable.
	for _, w := range e.warehouses {
		if _, ok := adjacency[w.Node]; !ok {
			adjacency[w.Node] = nil
		}
	}
	for _, o := range e.orders {
		if _, ok := adjacency[o.Node]; !ok {
			adjacency[o.Node] = nil
		}
	}

	e.net = &roadnet.Network{
		Adjacency: adjacency,
		Distance: func(from, to int64) (float64, bool) {
			d, ok := direct[from][to]
			return d, ok
		},
	}
	e.planner = roadnet.NewPlanner(e.net)
	return e
}

func (e *Environment) OrderIDs() []string { return e.orderIDs }

func (e *Environment) OrderRequirements(orderID string) map[string]int {
	if o, ok := e.orders[orderID]; ok {
		return o.Requirements
	}
	return nil
}

func (e *Environment) OrderLocation(orderID string) (int64, bool) {
	o, ok := e.orders[orderID]
	return o.Node, ok
}

func (e *Environment) SKU(skuID string) (model.SKU, bool) {
	s, ok := e.skus[skuID]
	return s, ok
}

func (e *Environment) VehicleIDs() []string { return e.vehicleIDs }

func (e *Environment) Vehicle(vehicleID string) (model.Vehicle, bool) {
	v, ok := e.vehicles[vehicleID]
	return v, ok
}

func (e *Environment) Warehouse(warehouseID string) (model.Warehouse, bool) {
	w, ok := e.warehouses[warehouseID]
	return w, ok
}

func (e *Environment) WarehouseInventory(warehouseID string) map[string]int {
	if w, ok := e.warehouses[warehouseID]; ok {
		return w.Inventory
	}
	return nil
}

func (e *Environment) Network() *roadnet.Network { return e.net }

// Distance answers shortest-path distance between any two nodes, memoizing
// one full single-source run per distinct source. Safe for concurrent use.
func (e *Environment) Distance(from, to int64) (float64, bool) {
	if from == to {
		return 0, true
	}
	e.mu.Lock()
	row, ok := e.dist[from]
	if !ok {
		row = e.planner.Distances(from)
		e.dist[from] = row
	}
	e.mu.Unlock()
	d, ok := row[to]
	return d, ok
}
