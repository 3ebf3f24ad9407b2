package solver

import (
	"math"

	"fleetroute/internal/roadnet"
)

// Route is one vehicle's mutable assignment: an order list plus derived
// cost. Cost is always recomputed from scratch when membership changes,
// never incrementally trusted.
type Route struct {
	VehicleID   string
	WarehouseID string
	HomeNode    int64
	Orders      []string
	Distance    float64
	Cost        float64
	Valid       bool
}

func NewRoute(vehicleID, warehouseID string, homeNode int64) *Route {
	return &Route{
		VehicleID:   vehicleID,
		WarehouseID: warehouseID,
		HomeNode:    homeNode,
		Valid:       true,
	}
}

func (r *Route) AddOrder(orderID string) {
	r.Orders = append(r.Orders, orderID)
}

func (r *Route) RemoveOrder(orderID string) {
	for i, id := range r.Orders {
		if id == orderID {
			r.Orders = append(r.Orders[:i], r.Orders[i+1:]...)
			return
		}
	}
}

func (r *Route) HasOrder(orderID string) bool {
	for _, id := range r.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

// Clone is an explicit snapshot so trial mutations never alias the
// committed state.
func (r *Route) Clone() *Route {
	out := *r
	out.Orders = append([]string(nil), r.Orders...)
	return &out
}

// Evaluate recomputes the route's distance and cost by visiting its orders
// in sequence. It returns +Inf (and marks the route invalid) when any leg is
// unreachable: unreachable candidates are rejected, never retried.
func (r *Route) Evaluate(env Environment, p *roadnet.Planner, cfg Config) float64 {
	if len(r.Orders) == 0 {
		r.Distance = 0
		r.Cost = 0
		r.Valid = true
		return 0
	}
	total := 0.0
	current := r.HomeNode
	for _, orderID := range r.Orders {
		node, ok := env.OrderLocation(orderID)
		if !ok {
			return r.invalidate()
		}
		if _, ok := p.FindPath(cfg.PathAlgo, current, node, cfg.pathLimit()); !ok {
			return r.invalidate()
		}
		d, ok := env.Distance(current, node)
		if !ok {
			return r.invalidate()
		}
		total += d
		current = node
	}
	d, ok := env.Distance(current, r.HomeNode)
	if !ok {
		return r.invalidate()
	}
	total += d
	r.Distance = total
	r.Cost = total // cost model: cost == distance
	r.Valid = true
	return total
}

func (r *Route) invalidate() float64 {
	r.Distance = math.Inf(1)
	r.Cost = math.Inf(1)
	r.Valid = false
	return r.Cost
}
