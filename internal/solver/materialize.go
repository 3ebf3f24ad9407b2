package solver

import (
	"math"
	"sort"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// Materialize expands a route into the explicit stop sequence the external
// executor consumes: one pickup stop at the home node, pass-through stops
// along each leg, a delivery stop per order, and the return leg. It returns
// ok=false when any leg is unreachable or the realized distance exceeds the
// vehicle's range — the caller then falls back to a smaller order set.
func Materialize(env Environment, p *roadnet.Planner, cfg Config, r *Route) (*model.RouteDoc, bool) {
	if len(r.Orders) == 0 {
		return nil, false
	}
	vehicle, ok := env.Vehicle(r.VehicleID)
	if !ok {
		return nil, false
	}
	if !FitsCapacity(env, vehicle, r.Orders, cfg.CapacityMargin) {
		return nil, false
	}
	if !HasInventory(env, r.WarehouseID, r.Orders) {
		return nil, false
	}

	sequence := deliverySequence(env, r.HomeNode, r.Orders)

	orderNodes := make([]int64, 0, len(sequence))
	for _, orderID := range sequence {
		node, ok := env.OrderLocation(orderID)
		if !ok {
			return nil, false
		}
		orderNodes = append(orderNodes, node)
	}
	estimated := EstimateRouteDistance(env, r.HomeNode, orderNodes)
	if !WithinDistanceBudget(estimated, vehicle, cfg.DistanceFactor) {
		return nil, false
	}

	// Aggregate pickups per SKU across all orders.
	allItems := map[string]int{}
	for _, orderID := range r.Orders {
		for skuID, qty := range env.OrderRequirements(orderID) {
			allItems[skuID] += qty
		}
	}
	pickups := make([]model.Pickup, 0, len(allItems))
	for _, skuID := range sortedKeys(allItems) {
		pickups = append(pickups, model.Pickup{WarehouseID: r.WarehouseID, SKUID: skuID, Quantity: allItems[skuID]})
	}

	steps := []model.Step{{NodeID: r.HomeNode, Pickups: pickups, Deliveries: []model.Delivery{}, Unloads: []model.Unload{}}}
	realized := 0.0
	current := r.HomeNode

	for i, orderID := range sequence {
		path, ok := p.FindPath(cfg.PathAlgo, current, orderNodes[i], cfg.pathLimit())
		if !ok {
			return nil, false
		}
		realized += p.PathDistance(path)
		for j := 1; j < len(path)-1; j++ {
			steps = append(steps, passThrough(path[j]))
		}
		reqs := env.OrderRequirements(orderID)
		deliveries := make([]model.Delivery, 0, len(reqs))
		for _, skuID := range sortedKeys(reqs) {
			deliveries = append(deliveries, model.Delivery{OrderID: orderID, SKUID: skuID, Quantity: reqs[skuID]})
		}
		steps = append(steps, model.Step{NodeID: orderNodes[i], Pickups: []model.Pickup{}, Deliveries: deliveries, Unloads: []model.Unload{}})
		current = orderNodes[i]
	}

	pathHome, ok := p.FindPath(cfg.PathAlgo, current, r.HomeNode, cfg.pathLimit())
	if !ok {
		return nil, false
	}
	realized += p.PathDistance(pathHome)
	for j := 1; j < len(pathHome)-1; j++ {
		steps = append(steps, passThrough(pathHome[j]))
	}
	steps = append(steps, passThrough(r.HomeNode))

	if realized > vehicle.MaxDistance {
		return nil, false
	}
	return &model.RouteDoc{VehicleID: r.VehicleID, Steps: steps}, true
}

func passThrough(node int64) model.Step {
	return model.Step{NodeID: node, Pickups: []model.Pickup{}, Deliveries: []model.Delivery{}, Unloads: []model.Unload{}}
}

// deliverySequence orders deliveries nearest-neighbor by the oracle,
// starting from the home node. Orders the oracle cannot place keep their
// original relative order at the tail.
func deliverySequence(env Environment, homeNode int64, orderIDs []string) []string {
	if len(orderIDs) <= 1 {
		return append([]string(nil), orderIDs...)
	}
	unvisited := make(map[string]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		unvisited[id] = struct{}{}
	}
	sequence := make([]string, 0, len(orderIDs))
	current := homeNode
	for len(unvisited) > 0 {
		nearest := ""
		minDist := math.Inf(1)
		for _, id := range orderIDs {
			if _, ok := unvisited[id]; !ok {
				continue
			}
			node, ok := env.OrderLocation(id)
			if !ok {
				continue
			}
			if d, ok := env.Distance(current, node); ok && d < minDist {
				minDist = d
				nearest = id
			}
		}
		if nearest == "" {
			// oracle has no answer for the rest; keep original order
			for _, id := range orderIDs {
				if _, ok := unvisited[id]; ok {
					sequence = append(sequence, id)
				}
			}
			break
		}
		sequence = append(sequence, nearest)
		delete(unvisited, nearest)
		current, _ = env.OrderLocation(nearest)
	}
	return sequence
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
