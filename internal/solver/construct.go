package solver

import (
	"sort"

	"fleetroute/internal/roadnet"
)

// Construct builds the initial solution by greedy bin-packing, largest
// orders first so they are not starved of capacity later. Each vehicle
// collects orders vetted against the cumulative batch, capped per vehicle
// type; if the batch cannot be materialized the vehicle falls back to a
// strictly smaller prefix (half, then a single order). A second pass pairs
// still-unused vehicles with leftover orders one at a time.
func Construct(env Environment, p *roadnet.Planner, cfg Config) *Solution {
	sol := NewSolution(env)
	assigned := map[string]struct{}{}

	sorted := ordersByWeightDesc(env)
	vehicleIDs := env.VehicleIDs()
	usedVehicles := map[string]struct{}{}

	// Pass 1: multi-order batches.
	for _, vehicleID := range vehicleIDs {
		if len(assigned) >= len(sorted) {
			break
		}
		vehicle, ok := env.Vehicle(vehicleID)
		if !ok {
			continue
		}
		warehouse, ok := env.Warehouse(vehicle.HomeWarehouseID)
		if !ok {
			continue
		}
		maxOrders := cfg.maxOrdersFor(vehicle.Type)

		batch := []string{}
		for _, orderID := range sorted {
			if _, done := assigned[orderID]; done {
				continue
			}
			if len(batch) >= maxOrders {
				break
			}
			trial := append(append([]string(nil), batch...), orderID)
			if !FitsCapacity(env, vehicle, trial, cfg.CapacityMargin) {
				continue
			}
			if !HasInventory(env, warehouse.ID, trial) {
				continue
			}
			batch = trial
		}
		if len(batch) == 0 {
			continue
		}

		route := buildWithFallback(env, p, cfg, vehicleID, warehouse.ID, warehouse.Node, batch)
		if route == nil {
			// no feasible route at any fallback size; vehicle skipped,
			// its orders stay unassigned for later passes
			continue
		}
		route.Evaluate(env, p, cfg)
		sol.Routes = append(sol.Routes, route)
		for _, id := range route.Orders {
			assigned[id] = struct{}{}
		}
		usedVehicles[vehicleID] = struct{}{}
	}

	// Pass 2: salvage coverage with unused vehicles, one order per route.
	for _, vehicleID := range vehicleIDs {
		if _, used := usedVehicles[vehicleID]; used {
			continue
		}
		vehicle, ok := env.Vehicle(vehicleID)
		if !ok {
			continue
		}
		warehouse, ok := env.Warehouse(vehicle.HomeWarehouseID)
		if !ok {
			continue
		}
		for _, orderID := range sorted {
			if _, done := assigned[orderID]; done {
				continue
			}
			route := NewRoute(vehicleID, warehouse.ID, warehouse.Node)
			route.AddOrder(orderID)
			if _, ok := Materialize(env, p, cfg, route); !ok {
				continue
			}
			route.Evaluate(env, p, cfg)
			sol.Routes = append(sol.Routes, route)
			assigned[orderID] = struct{}{}
			break // one route per vehicle
		}
	}

	return sol
}

// buildWithFallback tries the full batch, then half, then a single order,
// using materialization as the feasibility test.
func buildWithFallback(env Environment, p *roadnet.Planner, cfg Config, vehicleID, warehouseID string, homeNode int64, batch []string) *Route {
	attempts := [][]string{batch}
	if len(batch) > 2 {
		attempts = append(attempts, batch[:len(batch)/2])
	}
	attempts = append(attempts, batch[:1])
	for _, orders := range attempts {
		if len(orders) == 0 {
			continue
		}
		route := NewRoute(vehicleID, warehouseID, homeNode)
		route.Orders = append([]string(nil), orders...)
		if _, ok := Materialize(env, p, cfg, route); ok {
			return route
		}
	}
	return nil
}

func ordersByWeightDesc(env Environment) []string {
	type sized struct {
		id     string
		weight float64
	}
	orders := []sized{}
	for _, id := range env.OrderIDs() {
		w, _ := OrderSize(env, id)
		orders = append(orders, sized{id: id, weight: w})
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].weight > orders[j].weight })
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.id
	}
	return out
}
