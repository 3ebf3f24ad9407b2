package solver

import "fleetroute/internal/model"

// Pure feasibility predicates. A false result is never an error: it tells
// the caller to shrink the candidate order set or leave the order
// unassigned.

// OrderSize sums unit weight and volume over an order's SKU requirements.
func OrderSize(env Environment, orderID string) (weight, volume float64) {
	for skuID, qty := range env.OrderRequirements(orderID) {
		sku, ok := env.SKU(skuID)
		if !ok {
			continue
		}
		weight += sku.Weight * float64(qty)
		volume += sku.Volume * float64(qty)
	}
	return weight, volume
}

func ordersSize(env Environment, orderIDs []string) (weight, volume float64) {
	for _, id := range orderIDs {
		w, v := OrderSize(env, id)
		weight += w
		volume += v
	}
	return weight, volume
}

// FitsCapacity reports whether the order set fits the vehicle under the
// safety margin (margin in (0,1]; 1 uses full capacity).
func FitsCapacity(env Environment, vehicle model.Vehicle, orderIDs []string, margin float64) bool {
	if margin <= 0 || margin > 1 {
		margin = 1
	}
	w, v := ordersSize(env, orderIDs)
	return w <= vehicle.CapacityWeight*margin && v <= vehicle.CapacityVolume*margin
}

// HasInventory reports whether the warehouse's static inventory snapshot
// covers the summed SKU requirements of the order set. The snapshot is not
// decremented across routes sharing a warehouse.
func HasInventory(env Environment, warehouseID string, orderIDs []string) bool {
	needs := map[string]int{}
	for _, id := range orderIDs {
		for skuID, qty := range env.OrderRequirements(id) {
			needs[skuID] += qty
		}
	}
	inv := env.WarehouseInventory(warehouseID)
	for skuID, qty := range needs {
		if inv[skuID] < qty {
			return false
		}
	}
	return true
}

// WithinDistanceBudget compares a cheap round-trip estimate against the
// vehicle's range scaled by threshold (< 1 leaves slack for the realized
// path being longer than the estimate).
func WithinDistanceBudget(estimated float64, vehicle model.Vehicle, threshold float64) bool {
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}
	return estimated <= vehicle.MaxDistance*threshold
}

// EstimateRouteDistance prices the round trip home -> orders (in the given
// sequence) -> home using the oracle, without path optimization. Pairs the
// oracle cannot price count as the default edge distance.
func EstimateRouteDistance(env Environment, homeNode int64, orderNodes []int64) float64 {
	if len(orderNodes) == 0 {
		return 0
	}
	total := 0.0
	current := homeNode
	for _, node := range orderNodes {
		total += pairDistance(env, current, node)
		current = node
	}
	total += pairDistance(env, current, homeNode)
	return total
}

func pairDistance(env Environment, from, to int64) float64 {
	if from == to {
		return 0
	}
	if d, ok := env.Distance(from, to); ok && d > 0 {
		return d
	}
	return defaultPairDistance
}

// defaultPairDistance stands in for pairs the oracle cannot price during
// estimation; the materializer still rejects routes whose realized legs are
// unreachable.
const defaultPairDistance = 50.0
