package solver

import (
	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// Environment is the read-only view of the world the solver plans against.
// Implementations own the order catalog, the fleet, warehouse inventory and
// the road network; the solver never mutates any of it. Inventory consumption
// is only simulated during planning — committing state changes is the
// external executor's job.
type Environment interface {
	// Orders
	OrderIDs() []string
	OrderRequirements(orderID string) map[string]int
	OrderLocation(orderID string) (int64, bool)

	// Reference data
	SKU(skuID string) (model.SKU, bool)

	// Fleet
	VehicleIDs() []string
	Vehicle(vehicleID string) (model.Vehicle, bool)

	// Warehouses
	Warehouse(warehouseID string) (model.Warehouse, bool)
	WarehouseInventory(warehouseID string) map[string]int

	// Road network
	Network() *roadnet.Network
	// Distance is the authoritative oracle between any two nodes; ok is
	// false for disconnected pairs.
	Distance(from, to int64) (float64, bool)
}
