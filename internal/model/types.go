package model

// Core domain types shared by the solver, the scenario loader and the API.

// SKU is immutable reference data for one stock-keeping unit.
type SKU struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Volume float64 `json:"volume"`
}

// Order requires specific SKUs in specific quantities at one delivery node.
type Order struct {
	ID           string         `json:"id"`
	Requirements map[string]int `json:"requirements"` // skuId -> quantity
	Node         int64          `json:"node"`
}

// VehicleType selects the per-type order cap used during construction.
type VehicleType string

const (
	LightVan     VehicleType = "LightVan"
	MediumTruck  VehicleType = "MediumTruck"
	HeavyTruck   VehicleType = "HeavyTruck"
	OtherVehicle VehicleType = "Other"
)

type Vehicle struct {
	ID              string      `json:"id"`
	Type            VehicleType `json:"type"`
	CapacityWeight  float64     `json:"capacityWeight"`
	CapacityVolume  float64     `json:"capacityVolume"`
	MaxDistance     float64     `json:"maxDistance"`
	HomeWarehouseID string      `json:"homeWarehouseId"`
}

type Warehouse struct {
	ID        string         `json:"id"`
	Node      int64          `json:"node"`
	Inventory map[string]int `json:"inventory"` // skuId -> available quantity
}

// Solution document — the shared schema handed to the external executor.

type Pickup struct {
	WarehouseID string `json:"warehouseId"`
	SKUID       string `json:"skuId"`
	Quantity    int    `json:"quantity"`
}

type Delivery struct {
	OrderID  string `json:"orderId"`
	SKUID    string `json:"skuId"`
	Quantity int    `json:"quantity"`
}

// Unload is part of the shared schema but never emitted by this solver.
type Unload struct {
	WarehouseID string `json:"warehouseId"`
	SKUID       string `json:"skuId"`
	Quantity    int    `json:"quantity"`
}

type Step struct {
	NodeID     int64      `json:"nodeId"`
	Pickups    []Pickup   `json:"pickups"`
	Deliveries []Delivery `json:"deliveries"`
	Unloads    []Unload   `json:"unloads"`
}

type RouteDoc struct {
	VehicleID string `json:"vehicleId"`
	Steps     []Step `json:"steps"`
}

// SolutionDoc is the solver's sole output: an ordered collection of routes
// plus the orders that could not be placed. Always structurally valid, even
// when empty.
type SolutionDoc struct {
	Routes        []RouteDoc `json:"routes"`
	Unassigned    []string   `json:"unassigned"`
	TotalDistance float64    `json:"totalDistance"`
	TotalCost     float64    `json:"totalCost"`
	Fulfilled     int        `json:"fulfilled"`
}

// SolveRequest tunes one solve run. Zero values fall back to solver defaults.
type SolveRequest struct {
	ScenarioID     string  `json:"scenarioId"`
	Algorithm      string  `json:"algorithm,omitempty"` // greedy or alns
	TimeBudgetMs   int     `json:"timeBudgetMs,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
	RegretK        int     `json:"regretK,omitempty"`
	CapacityMargin float64 `json:"capacityMargin,omitempty"`
	DistanceFactor float64 `json:"distanceFactor,omitempty"`
	MaxAttempts    int     `json:"maxAttempts,omitempty"`
	Patience       int     `json:"patience,omitempty"`
	Annealing      bool    `json:"annealing,omitempty"`
	InitTemp       float64 `json:"initTemp,omitempty"`
	Cooling        float64 `json:"cooling,omitempty"`
}

// SolutionRecord wraps a stored solution document.
type SolutionRecord struct {
	ID         string      `json:"id"`
	TenantID   string      `json:"tenantId"`
	ScenarioID string      `json:"scenarioId"`
	Algorithm  string      `json:"algorithm"`
	CreatedAt  string      `json:"createdAt"`
	Doc        SolutionDoc `json:"doc"`
}

// ScenarioRecord wraps a stored scenario document (raw YAML or JSON body).
type ScenarioRecord struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	Name      string `json:"name,omitempty"`
	Format    string `json:"format"` // yaml or json
	CreatedAt string `json:"createdAt"`
	Body      []byte `json:"body,omitempty"`
}

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
