package solver

import (
	"time"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// Config tunes one solve run. The zero value is not usable directly; pass it
// through withDefaults (Solve does this) or start from DefaultConfig.
type Config struct {
	// Algorithm is "greedy" (construction only) or "alns" (default).
	Algorithm string
	// PathAlgo selects the planner search. Dijkstra is the default since
	// route cost and the distance budget are evaluated in distance units.
	PathAlgo roadnet.Algorithm
	// PathLimit bounds planner work: hops for BFS, oracle distance for
	// Dijkstra. Zero picks a per-algorithm default.
	PathLimit float64

	// TimeBudget is the wall-clock budget for the ALNS loop.
	TimeBudget time.Duration
	Seed       int64

	// CapacityMargin scales vehicle capacity for feasibility checks,
	// in (0,1]. DistanceFactor scales max distance for pre-estimates,
	// leaving slack for the realized path being longer.
	CapacityMargin float64
	DistanceFactor float64

	// MaxOrders caps orders per route by vehicle type during construction.
	MaxOrders map[model.VehicleType]int

	// ALNS loop tuning.
	RegretK      int
	MaxAttempts  int // hard attempt ceiling
	Patience     int // attempts without improvement before giving up
	BalanceEvery int
	RecoverEvery int
	RegretEvery  int

	// Annealing enables the destroy/repair perturbation step with
	// simulated-annealing acceptance. Off by default: the reference loop
	// commits only strict improvements.
	Annealing bool
	InitTemp  float64
	Cooling   float64

	// Now is the loop's clock; injectable for deterministic tests.
	Now func() time.Time

	// Progress, when set, observes every new best state.
	Progress func(ProgressEvent)
}

// ProgressEvent reports a new best state found by the optimizer.
type ProgressEvent struct {
	Attempt   int     `json:"attempt"`
	Cost      float64 `json:"cost"`
	Fulfilled int     `json:"fulfilled"`
}

const (
	AlgorithmGreedy = "greedy"
	AlgorithmALNS   = "alns"
)

const (
	defaultBFSHops      = 500
	defaultDijkstraDist = 1000.0
)

func DefaultConfig() Config {
	return Config{
		Algorithm:      AlgorithmALNS,
		PathAlgo:       roadnet.AlgoDijkstra,
		TimeBudget:     2 * time.Second,
		CapacityMargin: 0.9,
		DistanceFactor: 0.8,
		MaxOrders: map[model.VehicleType]int{
			model.LightVan:    3,
			model.MediumTruck: 4,
			model.HeavyTruck:  5,
		},
		RegretK:      3,
		MaxAttempts:  10000,
		Patience:     5000,
		BalanceEvery: 200,
		RecoverEvery: 50,
		RegretEvery:  200,
		InitTemp:     1.0,
		Cooling:      0.995,
		Now:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Algorithm == "" {
		c.Algorithm = d.Algorithm
	}
	if c.PathAlgo == "" {
		c.PathAlgo = d.PathAlgo
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = d.TimeBudget
	}
	if c.CapacityMargin <= 0 || c.CapacityMargin > 1 {
		c.CapacityMargin = d.CapacityMargin
	}
	if c.DistanceFactor <= 0 || c.DistanceFactor > 1 {
		c.DistanceFactor = d.DistanceFactor
	}
	if c.MaxOrders == nil {
		c.MaxOrders = d.MaxOrders
	}
	if c.RegretK < 2 {
		c.RegretK = d.RegretK
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Patience <= 0 {
		c.Patience = d.Patience
	}
	if c.BalanceEvery <= 0 {
		c.BalanceEvery = d.BalanceEvery
	}
	if c.RecoverEvery <= 0 {
		c.RecoverEvery = d.RecoverEvery
	}
	if c.RegretEvery <= 0 {
		c.RegretEvery = d.RegretEvery
	}
	if c.InitTemp <= 0 {
		c.InitTemp = d.InitTemp
	}
	if c.Cooling <= 0 || c.Cooling >= 1 {
		c.Cooling = d.Cooling
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// pathLimit resolves the planner exploration limit for the configured search.
func (c Config) pathLimit() float64 {
	if c.PathLimit > 0 {
		return c.PathLimit
	}
	if c.PathAlgo == roadnet.AlgoBFS {
		return defaultBFSHops
	}
	return defaultDijkstraDist
}

// maxOrdersFor returns the construction cap for a vehicle type.
func (c Config) maxOrdersFor(t model.VehicleType) int {
	if n, ok := c.MaxOrders[t]; ok && n > 0 {
		return n
	}
	return 3
}

// FromRequest maps an API solve request onto a Config.
func FromRequest(req model.SolveRequest) Config {
	c := DefaultConfig()
	if req.Algorithm != "" {
		c.Algorithm = req.Algorithm
	}
	if req.TimeBudgetMs > 0 {
		c.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
	}
	c.Seed = req.Seed
	if req.RegretK >= 2 {
		c.RegretK = req.RegretK
	}
	if req.CapacityMargin > 0 && req.CapacityMargin <= 1 {
		c.CapacityMargin = req.CapacityMargin
	}
	if req.DistanceFactor > 0 && req.DistanceFactor <= 1 {
		c.DistanceFactor = req.DistanceFactor
	}
	if req.MaxAttempts > 0 {
		c.MaxAttempts = req.MaxAttempts
	}
	if req.Patience > 0 {
		c.Patience = req.Patience
	}
	c.Annealing = req.Annealing
	if req.InitTemp > 0 {
		c.InitTemp = req.InitTemp
	}
	if req.Cooling > 0 && req.Cooling < 1 {
		c.Cooling = req.Cooling
	}
	return c
}
