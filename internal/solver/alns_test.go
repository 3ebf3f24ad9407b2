package solver

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// fakeClock advances a fixed step on every reading, so loop iterations are
// counted in fake time and tests never depend on wall-clock speed.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// regretEnv: two depots, two orders, and a capacity-1 route near both.
//
//	x (node 2) is cheap from w1 (round trip 4) and costly from w2
//	(round trip 14): regret 10.
//	y (node 3) is cheap from both (4 vs 6): regret 2.
func regretEnv() *testEnv {
	skus := []model.SKU{{ID: "skuA", Weight: 2, Volume: 2}}
	orders := []model.Order{
		{ID: "x", Node: 2, Requirements: map[string]int{"skuA": 1}},
		{ID: "y", Node: 3, Requirements: map[string]int{"skuA": 1}},
	}
	vehicles := []model.Vehicle{
		{ID: "v1", Type: model.LightVan, CapacityWeight: 2.5, CapacityVolume: 2.5, MaxDistance: 100, HomeWarehouseID: "w1"},
		{ID: "v2", Type: model.MediumTruck, CapacityWeight: 40, CapacityVolume: 40, MaxDistance: 100, HomeWarehouseID: "w2"},
	}
	warehouses := []model.Warehouse{
		{ID: "w1", Node: 1, Inventory: map[string]int{"skuA": 10}},
		{ID: "w2", Node: 4, Inventory: map[string]int{"skuA": 10}},
	}
	edges := []testEdge{{1, 2, 2}, {1, 3, 2}, {4, 2, 10}, {4, 3, 3}}
	return newTestEnv(skus, orders, vehicles, warehouses, edges)
}

func emptyRoutes(env Environment, p *roadnet.Planner, cfg Config) *Solution {
	sol := NewSolution(env)
	for _, vid := range env.VehicleIDs() {
		v, _ := env.Vehicle(vid)
		w, _ := env.Warehouse(v.HomeWarehouseID)
		r := NewRoute(vid, w.ID, w.Node)
		r.Evaluate(env, p, cfg)
		sol.Routes = append(sol.Routes, r)
	}
	return sol
}

func TestRegretInsertionPlacesConstrainedOrderFirst(t *testing.T) {
	env := regretEnv()
	p := roadnet.NewPlanner(env.Network())
	cfg := DefaultConfig()
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(1))}

	sol := emptyRoutes(env, p, cfg)
	o.regretInsertion(sol, []string{"y", "x"}, 3)

	// x has far more to lose, so it claims the capacity-1 route near both
	// orders; y settles for its second-best.
	require.Equal(t, []string{"x"}, sol.Routes[0].Orders)
	require.Equal(t, []string{"y"}, sol.Routes[1].Orders)
	assert.Equal(t, 10.0, sol.TotalCost()) // 4 + 6
}

// tiedRegretEnv: both orders have regret 0. "flex" fits either depot at
// equal cost; "picky" needs skuP, stocked only at w2. Vehicle v2 (w2) is
// listed first so it is the cheapest slot both orders see, and each
// capacity-1 route holds one order.
func tiedRegretEnv() *testEnv {
	skus := []model.SKU{
		{ID: "skuF", Weight: 2, Volume: 2},
		{ID: "skuP", Weight: 2, Volume: 2},
	}
	orders := []model.Order{
		{ID: "flex", Node: 3, Requirements: map[string]int{"skuF": 1}},
		{ID: "picky", Node: 4, Requirements: map[string]int{"skuP": 1}},
	}
	vehicles := []model.Vehicle{
		{ID: "v2", Type: model.LightVan, CapacityWeight: 2.5, CapacityVolume: 2.5, MaxDistance: 100, HomeWarehouseID: "w2"},
		{ID: "v1", Type: model.LightVan, CapacityWeight: 2.5, CapacityVolume: 2.5, MaxDistance: 100, HomeWarehouseID: "w1"},
	}
	warehouses := []model.Warehouse{
		{ID: "w1", Node: 1, Inventory: map[string]int{"skuF": 5}},
		{ID: "w2", Node: 2, Inventory: map[string]int{"skuF": 5, "skuP": 5}},
	}
	edges := []testEdge{{1, 3, 2}, {2, 3, 2}, {2, 4, 2}}
	return newTestEnv(skus, orders, vehicles, warehouses, edges)
}

func TestRegretInsertionBreaksTiesBySlotCount(t *testing.T) {
	env := tiedRegretEnv()
	p := roadnet.NewPlanner(env.Network())
	cfg := DefaultConfig()
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(1))}

	sol := emptyRoutes(env, p, cfg)
	// flex first in the list: pure first-seen selection would hand it the
	// w2 route and strand picky, whose only stock is at w2.
	o.regretInsertion(sol, []string{"flex", "picky"}, 3)

	require.Equal(t, 2, sol.Fulfilled())
	require.Equal(t, []string{"picky"}, sol.Routes[0].Orders)
	require.Equal(t, []string{"flex"}, sol.Routes[1].Orders)
	assert.Equal(t, 8.0, sol.TotalCost()) // 4 + 4
}

func TestGreedyInsertionTakesListOrder(t *testing.T) {
	env := regretEnv()
	p := roadnet.NewPlanner(env.Network())
	cfg := DefaultConfig()
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(1))}

	sol := emptyRoutes(env, p, cfg)
	o.greedyInsertion(sol, []string{"y", "x"})

	// Processed first, y grabs the cheap slot and strands x on the far
	// depot. This is exactly the ordering pathology regret-k avoids.
	require.Equal(t, []string{"y"}, sol.Routes[0].Orders)
	require.Equal(t, []string{"x"}, sol.Routes[1].Orders)
	assert.Equal(t, 18.0, sol.TotalCost()) // 4 + 14
}

func TestOptimizeImprovesLopsidedSolution(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Now = clock.Now
	cfg.TimeBudget = 5 * time.Second
	cfg.MaxAttempts = 2000
	cfg.Patience = 500

	// Stack everything on the w1 vehicle; the w2 vehicle idles.
	sol := emptyRoutes(env, p, cfg)
	for _, id := range env.OrderIDs() {
		sol.Routes[0].AddOrder(id)
	}
	sol.Routes[0].Evaluate(env, p, cfg)
	startCost := sol.TotalCost()
	startFulfilled := sol.Fulfilled()

	best, m := Optimize(env, p, cfg, sol)

	assert.GreaterOrEqual(t, best.Fulfilled(), startFulfilled)
	assert.Less(t, best.TotalCost(), startCost)
	assert.Greater(t, m.Improvements, 0)
}

func TestOptimizeNeverWorseThanInput(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	cfg := DefaultConfig()
	cfg.Seed = 11
	cfg.Now = clock.Now
	cfg.TimeBudget = 5 * time.Second
	cfg.MaxAttempts = 1500
	cfg.Annealing = true

	sol := Construct(env, p, cfg)
	startCost := sol.TotalCost()
	startFulfilled := sol.Fulfilled()

	best, _ := Optimize(env, p, cfg, sol)

	require.GreaterOrEqual(t, best.Fulfilled(), startFulfilled)
	if best.Fulfilled() == startFulfilled {
		assert.LessOrEqual(t, best.TotalCost(), startCost)
	}
}

func TestOptimizeKeepsAssignmentInvariants(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	cfg := DefaultConfig()
	cfg.Seed = 3
	cfg.Now = clock.Now
	cfg.TimeBudget = 5 * time.Second
	cfg.MaxAttempts = 1500
	cfg.Annealing = true

	best, _ := Optimize(env, p, cfg, Construct(env, p, cfg))

	seen := map[string]int{}
	for _, r := range best.Routes {
		for _, id := range r.Orders {
			seen[id]++
		}
		vehicle, ok := env.Vehicle(r.VehicleID)
		require.True(t, ok)
		assert.True(t, FitsCapacity(env, vehicle, r.Orders, cfg.CapacityMargin), "route %s over capacity", r.VehicleID)
		assert.True(t, HasInventory(env, r.WarehouseID, r.Orders), "route %s over inventory", r.VehicleID)
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "order %s on %d routes", id, n)
	}
}

func TestOptimizeStopsAtDeadline(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Millisecond}
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.TimeBudget = 50 * time.Millisecond

	_, m := Optimize(env, p, cfg, Construct(env, p, cfg))

	// One clock reading per loop check plus the deadline reading.
	assert.LessOrEqual(t, m.Attempts, 50)
}

func TestOptimizeHonorsHardAttemptCap(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Nanosecond}
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.TimeBudget = time.Hour
	cfg.MaxAttempts = 10

	_, m := Optimize(env, p, cfg, Construct(env, p, cfg))

	assert.LessOrEqual(t, m.Attempts, cfg.MaxAttempts+1)
}

func TestOptimizeGivesUpAfterPatience(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Nanosecond}
	cfg := DefaultConfig()
	cfg.Now = clock.Now
	cfg.TimeBudget = time.Hour
	cfg.MaxAttempts = 100000
	cfg.Patience = 20

	_, m := Optimize(env, p, cfg, Construct(env, p, cfg))

	assert.Less(t, m.Attempts, 1000)
}

func TestBalanceReducesLongestRoute(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	cfg := DefaultConfig()
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(1))}

	sol := emptyRoutes(env, p, cfg)
	for _, id := range env.OrderIDs() {
		sol.Routes[0].AddOrder(id)
	}
	sol.Routes[0].Evaluate(env, p, cfg)
	before := maxRouteCost(sol)

	o.balance(sol)

	assert.Less(t, maxRouteCost(sol), before)
	assert.Equal(t, len(env.OrderIDs()), sol.Fulfilled())
}

func maxRouteCost(sol *Solution) float64 {
	max := 0.0
	for _, r := range sol.Routes {
		if r.Cost > max {
			max = r.Cost
		}
	}
	return max
}

func TestAcceptCriterion(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.True(t, Accept(10, 5, 0.0001, rng), "improvements always pass")
	assert.False(t, Accept(5, 500, 0.0001, rng), "large uphill move at cold temperature")
	assert.False(t, Accept(5, 10, 0, rng), "zero temperature rejects all uphill moves")

	// Near-zero delta at a hot temperature is accepted almost surely.
	accepted := 0
	for i := 0; i < 100; i++ {
		if Accept(5, 5.0001, 100, rng) {
			accepted++
		}
	}
	assert.Greater(t, accepted, 90)
}

func TestSelectOpWeighted(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		assert.Equal(t, 2, selectOp([]float64{0, 0, 1}, rng))
	}
	counts := [2]int{}
	for i := 0; i < 1000; i++ {
		counts[selectOp([]float64{9, 1}, rng)]++
	}
	assert.Greater(t, counts[0], counts[1])
}

func TestRemovalOperators(t *testing.T) {
	env := ringEnv()
	p := roadnet.NewPlanner(env.Network())
	cfg := DefaultConfig()
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(5))}

	build := func() *Solution {
		sol := Construct(env, p, cfg)
		require.Equal(t, len(env.OrderIDs()), sol.Fulfilled())
		return sol
	}

	t.Run("random", func(t *testing.T) {
		sol := build()
		removed := o.randomRemoval(sol, 2)
		assert.Len(t, removed, 2)
		assert.Equal(t, len(env.OrderIDs())-2, sol.Fulfilled())
	})
	t.Run("worst", func(t *testing.T) {
		sol := build()
		removed := o.worstRemoval(sol, 1)
		require.Len(t, removed, 1)
		// The costliest order by home distance is the one removed.
		for _, r := range sol.Routes {
			assert.False(t, r.HasOrder(removed[0]))
		}
	})
	t.Run("related", func(t *testing.T) {
		sol := build()
		removed := o.relatedRemoval(sol, 3)
		assert.Len(t, removed, 3)
		assert.Equal(t, len(env.OrderIDs())-3, sol.Fulfilled())
	})
}
