package solver

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"fleetroute/internal/roadnet"
)

// Metrics summarizes one optimizer run: operator selections, adaptive
// weights and the best state trajectory.
type Metrics struct {
	Attempts       int              `json:"attempts"`
	Improvements   int              `json:"improvements"`
	AcceptedWorse  int              `json:"acceptedWorse"`
	RemovalSelects [3]int           `json:"removalSelects"` // random, worst, related
	InsertSelects  [2]int           `json:"insertSelects"`  // greedy, regret
	BestCost       float64          `json:"bestCost"`
	BestFulfilled  int              `json:"bestFulfilled"`
	FinalCost      float64          `json:"finalCost"`
	Snapshots      []WeightSnapshot `json:"snapshots,omitempty"`
}

type WeightSnapshot struct {
	Attempt   int        `json:"attempt"`
	Removal   [3]float64 `json:"removal"`
	Insertion [2]float64 `json:"insertion"`
}

// failPenalty prices an unassigned order when comparing perturbation
// candidates, so destroy steps cannot look like improvements by shedding
// orders.
const failPenalty = 1000.0

type optimizer struct {
	env Environment
	p   *roadnet.Planner
	cfg Config
	rng *rand.Rand
}

// Optimize runs the time-boxed ALNS loop over the constructed solution and
// returns the best state seen, which is never worse — in fulfillment, then
// cost — than its input. Every candidate mutation is fully committed or
// fully discarded before the deadline is re-checked.
func Optimize(env Environment, p *roadnet.Planner, cfg Config, sol *Solution) (*Solution, Metrics) {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	o := &optimizer{env: env, p: p, cfg: cfg, rng: rand.New(rand.NewSource(seed))}

	for _, r := range sol.Routes {
		if r.Cost == 0 && len(r.Orders) > 0 {
			r.Evaluate(env, p, cfg)
		}
	}

	best := sol.Clone()
	m := Metrics{BestCost: best.TotalCost(), BestFulfilled: best.Fulfilled()}

	remW := [3]float64{1, 1, 1}
	insW := [2]float64{1, 1}
	temp := cfg.InitTemp

	deadline := cfg.Now().Add(cfg.TimeBudget)
	sinceImprove := 0
	const snapshotEvery = 50

	for cfg.Now().Before(deadline) {
		m.Attempts++
		if m.Attempts > cfg.MaxAttempts {
			break
		}
		if sinceImprove > cfg.Patience {
			break
		}
		improvedThisAttempt := false

		if m.Attempts%cfg.BalanceEvery == 0 {
			o.balance(sol)
			o.reevaluate(sol)
			improvedThisAttempt = o.trackBest(sol, best, &m) || improvedThisAttempt
		}

		if len(sol.Routes) >= 2 {
			if o.relocateOnce(sol) {
				improvedThisAttempt = o.trackBest(sol, best, &m) || improvedThisAttempt
			}
		}

		if m.Attempts%cfg.RecoverEvery == 0 {
			if un := sol.Unassigned(); len(un) > 0 {
				o.greedyInsertion(sol, un)
				o.reevaluate(sol)
				improvedThisAttempt = o.trackBest(sol, best, &m) || improvedThisAttempt
			}
		}
		if m.Attempts%cfg.RegretEvery == 0 {
			if un := sol.Unassigned(); len(un) > 0 {
				o.regretInsertion(sol, un, cfg.RegretK)
				o.reevaluate(sol)
				improvedThisAttempt = o.trackBest(sol, best, &m) || improvedThisAttempt
			}
		}

		// Optional uphill moves: destroy/repair with simulated-annealing
		// acceptance and adaptive operator weights.
		if cfg.Annealing {
			trial := sol.Clone()
			k := 1 + o.rng.Intn(3)
			op := selectOp(remW[:], o.rng)
			m.RemovalSelects[op]++
			var removed []string
			switch op {
			case 0:
				removed = o.randomRemoval(trial, k)
			case 1:
				removed = o.worstRemoval(trial, k)
			default:
				removed = o.relatedRemoval(trial, k)
			}
			ip := selectOp(insW[:], o.rng)
			m.InsertSelects[ip]++
			switch ip {
			case 0:
				o.greedyInsertion(trial, removed)
			default:
				o.regretInsertion(trial, removed, cfg.RegretK)
			}
			o.reevaluate(trial)

			delta := o.penalizedCost(trial) - o.penalizedCost(sol)
			if Accept(o.penalizedCost(sol), o.penalizedCost(trial), temp, o.rng) {
				*sol = *trial
				if delta < 0 {
					remW[op] += 0.1
					insW[ip] += 0.1
				} else {
					remW[op] += 0.01
					insW[ip] += 0.01
					m.AcceptedWorse++
				}
				improvedThisAttempt = o.trackBest(sol, best, &m) || improvedThisAttempt
			} else {
				remW[op] = math.Max(0.01, remW[op]*0.999)
				insW[ip] = math.Max(0.01, insW[ip]*0.999)
			}
			temp *= cfg.Cooling
			if m.Attempts%snapshotEvery == 0 {
				m.Snapshots = append(m.Snapshots, WeightSnapshot{Attempt: m.Attempts, Removal: remW, Insertion: insW})
			}
		}

		if improvedThisAttempt {
			sinceImprove = 0
		} else {
			sinceImprove++
		}
	}

	m.FinalCost = best.TotalCost()
	return best, m
}

// trackBest snapshots sol into best when fulfillment improves, or ties and
// cost improves. best is updated in place.
func (o *optimizer) trackBest(sol, best *Solution, m *Metrics) bool {
	f, c := sol.Fulfilled(), sol.TotalCost()
	if f > m.BestFulfilled || (f == m.BestFulfilled && c < m.BestCost) {
		*best = *sol.Clone()
		m.BestFulfilled = f
		m.BestCost = c
		m.Improvements++
		if o.cfg.Progress != nil {
			o.cfg.Progress(ProgressEvent{Attempt: m.Attempts, Cost: c, Fulfilled: f})
		}
		return true
	}
	return false
}

func (o *optimizer) reevaluate(sol *Solution) {
	for _, r := range sol.Routes {
		r.Evaluate(o.env, o.p, o.cfg)
	}
}

func (o *optimizer) penalizedCost(sol *Solution) float64 {
	return sol.TotalCost() + failPenalty*float64(len(sol.Unassigned()))
}

// relocateOnce moves one random order between two routes when it strictly
// lowers their combined cost. Returns true when a move was committed.
func (o *optimizer) relocateOnce(sol *Solution) bool {
	sources := []*Route{}
	for _, r := range sol.Routes {
		if len(r.Orders) > 1 {
			sources = append(sources, r)
		}
	}
	if len(sources) == 0 {
		return false
	}
	source := sources[o.rng.Intn(len(sources))]
	orderID := source.Orders[o.rng.Intn(len(source.Orders))]

	for _, target := range sol.Routes {
		if target == source {
			continue
		}
		if !o.canHost(target, orderID) {
			continue
		}
		trialSource := source.Clone()
		trialSource.RemoveOrder(orderID)
		costSource := trialSource.Evaluate(o.env, o.p, o.cfg)

		trialTarget := target.Clone()
		trialTarget.AddOrder(orderID)
		costTarget := trialTarget.Evaluate(o.env, o.p, o.cfg)

		if math.IsInf(costSource, 1) || math.IsInf(costTarget, 1) {
			continue
		}
		if costSource+costTarget < source.Cost+target.Cost {
			source.RemoveOrder(orderID)
			source.Evaluate(o.env, o.p, o.cfg)
			target.AddOrder(orderID)
			target.Evaluate(o.env, o.p, o.cfg)
			return true
		}
	}
	return false
}

// canHost applies the feasibility predicates for adding one order to a
// route.
func (o *optimizer) canHost(r *Route, orderID string) bool {
	vehicle, ok := o.env.Vehicle(r.VehicleID)
	if !ok {
		return false
	}
	trial := append(append([]string(nil), r.Orders...), orderID)
	if !FitsCapacity(o.env, vehicle, trial, o.cfg.CapacityMargin) {
		return false
	}
	return HasInventory(o.env, r.WarehouseID, trial)
}

// Destroy operators. Each removes up to k orders from the routes and
// returns them for repair.

func (o *optimizer) randomRemoval(sol *Solution, k int) []string {
	all := []string{}
	for _, r := range sol.Routes {
		all = append(all, r.Orders...)
	}
	if len(all) == 0 {
		return nil
	}
	o.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if k > len(all) {
		k = len(all)
	}
	removed := all[:k]
	o.dropOrders(sol, removed)
	return removed
}

// worstRemoval removes the orders with the largest estimated contribution
// to their route's distance, approximated as home-to-order distance.
func (o *optimizer) worstRemoval(sol *Solution, k int) []string {
	type scored struct {
		orderID string
		dist    float64
		route   *Route
	}
	candidates := []scored{}
	for _, r := range sol.Routes {
		for _, orderID := range r.Orders {
			node, ok := o.env.OrderLocation(orderID)
			if !ok {
				continue
			}
			if d, ok := o.env.Distance(r.HomeNode, node); ok {
				candidates = append(candidates, scored{orderID: orderID, dist: d, route: r})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist > candidates[j].dist })
	if k > len(candidates) {
		k = len(candidates)
	}
	removed := make([]string, 0, k)
	for _, c := range candidates[:k] {
		c.route.RemoveOrder(c.orderID)
		removed = append(removed, c.orderID)
	}
	return removed
}

// relatedRemoval removes a spatially coherent cluster: a random seed order
// plus the orders nearest to it by the oracle.
func (o *optimizer) relatedRemoval(sol *Solution, k int) []string {
	all := []string{}
	for _, r := range sol.Routes {
		all = append(all, r.Orders...)
	}
	if len(all) == 0 {
		return nil
	}
	seed := all[o.rng.Intn(len(all))]
	seedNode, ok := o.env.OrderLocation(seed)
	if !ok {
		return o.randomRemoval(sol, k)
	}
	type scored struct {
		orderID string
		dist    float64
	}
	candidates := []scored{}
	for _, orderID := range all {
		node, ok := o.env.OrderLocation(orderID)
		if !ok {
			continue
		}
		d, ok := o.env.Distance(seedNode, node)
		if !ok {
			d = math.Inf(1)
		}
		candidates = append(candidates, scored{orderID: orderID, dist: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if k > len(candidates) {
		k = len(candidates)
	}
	removed := make([]string, 0, k)
	for _, c := range candidates[:k] {
		removed = append(removed, c.orderID)
	}
	o.dropOrders(sol, removed)
	return removed
}

func (o *optimizer) dropOrders(sol *Solution, orderIDs []string) {
	for _, r := range sol.Routes {
		for _, id := range orderIDs {
			r.RemoveOrder(id)
		}
	}
}

// Repair operators.

// greedyInsertion places each order into the route with the minimum cost
// increase, skipping orders with no feasible slot.
func (o *optimizer) greedyInsertion(sol *Solution, unassigned []string) {
	for _, orderID := range unassigned {
		var bestRoute *Route
		bestIncrease := math.Inf(1)
		for _, r := range sol.Routes {
			increase, ok := o.insertionCost(r, orderID)
			if !ok {
				continue
			}
			if increase < bestIncrease {
				bestIncrease = increase
				bestRoute = r
			}
		}
		if bestRoute != nil {
			bestRoute.AddOrder(orderID)
			bestRoute.Evaluate(o.env, o.p, o.cfg)
		}
	}
}

// regretInsertion repeatedly inserts the order with the highest regret —
// the summed gap between its best insertion cost and its 2nd..kth best —
// so orders with few good options are placed before greedy ordering can
// strand them.
func (o *optimizer) regretInsertion(sol *Solution, unassigned []string, k int) {
	remaining := append([]string(nil), unassigned...)
	for len(remaining) > 0 {
		type candidate struct {
			orderID string
			regret  float64
			slots   int
			route   *Route
		}
		var best *candidate
		for _, orderID := range remaining {
			costs := []float64{}
			var cheapest *Route
			cheapestCost := math.Inf(1)
			for _, r := range sol.Routes {
				increase, ok := o.insertionCost(r, orderID)
				if !ok {
					continue
				}
				costs = append(costs, increase)
				if increase < cheapestCost {
					cheapestCost = increase
					cheapest = r
				}
			}
			if cheapest == nil {
				continue
			}
			sort.Float64s(costs)
			regret := 0.0
			for i := 1; i < k && i < len(costs); i++ {
				regret += costs[i] - costs[0]
			}
			// Equal regrets break toward the order with fewer feasible
			// slots, so a single-slot order cannot lose its only route to
			// one that fits anywhere.
			if best == nil || regret > best.regret ||
				(regret == best.regret && len(costs) < best.slots) {
				best = &candidate{orderID: orderID, regret: regret, slots: len(costs), route: cheapest}
			}
		}
		if best == nil {
			break
		}
		best.route.AddOrder(best.orderID)
		best.route.Evaluate(o.env, o.p, o.cfg)
		remaining = removeString(remaining, best.orderID)
	}
}

// insertionCost prices appending orderID to r, or ok=false when infeasible.
func (o *optimizer) insertionCost(r *Route, orderID string) (float64, bool) {
	if !o.canHost(r, orderID) {
		return 0, false
	}
	trial := r.Clone()
	trial.AddOrder(orderID)
	cost := trial.Evaluate(o.env, o.p, o.cfg)
	if math.IsInf(cost, 1) {
		return 0, false
	}
	return cost - r.Cost, true
}

// balance is the min-max pass: move one order off the costliest route when
// that strictly reduces the maximum route cost across the solution.
func (o *optimizer) balance(sol *Solution) {
	if len(sol.Routes) < 2 {
		return
	}
	var longest *Route
	for _, r := range sol.Routes {
		if len(r.Orders) == 0 {
			continue
		}
		if longest == nil || r.Cost > longest.Cost {
			longest = r
		}
	}
	if longest == nil {
		return
	}
	for _, orderID := range append([]string(nil), longest.Orders...) {
		for _, other := range sol.Routes {
			if other == longest || other.Cost >= longest.Cost {
				continue
			}
			if !o.canHost(other, orderID) {
				continue
			}
			trialLongest := longest.Clone()
			trialLongest.RemoveOrder(orderID)
			newLongest := trialLongest.Evaluate(o.env, o.p, o.cfg)

			trialOther := other.Clone()
			trialOther.AddOrder(orderID)
			newOther := trialOther.Evaluate(o.env, o.p, o.cfg)

			if math.Max(newLongest, newOther) < longest.Cost {
				longest.RemoveOrder(orderID)
				longest.Evaluate(o.env, o.p, o.cfg)
				other.AddOrder(orderID)
				other.Evaluate(o.env, o.p, o.cfg)
				return
			}
		}
	}
}

// Accept is the simulated-annealing criterion: improvements always pass,
// worsening moves pass with probability exp(-delta/temperature).
func Accept(oldCost, newCost, temperature float64, rng *rand.Rand) bool {
	if newCost < oldCost {
		return true
	}
	if temperature <= 0 {
		return false
	}
	delta := newCost - oldCost
	return rng.Float64() < math.Exp(-delta/temperature)
}

// selectOp picks an operator index by roulette wheel over adaptive weights.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

func removeString(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
