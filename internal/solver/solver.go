// Package solver builds and improves multi-depot delivery plans: a greedy
// construction pass seeds routes, an adaptive large-neighborhood search
// refines them, and a materializer expands the survivors into executable
// step sequences.
package solver

import (
	"fmt"
	"log"
	"sort"

	"fleetroute/internal/model"
	"fleetroute/internal/roadnet"
)

// Solve runs construction, optional optimization and materialization over
// the scenario in env. It never fails: any internal fault is downgraded to
// an empty, schema-valid document so a degraded plan is always returned.
func Solve(env Environment, cfg Config) (doc model.SolutionDoc, m Metrics, err error) {
	cfg = cfg.withDefaults()
	doc = model.SolutionDoc{Routes: []model.RouteDoc{}, Unassigned: []string{}}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("solver: recovered from panic: %v", r)
			doc = model.SolutionDoc{Routes: []model.RouteDoc{}, Unassigned: sortedOrderIDs(env)}
			err = fmt.Errorf("solver fault: %v", r)
		}
	}()

	p := roadnet.NewPlanner(env.Network())

	sol := Construct(env, p, cfg)
	if cfg.Algorithm == AlgorithmALNS {
		sol, m = Optimize(env, p, cfg, sol)
	} else {
		m = Metrics{BestCost: sol.TotalCost(), BestFulfilled: sol.Fulfilled()}
	}

	assigned := map[string]bool{}
	for _, r := range sol.Routes {
		if len(r.Orders) == 0 {
			continue
		}
		rd, ok := Materialize(env, p, cfg, r)
		if !ok {
			continue
		}
		for _, id := range r.Orders {
			assigned[id] = true
		}
		doc.Routes = append(doc.Routes, *rd)
		doc.TotalDistance += r.Distance
		doc.TotalCost += r.Cost
	}

	for _, id := range env.OrderIDs() {
		if !assigned[id] {
			doc.Unassigned = append(doc.Unassigned, id)
		}
	}
	sort.Strings(doc.Unassigned)
	doc.Fulfilled = len(assigned)
	m.FinalCost = doc.TotalCost
	return doc, m, nil
}

func sortedOrderIDs(env Environment) []string {
	ids := append([]string(nil), env.OrderIDs()...)
	sort.Strings(ids)
	return ids
}
