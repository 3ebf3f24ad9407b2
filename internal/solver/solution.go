package solver

import "sort"

// Solution is the working set: every route plus the complement set of
// unassigned orders. Each order lives in at most one route at any time; the
// union of route order sets and the unassigned set is always the full
// catalog.
type Solution struct {
	Routes []*Route
	orders []string // full order catalog, fixed for the solve
}

func NewSolution(env Environment) *Solution {
	return &Solution{orders: append([]string(nil), env.OrderIDs()...)}
}

// Clone snapshots every route so a trial state never aliases the committed
// one.
func (s *Solution) Clone() *Solution {
	out := &Solution{orders: s.orders, Routes: make([]*Route, len(s.Routes))}
	for i, r := range s.Routes {
		out.Routes[i] = r.Clone()
	}
	return out
}

// Assigned returns the set of orders currently owned by a route.
func (s *Solution) Assigned() map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range s.Routes {
		for _, id := range r.Orders {
			out[id] = struct{}{}
		}
	}
	return out
}

// Unassigned returns the complement set, sorted for determinism.
func (s *Solution) Unassigned() []string {
	assigned := s.Assigned()
	out := []string{}
	for _, id := range s.orders {
		if _, ok := assigned[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Fulfilled counts distinct orders across all routes.
func (s *Solution) Fulfilled() int {
	return len(s.Assigned())
}

// TotalCost sums route costs. Routes with unreachable legs price as +Inf,
// which keeps them from ever looking like the best state.
func (s *Solution) TotalCost() float64 {
	total := 0.0
	for _, r := range s.Routes {
		total += r.Cost
	}
	return total
}
