package api

import (
	"errors"

	"fleetroute/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.ScenarioID == "" {
		return errors.New("scenarioId is required")
	}
	switch req.Algorithm {
	case "", "greedy", "alns":
	default:
		return errors.New("algorithm must be greedy or alns")
	}
	if req.TimeBudgetMs < 0 || req.TimeBudgetMs > 300_000 {
		return errors.New("timeBudgetMs must be in [0, 300000]")
	}
	if req.RegretK != 0 && (req.RegretK < 2 || req.RegretK > 10) {
		return errors.New("regretK must be in [2, 10]")
	}
	if req.CapacityMargin < 0 || req.CapacityMargin > 1 {
		return errors.New("capacityMargin must be in (0, 1]")
	}
	if req.DistanceFactor < 0 || req.DistanceFactor > 1 {
		return errors.New("distanceFactor must be in (0, 1]")
	}
	if req.MaxAttempts < 0 {
		return errors.New("maxAttempts must be non-negative")
	}
	if req.Patience < 0 {
		return errors.New("patience must be non-negative")
	}
	if req.Cooling != 0 && (req.Cooling <= 0 || req.Cooling >= 1) {
		return errors.New("cooling must be in (0, 1)")
	}
	if req.InitTemp < 0 {
		return errors.New("initTemp must be non-negative")
	}
	return nil
}
