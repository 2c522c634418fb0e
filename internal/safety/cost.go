package safety

import "github.com/agentscaffold/scaffold/internal/model"

const (
	baseCostUSD  = 0.10
	costFloorUSD = 0.05

	successConfidence = 0.70
	fallbackCostUSD    = 0.50
	fallbackConfidence = 0.30
)

var priorityMultiplier = map[model.Priority]float64{
	model.PriorityHigh:   1.5,
	model.PriorityMedium: 1.0,
	model.PriorityLow:    0.8,
}

var costLabelAdjustments = map[string]float64{
	"scaffold": 0.05,
	"build":    0.15,
	"fix":      -0.05,
	"refactor": 0.10,
}

const perCriterionCostUSD = 0.02

// EstimateCost computes the heuristic pre-execution cost prediction for a
// task: base cost times a priority multiplier, plus additive per-label
// adjustments, plus a per-acceptance-criterion surcharge, floored at
// costFloorUSD. This never fails outright — an unrecognized priority
// returns the conservative fallbackEstimate instead of applying the
// formula, so EstimateCost always returns a usable estimate.
func EstimateCost(task model.TaskSpec) model.CostEstimate {
	multiplier, ok := priorityMultiplier[task.Priority]
	if !ok {
		return fallbackEstimate(task.TaskID)
	}

	factors := map[string]float64{
		"base":       baseCostUSD,
		"multiplier": multiplier,
	}

	cost := baseCostUSD * multiplier
	for _, label := range task.Labels {
		if adj, ok := costLabelAdjustments[label]; ok {
			cost += adj
			factors["label:"+label] = adj
		}
	}

	criteriaCost := perCriterionCostUSD * float64(len(task.AcceptanceCriteria))
	if criteriaCost > 0 {
		cost += criteriaCost
		factors["acceptance_criteria"] = criteriaCost
	}

	if cost < costFloorUSD {
		cost = costFloorUSD
	}

	return model.CostEstimate{
		TaskID:           task.TaskID,
		EstimatedCostUSD: roundToCents(cost),
		Confidence:       successConfidence,
		Method:           model.CostMethodHeuristic,
		Factors:          factors,
	}
}

// fallbackEstimate is returned whenever the heuristic formula cannot be
// applied (here: an unrecognized priority value), matching the spec's
// "on any exception, return conservative $0.50 at confidence 0.30" clause.
func fallbackEstimate(taskID string) model.CostEstimate {
	return model.CostEstimate{
		TaskID:           taskID,
		EstimatedCostUSD: fallbackCostUSD,
		Confidence:       fallbackConfidence,
		Method:           model.CostMethodFallback,
	}
}

func roundToCents(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
