package intelligence

import (
	"context"
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"
	"terroir-backend/internal/waste"
)

const (
	StrategyReduceBread    = "reduce_bread_by_percentage"
	StrategyFlightTracking = "implement_flight_tracking"
	StrategyWeather        = "weather_adjustment"

	// RecommendSavingsTND is the period saving above which a strategy is advised.
	RecommendSavingsTND = 100.0
)

type SimulationRequest struct {
	Strategy        string             `json:"strategy"`
	Parameters      map[string]float64 `json:"parameters"`
	TimeHorizonDays int                `json:"time_horizon_days"`
}

type WasteState struct {
	TotalWasteKg float64 `json:"total_waste_kg"`
	TotalCost    float64 `json:"total_cost_tnd"`
}

type SimulationImpact struct {
	WasteReductionKg  float64 `json:"waste_reduction_kg"`
	WasteReductionPct float64 `json:"waste_reduction_percentage"`
	CostSavings       float64 `json:"cost_savings_tnd"`
	MonthlySavings    float64 `json:"monthly_savings_tnd"`
	YearlySavings     float64 `json:"yearly_savings_tnd"`
}

type Simulation struct {
	Strategy        string             `json:"strategy"`
	Parameters      map[string]float64 `json:"parameters"`
	TimeHorizonDays int                `json:"time_horizon_days"`
	Current         WasteState         `json:"current_state"`
	Projected       WasteState         `json:"projected_state"`
	Impact          SimulationImpact   `json:"impact"`
	Recommendation  string             `json:"recommendation"`
}

// strategy selects the affected logs and the share of their waste removed.
type strategy struct {
	param   string
	def     float64
	percent bool
	affects func(l *models.WasteLog) bool
}

var strategies = map[string]strategy{
	StrategyReduceBread: {
		param:   "percentage",
		def:     20,
		percent: true,
		affects: func(l *models.WasteLog) bool {
			return l.Ingredient.EffectiveCategory() == models.CategoryBread
		},
	},
	StrategyFlightTracking: {
		param: "estimated_delay_reduction",
		def:   0.6,
		affects: func(l *models.WasteLog) bool {
			return strings.Contains(strings.ToLower(l.Reason), "flight")
		},
	},
	StrategyWeather: {
		param: "adjustment_factor",
		def:   0.15,
		affects: func(l *models.WasteLog) bool {
			return strings.Contains(strings.ToLower(l.WeatherCondition), "hot")
		},
	},
}

// SimulateWaste projects the saving of a reduction strategy over the last
// TimeHorizonDays days of waste.
func (s *Service) SimulateWaste(ctx context.Context, req SimulationRequest) (*Simulation, error) {
	st, ok := strategies[req.Strategy]
	if !ok {
		return nil, apperr.Validation("unknown strategy %q", req.Strategy)
	}
	days := req.TimeHorizonDays
	if days == 0 {
		days = 30
	}
	if days < 0 || days > waste.MaxWindowDays {
		return nil, apperr.Validation("time_horizon_days must be between 1 and %d", waste.MaxWindowDays)
	}

	share, ok := req.Parameters[st.param]
	if !ok {
		share = st.def
	}
	if st.percent {
		share /= 100
	}
	if share < 0 || share > 1 {
		return nil, apperr.Validation("parameter %s is out of range", st.param)
	}

	today := s.today()
	logs, err := waste.Logs(ctx, s.db, today.AddDate(0, 0, -(days-1)), today)
	if err != nil {
		return nil, err
	}

	var totalKg, affectedKg, affectedCost float64
	for i := range logs {
		l := &logs[i]
		totalKg += l.QuantityKg
		if st.affects(l) {
			affectedKg += l.QuantityKg
			affectedCost += l.QuantityKg * l.Ingredient.CostPerUnit
		}
	}
	totalCost := wasteCost(logs)

	reductionKg := affectedKg * share
	savings := affectedCost * share

	params := map[string]float64{st.param: share}
	if st.percent {
		params[st.param] = share * 100
	}

	sim := &Simulation{
		Strategy:        req.Strategy,
		Parameters:      params,
		TimeHorizonDays: days,
		Current: WasteState{
			TotalWasteKg: forecast.Round2(totalKg),
			TotalCost:    forecast.Round2(totalCost),
		},
		Projected: WasteState{
			TotalWasteKg: forecast.Round2(totalKg - reductionKg),
			TotalCost:    forecast.Round2(totalCost - savings),
		},
		Impact: SimulationImpact{
			WasteReductionKg: forecast.Round2(reductionKg),
			CostSavings:      forecast.Round2(savings),
			MonthlySavings:   forecast.Round2(savings / float64(days) * 30),
			YearlySavings:    forecast.Round2(savings / float64(days) * 365),
		},
		Recommendation: "Impact is minimal, consider other strategies",
	}
	if totalKg > 0 {
		sim.Impact.WasteReductionPct = round1(reductionKg / totalKg * 100)
	}
	if savings > RecommendSavingsTND {
		sim.Recommendation = "Implement this strategy"
	}
	return sim, nil
}
