package intelligence

import (
	"context"
	"sort"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"
)

const DefaultComparisonOccupancy = 10

type NationalityDemand struct {
	Nationality string  `json:"nationality"`
	Code        string  `json:"code"`
	DemandKg    float64 `json:"demand_kg"`
	Cost        float64 `json:"cost_tnd"`
	Multiplier  float64 `json:"multiplier"`
}

type IngredientComparison struct {
	IngredientID    uint                `json:"ingredient_id"`
	IngredientName  string              `json:"ingredient_name"`
	Unit            string              `json:"unit"`
	BaseRate        float64             `json:"base_rate"`
	ByNationality   []NationalityDemand `json:"by_nationality"`
	HighestConsumer string              `json:"highest_consumer"`
	LowestConsumer  string              `json:"lowest_consumer"`
	VariancePct     float64             `json:"variance_percentage"`

	category models.IngredientCategory
}

type CategoryInsight struct {
	HighestConsumer *string `json:"highest_consumer"`
	AverageVariance float64 `json:"average_variance"`
}

type ComparisonInsights struct {
	HighestVarianceIngredient *string         `json:"highest_variance_ingredient"`
	Bread                     CategoryInsight `json:"bread_insights"`
	Dairy                     CategoryInsight `json:"dairy_insights"`
}

type NationalityComparison struct {
	Occupancy int                    `json:"occupancy"`
	Date      string                 `json:"date"`
	Matrix    []IngredientComparison `json:"comparison_matrix"`
	Insights  ComparisonInsights     `json:"insights"`
}

// CompareNationalities forecasts every ingredient for every nationality at
// the same occupancy on today's date.
func (s *Service) CompareNationalities(ctx context.Context, occupancy int) (*NationalityComparison, error) {
	if occupancy <= 0 {
		return nil, apperr.Validation("occupancy must be a positive integer")
	}
	nats, err := s.nationalities(ctx)
	if err != nil {
		return nil, err
	}
	ings, err := s.forecast.Ingredients(ctx)
	if err != nil {
		return nil, err
	}

	today := s.today()
	out := &NationalityComparison{
		Occupancy: occupancy,
		Date:      today.Format(models.DateLayout),
		Matrix:    make([]IngredientComparison, 0, len(ings)),
	}
	if len(nats) == 0 {
		return out, nil
	}

	batch := s.forecast.Batch()
	for i := range ings {
		ing := &ings[i]
		row := IngredientComparison{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			Unit:           ing.Unit,
			BaseRate:       ing.BaseConsumptionRate,
			ByNationality:  make([]NationalityDemand, 0, len(nats)),
			category:       ing.EffectiveCategory(),
		}
		for j := range nats {
			d, err := batch.Demand(ctx, ing, &nats[j], occupancy, today)
			if err != nil {
				return nil, err
			}
			mult := 1.0
			if ing.BaseConsumptionRate > 0 {
				mult = forecast.Round2(d / (float64(occupancy) * ing.BaseConsumptionRate))
			}
			row.ByNationality = append(row.ByNationality, NationalityDemand{
				Nationality: nats[j].Name,
				Code:        nats[j].Code,
				DemandKg:    forecast.Round2(d),
				Cost:        forecast.Round2(d * ing.CostPerUnit),
				Multiplier:  mult,
			})
		}

		sort.SliceStable(row.ByNationality, func(a, b int) bool {
			return row.ByNationality[a].DemandKg > row.ByNationality[b].DemandKg
		})
		hi, lo := row.ByNationality[0], row.ByNationality[len(row.ByNationality)-1]
		row.HighestConsumer = hi.Nationality
		row.LowestConsumer = lo.Nationality
		if lo.DemandKg > 0 {
			row.VariancePct = round1((hi.DemandKg - lo.DemandKg) / lo.DemandKg * 100)
		}
		out.Matrix = append(out.Matrix, row)
	}

	out.Insights = comparisonInsights(out.Matrix)
	return out, nil
}

func comparisonInsights(matrix []IngredientComparison) ComparisonInsights {
	var in ComparisonInsights
	var best *IngredientComparison
	for i := range matrix {
		if best == nil || matrix[i].VariancePct > best.VariancePct {
			best = &matrix[i]
		}
	}
	if best != nil {
		in.HighestVarianceIngredient = &best.IngredientName
	}
	in.Bread = categoryInsight(matrix, models.CategoryBread)
	in.Dairy = categoryInsight(matrix, models.CategoryDairy)
	return in
}

func categoryInsight(matrix []IngredientComparison, cat models.IngredientCategory) CategoryInsight {
	var ci CategoryInsight
	var top float64
	var variance float64
	var n int
	for i := range matrix {
		row := &matrix[i]
		if row.category != cat {
			continue
		}
		n++
		variance += row.VariancePct
		if lead := row.ByNationality[0]; ci.HighestConsumer == nil || lead.DemandKg > top {
			name := lead.Nationality
			ci.HighestConsumer = &name
			top = lead.DemandKg
		}
	}
	if n > 0 {
		ci.AverageVariance = round1(variance / float64(n))
	}
	return ci
}
