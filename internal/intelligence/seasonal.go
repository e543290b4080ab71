package intelligence

import (
	"context"
	"sort"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"
)

type DishSustainability struct {
	DishID              uint     `json:"dish_id"`
	DishName            string   `json:"dish_name"`
	IsTraditional       bool     `json:"is_traditional"`
	SeasonalityScore    float64  `json:"seasonality_score"`
	CarbonFootprintKg   float64  `json:"carbon_footprint"`
	CostPerServing      float64  `json:"estimated_cost_per_serving"`
	LocalSourcingPct    float64  `json:"local_sourcing_percentage"`
	SustainabilityGrade string   `json:"sustainability_grade"`
	Ingredients         []string `json:"ingredients"`
}

type CostRange struct {
	Lowest  float64 `json:"lowest"`
	Highest float64 `json:"highest"`
}

type SeasonalRecommendations struct {
	RecommendedDishes  []string  `json:"recommended_dishes"`
	MostSustainable    *string   `json:"most_sustainable"`
	TraditionalOptions []string  `json:"traditional_options"`
	CostRange          CostRange `json:"cost_range"`
}

type SeasonalPlan struct {
	Month           int                     `json:"month"`
	Season          string                  `json:"season"`
	Dishes          []DishSustainability    `json:"dish_analysis"`
	Recommendations SeasonalRecommendations `json:"recommendations"`
}

// SustainabilityGrade: A when seasonality and local sourcing both exceed
// 70 %, B when seasonality exceeds 50 %, otherwise C.
func SustainabilityGrade(seasonalityPct, localPct float64) string {
	switch {
	case seasonalityPct > 70 && localPct > 70:
		return "A"
	case seasonalityPct > 50:
		return "B"
	default:
		return "C"
	}
}

// SeasonalOptimizer ranks dishes by how seasonal they are in month.
func (s *Service) SeasonalOptimizer(ctx context.Context, month int) (*SeasonalPlan, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Validation("month must be between 1 and 12")
	}

	var seasons []models.Season
	if err := s.db.WithContext(ctx).Order("id asc").Find(&seasons).Error; err != nil {
		return nil, apperr.Internal("load seasons", err)
	}
	var dishes []models.Dish
	if err := s.db.WithContext(ctx).
		Preload("Ingredients.Season").
		Preload("Ingredients.Supplier").
		Order("id asc").
		Find(&dishes).Error; err != nil {
		return nil, apperr.Internal("load dishes", err)
	}

	plan := &SeasonalPlan{Month: month, Season: "Unknown", Dishes: []DishSustainability{}}
	for i := range seasons {
		if seasons[i].Contains(month) {
			plan.Season = seasons[i].Name
			break
		}
	}

	for i := range dishes {
		d := &dishes[i]
		n := len(d.Ingredients)
		if n == 0 {
			continue
		}
		var inSeason, local int
		var carbon float64
		for j := range d.Ingredients {
			ing := &d.Ingredients[j]
			if ing.InSeason(month) {
				inSeason++
			}
			if ing.Supplier.IsLocal() {
				local++
			}
			carbon += ing.BaseConsumptionRate * ing.Supplier.Distance() * CO2PerKgKm
		}
		seasonality := float64(inSeason) / float64(n) * 100
		localPct := float64(local) / float64(n) * 100

		plan.Dishes = append(plan.Dishes, DishSustainability{
			DishID:              d.ID,
			DishName:            d.Name,
			IsTraditional:       d.IsTraditional,
			SeasonalityScore:    round1(seasonality),
			CarbonFootprintKg:   forecast.Round2(carbon),
			CostPerServing:      forecast.Round2(d.Cost()),
			LocalSourcingPct:    round1(localPct),
			SustainabilityGrade: SustainabilityGrade(seasonality, localPct),
			Ingredients:         d.IngredientNames(),
		})
	}

	sort.SliceStable(plan.Dishes, func(i, j int) bool {
		return plan.Dishes[i].SeasonalityScore > plan.Dishes[j].SeasonalityScore
	})

	rec := SeasonalRecommendations{RecommendedDishes: []string{}, TraditionalOptions: []string{}}
	for i, d := range plan.Dishes {
		if i < 3 {
			rec.RecommendedDishes = append(rec.RecommendedDishes, d.DishName)
		}
		if d.IsTraditional && len(rec.TraditionalOptions) < 3 {
			rec.TraditionalOptions = append(rec.TraditionalOptions, d.DishName)
		}
		if rec.MostSustainable == nil && d.SustainabilityGrade == "A" {
			name := d.DishName
			rec.MostSustainable = &name
		}
		if i == 0 || d.CostPerServing < rec.CostRange.Lowest {
			rec.CostRange.Lowest = d.CostPerServing
		}
		if i == 0 || d.CostPerServing > rec.CostRange.Highest {
			rec.CostRange.Highest = d.CostPerServing
		}
	}
	plan.Recommendations = rec
	return plan, nil
}
