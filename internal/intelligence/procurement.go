package intelligence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"
)

const (
	WasteRiskHigh   = "HIGH"
	WasteRiskMedium = "MEDIUM"
	WasteRiskLow    = "LOW"
)

// BulkDiscount returns the discount rate for an order of kg.
func BulkDiscount(kg float64) float64 {
	switch {
	case kg > 50:
		return 0.15
	case kg > 10:
		return 0.10
	default:
		return 0
	}
}

// WasteRisk classifies the mean recent waste as a share of the base rate and
// returns the matching order reduction factor.
func WasteRisk(wasteRate float64) (string, float64, string) {
	switch {
	case wasteRate > 0.3:
		return WasteRiskHigh, 0.85, "Reduced by 15% due to high waste history"
	case wasteRate > 0.15:
		return WasteRiskMedium, 0.92, "Reduced by 8% due to moderate waste history"
	default:
		return WasteRiskLow, 1.0, "No adjustment needed"
	}
}

type GuestGroup struct {
	Nationality string   `json:"nationality"`
	Count       int      `json:"count"`
	Dates       []string `json:"dates"`
}

type ProcurementRequest struct {
	StartDate time.Time    `json:"-"`
	EndDate   time.Time    `json:"-"`
	Guests    []GuestGroup `json:"guests"`
}

type ShoppingItem struct {
	IngredientID      uint     `json:"ingredient_id"`
	Name              string   `json:"name"`
	NameAr            string   `json:"name_ar"`
	ForecastedNeed    float64  `json:"forecasted_need"`
	SuggestedOrder    float64  `json:"suggested_order"`
	Unit              string   `json:"unit"`
	Supplier          string   `json:"supplier"`
	DistanceKm        *float64 `json:"distance_km"`
	BaseCost          float64  `json:"base_cost_tnd"`
	Discount          float64  `json:"discount_tnd"`
	FinalCost         float64  `json:"final_cost_tnd"`
	CarbonFootprintKg float64  `json:"carbon_footprint_kg"`
	WasteRisk         string   `json:"waste_risk"`
	AdjustmentNote    string   `json:"adjustment_note"`
	IsLocal           bool     `json:"is_local"`
}

type ProcurementInsights struct {
	TotalItems         int      `json:"total_items"`
	TotalCost          float64  `json:"total_cost_tnd"`
	TotalCarbonKg      float64  `json:"total_carbon_kg"`
	LocalSourcingPct   float64  `json:"local_sourcing_percentage"`
	BulkDiscountSaving float64  `json:"bulk_discount_savings_tnd"`
	HighRiskItems      int      `json:"high_risk_items_count"`
	Recommendations    []string `json:"recommendations"`
}

type ProcurementPlan struct {
	Period       map[string]string   `json:"period"`
	ShoppingList []ShoppingItem      `json:"shopping_list"`
	Insights     ProcurementInsights `json:"insights"`
}

func (r *ProcurementRequest) validate() error {
	if r.EndDate.Before(r.StartDate) {
		return apperr.Validation("end_date must not be before start_date")
	}
	if len(r.Guests) == 0 {
		return apperr.Validation("at least one guest group is required")
	}
	for i, g := range r.Guests {
		if strings.TrimSpace(g.Nationality) == "" {
			return apperr.Validation("guests[%d].nationality is required", i)
		}
		if g.Count <= 0 {
			return apperr.Validation("guests[%d].count must be positive", i)
		}
		if len(g.Dates) == 0 {
			return apperr.Validation("guests[%d].dates must not be empty", i)
		}
	}
	return nil
}

// Procurement aggregates demand over every group and date into an ordered
// shopping list, most expensive first.
func (s *Service) Procurement(ctx context.Context, req ProcurementRequest) (*ProcurementPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	ings, err := s.forecast.Ingredients(ctx)
	if err != nil {
		return nil, err
	}

	batch := s.forecast.Batch()
	demand := make([]float64, len(ings))
	for gi, g := range req.Guests {
		nat, err := s.forecast.Nationality(ctx, g.Nationality)
		if err != nil {
			return nil, err
		}
		for _, raw := range g.Dates {
			day, err := models.ParseDate(raw)
			if err != nil {
				return nil, apperr.Validation("guests[%d].dates: invalid date %q", gi, raw)
			}
			if day.Before(req.StartDate) || day.After(req.EndDate) {
				return nil, apperr.Validation("guests[%d].dates: %s is outside the requested period", gi, raw)
			}
			for i := range ings {
				d, err := batch.Demand(ctx, &ings[i], nat, g.Count, day)
				if err != nil {
					return nil, err
				}
				demand[i] += d
			}
		}
	}

	plan := &ProcurementPlan{
		Period: map[string]string{
			"start": req.StartDate.Format(models.DateLayout),
			"end":   req.EndDate.Format(models.DateLayout),
		},
		ShoppingList: make([]ShoppingItem, 0, len(ings)),
	}

	var totalCost, totalCarbon, totalDiscount float64
	var local, highRisk int
	for i := range ings {
		ing := &ings[i]
		qty := demand[i]

		base := qty * ing.CostPerUnit
		discount := base * BulkDiscount(qty)
		final := base - discount
		carbon := qty * ing.Supplier.Distance() * CO2PerKgKm

		recent, err := batch.RecentWaste(ctx, ing.ID)
		if err != nil {
			return nil, err
		}
		var rate float64
		if len(recent) > 0 && ing.BaseConsumptionRate > 0 {
			var sum float64
			for _, w := range recent {
				sum += w.QuantityKg
			}
			rate = sum / float64(len(recent)) / ing.BaseConsumptionRate
		}
		risk, factor, note := WasteRisk(rate)

		item := ShoppingItem{
			IngredientID:      ing.ID,
			Name:              ing.Name,
			NameAr:            ing.NameAr,
			ForecastedNeed:    forecast.Round2(qty),
			SuggestedOrder:    forecast.Round2(qty * factor),
			Unit:              ing.Unit,
			Supplier:          "No supplier",
			BaseCost:          forecast.Round2(base),
			Discount:          forecast.Round2(discount),
			FinalCost:         forecast.Round2(final),
			CarbonFootprintKg: forecast.Round2(carbon),
			WasteRisk:         risk,
			AdjustmentNote:    note,
			IsLocal:           ing.Supplier.IsLocal(),
		}
		if ing.Supplier != nil {
			item.Supplier = ing.Supplier.Name
			item.DistanceKm = ing.Supplier.DistanceKm
		}

		totalCost += final
		totalCarbon += carbon
		totalDiscount += discount
		if item.IsLocal {
			local++
		}
		if risk == WasteRiskHigh {
			highRisk++
		}
		plan.ShoppingList = append(plan.ShoppingList, item)
	}

	sort.SliceStable(plan.ShoppingList, func(i, j int) bool {
		return plan.ShoppingList[i].FinalCost > plan.ShoppingList[j].FinalCost
	})

	in := ProcurementInsights{
		TotalItems:         len(plan.ShoppingList),
		TotalCost:          forecast.Round2(totalCost),
		TotalCarbonKg:      forecast.Round2(totalCarbon),
		BulkDiscountSaving: forecast.Round2(totalDiscount),
		HighRiskItems:      highRisk,
		Recommendations:    []string{},
	}
	if n := len(plan.ShoppingList); n > 0 {
		in.LocalSourcingPct = round1(float64(local) / float64(n) * 100)
	}
	if in.LocalSourcingPct < 50 {
		in.Recommendations = append(in.Recommendations, "Consider switching to more local suppliers to reduce carbon footprint")
	}
	if highRisk > 0 {
		in.Recommendations = append(in.Recommendations, fmt.Sprintf("%d items have high waste risk - consider smaller initial orders", highRisk))
	}
	if in.TotalCarbonKg > 100 {
		in.Recommendations = append(in.Recommendations, "High carbon footprint detected - prioritize local ingredients")
	}
	plan.Insights = in
	return plan, nil
}
