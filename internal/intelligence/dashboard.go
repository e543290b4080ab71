package intelligence

import (
	"context"
	"fmt"
	"math"
	"sort"

	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"
	"terroir-backend/internal/waste"
)

const (
	// WasteAlertKg over the last 7 days raises a waste alert for an ingredient.
	WasteAlertKg = 2.0

	StatusNormal          = "NORMAL"
	StatusAttentionNeeded = "ATTENTION_NEEDED"
)

type PrepItem struct {
	IngredientID uint    `json:"ingredient_id"`
	Ingredient   string  `json:"ingredient"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Priority     string  `json:"priority,omitempty"`
}

type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

type DashboardOccupancy struct {
	Today             int            `json:"today"`
	Tomorrow          int            `json:"tomorrow"`
	TodayBreakdown    map[string]int `json:"today_breakdown"`
	TomorrowBreakdown map[string]int `json:"tomorrow_breakdown"`
}

type KitchenDashboard struct {
	Date             string             `json:"date"`
	Occupancy        DashboardOccupancy `json:"occupancy"`
	PrepRequirements []PrepItem         `json:"prep_requirements"`
	Alerts           []Alert            `json:"alerts"`
	TomorrowForecast []PrepItem         `json:"tomorrow_forecast"`
	Status           string             `json:"status"`
}

// KitchenDashboard summarizes today's and tomorrow's preparation from the
// reservations on file.
func (s *Service) KitchenDashboard(ctx context.Context) (*KitchenDashboard, error) {
	today := s.today()
	tomorrow := today.AddDate(0, 0, 1)

	occToday, err := s.occupancyOn(ctx, today)
	if err != nil {
		return nil, err
	}
	occTomorrow, err := s.occupancyOn(ctx, tomorrow)
	if err != nil {
		return nil, err
	}

	nats, err := s.nationalities(ctx)
	if err != nil {
		return nil, err
	}
	natsByCode := byCode(nats)
	ings, err := s.forecast.Ingredients(ctx)
	if err != nil {
		return nil, err
	}

	out := &KitchenDashboard{
		Date: today.Format(models.DateLayout),
		Occupancy: DashboardOccupancy{
			Today:             occToday.Guests,
			Tomorrow:          occTomorrow.Guests,
			TodayBreakdown:    occToday.Breakdown,
			TomorrowBreakdown: occTomorrow.Breakdown,
		},
		PrepRequirements: []PrepItem{},
		Alerts:           []Alert{},
		TomorrowForecast: []PrepItem{},
	}

	batch := s.forecast.Batch()
	for i := range ings {
		ing := &ings[i]
		d, err := demandFor(ctx, batch, ing, occToday.Breakdown, natsByCode, today)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			priority := "NORMAL"
			if ing.IsStaple {
				priority = "HIGH"
			}
			out.PrepRequirements = append(out.PrepRequirements, PrepItem{
				IngredientID: ing.ID, Ingredient: ing.Name, Quantity: forecast.Round2(d), Unit: ing.Unit, Priority: priority,
			})
		}

		d, err = demandFor(ctx, batch, ing, occTomorrow.Breakdown, natsByCode, tomorrow)
		if err != nil {
			return nil, err
		}
		if d > 0 {
			out.TomorrowForecast = append(out.TomorrowForecast, PrepItem{
				IngredientID: ing.ID, Ingredient: ing.Name, Quantity: forecast.Round2(d), Unit: ing.Unit,
			})
		}
	}
	sort.SliceStable(out.PrepRequirements, func(i, j int) bool {
		return out.PrepRequirements[i].Priority == "HIGH" && out.PrepRequirements[j].Priority != "HIGH"
	})

	events, err := batch.ActiveEvents(ctx, today)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		pct := int(math.Round(ev.Severity * 100))
		out.Alerts = append(out.Alerts, Alert{
			Type:     "DISRUPTION",
			Severity: "HIGH",
			Message:  fmt.Sprintf("%s: Reduce all prep by %d%%", ev.Title, pct),
			Action:   fmt.Sprintf("Adjust quantities down by %d%%", pct),
		})
	}

	logs, err := waste.Logs(ctx, s.db, today.AddDate(0, 0, -6), today)
	if err != nil {
		return nil, err
	}
	type wasted struct {
		name string
		kg   float64
	}
	byIngredient := map[uint]*wasted{}
	var order []uint
	for _, l := range logs {
		w, ok := byIngredient[l.IngredientID]
		if !ok {
			w = &wasted{name: l.Ingredient.Name}
			byIngredient[l.IngredientID] = w
			order = append(order, l.IngredientID)
		}
		w.kg += l.QuantityKg
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, id := range order {
		w := byIngredient[id]
		if w.kg > WasteAlertKg {
			out.Alerts = append(out.Alerts, Alert{
				Type:     "WASTE_ALERT",
				Severity: "MEDIUM",
				Message:  fmt.Sprintf("%s has %.1fkg waste in last 7 days", w.name, w.kg),
				Action:   fmt.Sprintf("Reduce %s prep by 15-20%%", w.name),
			})
		}
	}

	out.Status = StatusNormal
	if len(out.Alerts) > 0 {
		out.Status = StatusAttentionNeeded
	}
	return out, nil
}
