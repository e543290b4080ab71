package intelligence

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/database"
	"terroir-backend/internal/middleware"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var today = time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	db               *gorm.DB
	svc              *Service
	fra, deu, tun    models.Nationality
	bread, oil, milk models.Ingredient
	farm, importer   models.Supplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.OpenTest(t)
	f := &fixture{db: db}

	f.fra = models.Nationality{Code: "FRA", Name: "French", BreadPreference: 1.3, DairyPreference: 1.2, SpiceTolerance: 0.8, BreakfastStyle: "Continental"}
	f.deu = models.Nationality{Code: "DEU", Name: "German", BreadPreference: 1.5, DairyPreference: 1.1, SpiceTolerance: 0.7, BreakfastStyle: "Continental"}
	f.tun = models.Nationality{Code: "TUN", Name: "Tunisian", BreadPreference: 1.4, DairyPreference: 0.8, SpiceTolerance: 1.8, BreakfastStyle: "Traditional"}
	for _, n := range []*models.Nationality{&f.fra, &f.deu, &f.tun} {
		require.NoError(t, db.Create(n).Error)
	}

	f.farm = models.Supplier{Name: "Cap Bon Farm", DistanceKm: ptr(8.0)}
	f.importer = models.Supplier{Name: "Sfax Importer", DistanceKm: ptr(120.0)}
	require.NoError(t, db.Create(&f.farm).Error)
	require.NoError(t, db.Create(&f.importer).Error)

	f.bread = models.Ingredient{Name: "Tabouna Bread", BaseConsumptionRate: 0.2, Unit: "kg", CostPerUnit: 2, IsStaple: true, SupplierID: &f.farm.ID}
	f.oil = models.Ingredient{Name: "Olive Oil", BaseConsumptionRate: 0.05, Unit: "l", CostPerUnit: 10, SupplierID: &f.importer.ID}
	f.milk = models.Ingredient{Name: "Fresh Milk", BaseConsumptionRate: 0.1, Unit: "l", CostPerUnit: 3}
	for _, ing := range []*models.Ingredient{&f.bread, &f.oil, &f.milk} {
		require.NoError(t, db.Create(ing).Error)
	}

	logs := []models.WasteLog{
		{IngredientID: f.bread.ID, Date: today, QuantityKg: 1.5, Reason: "over-preparation", WeatherCondition: "Hot"},
		{IngredientID: f.bread.ID, Date: today.AddDate(0, 0, -1), QuantityKg: 1.5, Reason: "flight delay"},
		{IngredientID: f.bread.ID, Date: today.AddDate(0, 0, -2), QuantityKg: 1.5},
		{IngredientID: f.milk.ID, Date: today.AddDate(0, 0, -3), QuantityKg: 0.5, Reason: "Flight delay"},
	}
	for i := range logs {
		require.NoError(t, db.Create(&logs[i]).Error)
	}

	f.svc = NewService(db)
	f.svc.now = func() time.Time { return today.Add(8 * time.Hour) }
	return f
}

func (f *fixture) addStays(t *testing.T) {
	t.Helper()
	alice := models.Guest{Name: "Alice", Email: "alice@example.com", NationalityID: f.fra.ID}
	bernd := models.Guest{Name: "Bernd", Email: "bernd@example.com", NationalityID: f.deu.ID}
	require.NoError(t, f.db.Create(&alice).Error)
	require.NoError(t, f.db.Create(&bernd).Error)

	require.NoError(t, f.db.Create(&models.Reservation{
		GuestID: alice.ID, StartDate: today.AddDate(0, 0, -1), EndDate: today.AddDate(0, 0, 1), PartySize: 2,
	}).Error)
	require.NoError(t, f.db.Create(&models.Reservation{
		GuestID: bernd.ID, StartDate: today.AddDate(0, 0, 1), EndDate: today.AddDate(0, 0, 2), PartySize: 1,
	}).Error)
}

func itemByName(items []ShoppingItem, name string) ShoppingItem {
	for _, it := range items {
		if it.Name == name {
			return it
		}
	}
	return ShoppingItem{}
}

func TestBulkDiscountAndWasteRisk(t *testing.T) {
	assert.Zero(t, BulkDiscount(10))
	assert.Equal(t, 0.10, BulkDiscount(10.5))
	assert.Equal(t, 0.15, BulkDiscount(51))

	risk, factor, _ := WasteRisk(0.31)
	assert.Equal(t, WasteRiskHigh, risk)
	assert.Equal(t, 0.85, factor)
	risk, factor, _ = WasteRisk(0.2)
	assert.Equal(t, WasteRiskMedium, risk)
	assert.Equal(t, 0.92, factor)
	risk, _, _ = WasteRisk(0.15)
	assert.Equal(t, WasteRiskLow, risk)
}

func TestProcurement(t *testing.T) {
	f := newFixture(t)

	plan, err := f.svc.Procurement(context.Background(), ProcurementRequest{
		StartDate: today,
		EndDate:   today.AddDate(0, 0, 1),
		Guests: []GuestGroup{
			{Nationality: "FRA", Count: 10, Dates: []string{"2025-03-20", "2025-03-21"}},
			{Nationality: "deu", Count: 5, Dates: []string{"2025-03-20"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.ShoppingList, 3)

	assert.Equal(t, "Olive Oil", plan.ShoppingList[0].Name)
	assert.Equal(t, "Tabouna Bread", plan.ShoppingList[1].Name)
	assert.Equal(t, "Fresh Milk", plan.ShoppingList[2].Name)

	bread := itemByName(plan.ShoppingList, "Tabouna Bread")
	// FRA 2 × 1.768 + DEU 1.02
	assert.InDelta(t, 4.56, bread.ForecastedNeed, 0.001)
	assert.InDelta(t, 3.87, bread.SuggestedOrder, 0.001)
	assert.Equal(t, WasteRiskHigh, bread.WasteRisk)
	assert.InDelta(t, 9.11, bread.FinalCost, 0.001)
	assert.InDelta(t, 1.82, bread.CarbonFootprintKg, 0.001)
	assert.True(t, bread.IsLocal)
	assert.Equal(t, "Cap Bon Farm", bread.Supplier)

	oil := itemByName(plan.ShoppingList, "Olive Oil")
	assert.InDelta(t, 1.0, oil.ForecastedNeed, 0.001)
	assert.InDelta(t, 6.0, oil.CarbonFootprintKg, 0.001)
	assert.Equal(t, WasteRiskLow, oil.WasteRisk)
	assert.Equal(t, "No supplier", itemByName(plan.ShoppingList, "Fresh Milk").Supplier)

	in := plan.Insights
	assert.Equal(t, 3, in.TotalItems)
	assert.Equal(t, 33.3, in.LocalSourcingPct)
	assert.Equal(t, 2, in.HighRiskItems)
	assert.Equal(t, []string{
		"Consider switching to more local suppliers to reduce carbon footprint",
		"2 items have high waste risk - consider smaller initial orders",
	}, in.Recommendations)
}

func TestProcurementValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Procurement(ctx, ProcurementRequest{
		StartDate: today, EndDate: today,
		Guests: []GuestGroup{{Nationality: "FRA", Count: 2, Dates: []string{"2025-04-01"}}},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Procurement(ctx, ProcurementRequest{
		StartDate: today, EndDate: today.AddDate(0, 0, -1),
		Guests: []GuestGroup{{Nationality: "FRA", Count: 2, Dates: []string{"2025-03-20"}}},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Procurement(ctx, ProcurementRequest{
		StartDate: today, EndDate: today,
		Guests: []GuestGroup{{Nationality: "XYZ", Count: 2, Dates: []string{"2025-03-20"}}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCompareNationalities(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.CompareNationalities(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, out.Matrix, 3)

	bread := out.Matrix[0]
	assert.Equal(t, "German", bread.HighestConsumer)
	assert.Equal(t, "French", bread.LowestConsumer)
	assert.Equal(t, 2.04, bread.ByNationality[0].DemandKg)
	assert.Equal(t, 1.02, bread.ByNationality[0].Multiplier)
	assert.Equal(t, 15.3, bread.VariancePct)

	assert.Zero(t, out.Matrix[1].VariancePct)

	require.NotNil(t, out.Insights.HighestVarianceIngredient)
	assert.Equal(t, "Fresh Milk", *out.Insights.HighestVarianceIngredient)
	require.NotNil(t, out.Insights.Bread.HighestConsumer)
	assert.Equal(t, "German", *out.Insights.Bread.HighestConsumer)
	require.NotNil(t, out.Insights.Dairy.HighestConsumer)
	assert.Equal(t, "French", *out.Insights.Dairy.HighestConsumer)

	_, err = f.svc.CompareNationalities(context.Background(), 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSimulateWaste(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sim, err := f.svc.SimulateWaste(ctx, SimulationRequest{
		Strategy:        StrategyReduceBread,
		Parameters:      map[string]float64{"percentage": 50},
		TimeHorizonDays: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, WasteState{TotalWasteKg: 5, TotalCost: 10.5}, sim.Current)
	assert.Equal(t, WasteState{TotalWasteKg: 2.75, TotalCost: 6}, sim.Projected)
	assert.Equal(t, SimulationImpact{
		WasteReductionKg:  2.25,
		WasteReductionPct: 45,
		CostSavings:       4.5,
		MonthlySavings:    19.29,
		YearlySavings:     234.64,
	}, sim.Impact)
	assert.Equal(t, "Impact is minimal, consider other strategies", sim.Recommendation)

	sim, err = f.svc.SimulateWaste(ctx, SimulationRequest{Strategy: StrategyFlightTracking, TimeHorizonDays: 7})
	require.NoError(t, err)
	assert.InDelta(t, 1.2, sim.Impact.WasteReductionKg, 1e-9)
	assert.InDelta(t, 2.7, sim.Impact.CostSavings, 1e-9)
	assert.Equal(t, 0.6, sim.Parameters["estimated_delay_reduction"])

	sim, err = f.svc.SimulateWaste(ctx, SimulationRequest{Strategy: StrategyWeather, TimeHorizonDays: 7})
	require.NoError(t, err)
	assert.InDelta(t, 0.225, sim.Impact.WasteReductionKg, 0.006)

	_, err = f.svc.SimulateWaste(ctx, SimulationRequest{Strategy: "pray"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestKitchenDashboard(t *testing.T) {
	f := newFixture(t)
	f.addStays(t)
	require.NoError(t, f.db.Create(&models.DisruptionEvent{
		Title: "Sandstorm", EventType: "weather", Severity: 0.3, OccurredAt: today,
	}).Error)

	d, err := f.svc.KitchenDashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-03-20", d.Date)
	assert.Equal(t, 2, d.Occupancy.Today)
	assert.Equal(t, 3, d.Occupancy.Tomorrow)
	assert.Equal(t, map[string]int{"FRA": 2}, d.Occupancy.TodayBreakdown)
	assert.Equal(t, map[string]int{"FRA": 2, "DEU": 1}, d.Occupancy.TomorrowBreakdown)

	require.Len(t, d.PrepRequirements, 3)
	assert.Equal(t, PrepItem{IngredientID: f.bread.ID, Ingredient: "Tabouna Bread", Quantity: 0.25, Unit: "kg", Priority: "HIGH"}, d.PrepRequirements[0])
	assert.Equal(t, "NORMAL", d.PrepRequirements[1].Priority)
	assert.Len(t, d.TomorrowForecast, 3)

	require.Len(t, d.Alerts, 2)
	assert.Equal(t, "DISRUPTION", d.Alerts[0].Type)
	assert.Equal(t, "Sandstorm: Reduce all prep by 30%", d.Alerts[0].Message)
	assert.Equal(t, "WASTE_ALERT", d.Alerts[1].Type)
	assert.Equal(t, "Tabouna Bread has 4.5kg waste in last 7 days", d.Alerts[1].Message)
	assert.Equal(t, StatusAttentionNeeded, d.Status)
}

func TestKitchenDashboardQuietDay(t *testing.T) {
	f := newFixture(t)
	f.svc.now = func() time.Time { return today.AddDate(0, 1, 0) }

	d, err := f.svc.KitchenDashboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.Occupancy.Today)
	assert.Empty(t, d.PrepRequirements)
	assert.Empty(t, d.Alerts)
	assert.Equal(t, StatusNormal, d.Status)
}

func TestSeasonalOptimizer(t *testing.T) {
	f := newFixture(t)
	spring := models.Season{Name: "Spring", Months: []int{3, 4, 5}, Score: 1.0}
	require.NoError(t, f.db.Create(&spring).Error)
	fava := models.Ingredient{Name: "Fava Beans", BaseConsumptionRate: 0.15, CostPerUnit: 3, SeasonID: &spring.ID, SupplierID: &f.farm.ID}
	require.NoError(t, f.db.Create(&fava).Error)
	require.NoError(t, f.db.Create(&models.Dish{Name: "Ful Medames", IsTraditional: true, Ingredients: []models.Ingredient{fava, f.oil}}).Error)
	require.NoError(t, f.db.Create(&models.Dish{Name: "Bread Basket", Ingredients: []models.Ingredient{f.bread}}).Error)

	plan, err := f.svc.SeasonalOptimizer(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "Spring", plan.Season)
	require.Len(t, plan.Dishes, 2)

	basket, ful := plan.Dishes[0], plan.Dishes[1]
	assert.Equal(t, "Bread Basket", basket.DishName)
	assert.Equal(t, 100.0, basket.SeasonalityScore)
	assert.Equal(t, "A", basket.SustainabilityGrade)

	assert.Equal(t, 50.0, ful.SeasonalityScore)
	assert.Equal(t, 50.0, ful.LocalSourcingPct)
	assert.Equal(t, "C", ful.SustainabilityGrade)
	assert.InDelta(t, 0.36, ful.CarbonFootprintKg, 1e-9)
	assert.InDelta(t, 0.95, ful.CostPerServing, 1e-9)

	rec := plan.Recommendations
	assert.Equal(t, []string{"Bread Basket", "Ful Medames"}, rec.RecommendedDishes)
	assert.Equal(t, []string{"Ful Medames"}, rec.TraditionalOptions)
	require.NotNil(t, rec.MostSustainable)
	assert.Equal(t, "Bread Basket", *rec.MostSustainable)
	assert.Equal(t, CostRange{Lowest: 0.4, Highest: 0.95}, rec.CostRange)

	_, err = f.svc.SeasonalOptimizer(context.Background(), 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestSustainabilityGrade(t *testing.T) {
	assert.Equal(t, "A", SustainabilityGrade(71, 71))
	assert.Equal(t, "B", SustainabilityGrade(71, 70))
	assert.Equal(t, "C", SustainabilityGrade(50, 100))
}

func TestCostBenefit(t *testing.T) {
	f := newFixture(t)
	f.addStays(t)

	cb, err := f.svc.CostBenefit(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, CostBenefitWaste{TotalWasteCost: 10.5, WastePerGuest: 2.63, EstimatedBaseline: 14.7}, cb.Waste)
	assert.Equal(t, 4.2, cb.Savings.ActualSavings)
	assert.Equal(t, 18.0, cb.Savings.MonthlySavings)
	assert.Equal(t, 219.0, cb.Savings.YearlyProjection)
	assert.Equal(t, 0.4, cb.Savings.ROIPercentage)
	assert.Equal(t, 99.0, cb.Efficiency.Score)
	assert.Equal(t, "A", cb.Efficiency.Grade)
	assert.Equal(t, 4, cb.Efficiency.TotalGuestDays)
	assert.Equal(t, "Excellent performance! System is delivering strong ROI", cb.Recommendation)

	_, err = f.svc.CostBenefit(context.Background(), 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEfficiencyGrades(t *testing.T) {
	assert.Equal(t, 100.0, EfficiencyScore(0))
	assert.Equal(t, 50.0, EfficiencyScore(1000))
	assert.Equal(t, "B", EfficiencyGrade(80))
	assert.Equal(t, "C", EfficiencyGrade(75))
}

func TestCulturalInsights(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.CulturalInsights(context.Background())
	require.NoError(t, err)

	require.Len(t, out.PreferenceMatrix, 3)
	assert.Equal(t, []string{"Olive Oil"}, out.PreferenceMatrix["FRA"].LowDemand)
	assert.Empty(t, out.PreferenceMatrix["FRA"].HighDemand)
	assert.Equal(t, []string{"Tabouna Bread"}, out.PreferenceMatrix["DEU"].HighDemand)

	require.Len(t, out.Compatibility, 3)
	assert.Equal(t, "FRA-DEU", out.Compatibility[0].Codes)
	assert.Equal(t, 93.3, out.Compatibility[0].Score)
	assert.Equal(t, "HIGH", out.Compatibility[0].Status)
	assert.Equal(t, 75.0, out.Compatibility[2].Score)
	assert.Equal(t, "MEDIUM", out.Compatibility[2].Status)

	in := out.Insights
	assert.Equal(t, "German + Tunisian", in.LeastCompatible.Pair)
	assert.Equal(t, "MEDIUM", in.DiversityRequirement)
	assert.Equal(t, "Tunisian", in.MostDemanding.Name)
	assert.Equal(t, 4.0, in.MostDemanding.TotalPreferenceScore)
	assert.Equal(t, "French", in.LeastDemanding.Name)
	assert.Contains(t, out.Recommendations, "Tunisian guests require 40% more bread than average")
}

func TestCompatibilityScore(t *testing.T) {
	assert.Equal(t, 100.0, CompatibilityScore(0, 0, 0))
	assert.InDelta(t, 50.0, CompatibilityScore(1, -1, 1), 1e-9)
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	Register(app.Group("/api"), f.svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/intelligence/seasonal-optimizer", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/intelligence/cultural-insights", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var insights CulturalInsights
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&insights))
	assert.Len(t, insights.Compatibility, 3)

	req := httptest.NewRequest("POST", "/api/intelligence/procurement-optimizer?start_date=2025-03-20&end_date=2025-03-20",
		strings.NewReader(`{"guests":[{"nationality":"FRA","count":4,"dates":["2025-03-20"]}]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/intelligence/waste-impact-simulator", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
