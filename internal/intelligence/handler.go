package intelligence

import (
	"terroir-backend/internal/apperr"
	"terroir-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// POST /api/intelligence/procurement-optimizer?start_date=...&end_date=...
func ProcurementHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start, err := httpx.RequireQueryDate(c, "start_date")
		if err != nil {
			return err
		}
		end, err := httpx.RequireQueryDate(c, "end_date")
		if err != nil {
			return err
		}

		var req ProcurementRequest
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
		req.StartDate, req.EndDate = start, end

		plan, err := svc.Procurement(c.UserContext(), req)
		if err != nil {
			return err
		}
		return c.JSON(plan)
	}
}

// GET /api/intelligence/nationality-comparison?occupancy=10
func NationalityComparisonHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupancy, err := httpx.QueryInt(c, "occupancy", DefaultComparisonOccupancy)
		if err != nil {
			return err
		}
		out, err := svc.CompareNationalities(c.UserContext(), occupancy)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// POST /api/intelligence/waste-impact-simulator
func WasteSimulatorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SimulationRequest
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
		if req.Strategy == "" {
			return apperr.Validation("strategy is required")
		}
		out, err := svc.SimulateWaste(c.UserContext(), req)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/intelligence/kitchen-dashboard
func KitchenDashboardHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.KitchenDashboard(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/intelligence/seasonal-optimizer?month=1
func SeasonalOptimizerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := httpx.RequireQueryInt(c, "month")
		if err != nil {
			return err
		}
		out, err := svc.SeasonalOptimizer(c.UserContext(), month)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/intelligence/cost-benefit-analysis?days=30
func CostBenefitHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		days, err := httpx.QueryInt(c, "days", 30)
		if err != nil {
			return err
		}
		out, err := svc.CostBenefit(c.UserContext(), days)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/intelligence/cultural-insights
func CulturalInsightsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.CulturalInsights(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// Register mounts every report under r.
func Register(r fiber.Router, svc *Service) {
	g := r.Group("/intelligence")
	g.Post("/procurement-optimizer", ProcurementHandler(svc))
	g.Get("/nationality-comparison", NationalityComparisonHandler(svc))
	g.Post("/waste-impact-simulator", WasteSimulatorHandler(svc))
	g.Get("/kitchen-dashboard", KitchenDashboardHandler(svc))
	g.Get("/seasonal-optimizer", SeasonalOptimizerHandler(svc))
	g.Get("/cost-benefit-analysis", CostBenefitHandler(svc))
	g.Get("/cultural-insights", CulturalInsightsHandler(svc))
}
