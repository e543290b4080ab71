package waste

import (
	"terroir-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/waste/analysis?window_days=30
func AnalysisHandler(a *Analyzer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		window, err := httpx.QueryInt(c, "window_days", DefaultWindowDays)
		if err != nil {
			return err
		}
		out, err := a.Run(c.UserContext(), window)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

func Register(r fiber.Router, a *Analyzer) {
	r.Get("/waste/analysis", AnalysisHandler(a))
}
