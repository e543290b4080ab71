package forecast

import (
	"time"

	"terroir-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

type forecastResponse struct {
	*Result
	Explanation string `json:"explanation"`
}

// GET /api/forecast?occupancy=15&ingredient_id=1&nationality=FRA&date=2025-01-10
func ForecastHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupancy, err := httpx.RequireQueryInt(c, "occupancy")
		if err != nil {
			return err
		}
		ingredientID, err := httpx.QueryUint(c, "ingredient_id")
		if err != nil {
			return err
		}
		date, err := httpx.QueryDate(c, "date", time.Now())
		if err != nil {
			return err
		}

		res, err := e.Forecast(c.UserContext(), Request{
			Occupancy:       occupancy,
			IngredientID:    ingredientID,
			NationalityCode: c.Query("nationality"),
			Date:            date,
		})
		if err != nil {
			return err
		}
		return c.JSON(forecastResponse{Result: res, Explanation: Explain(res)})
	}
}

// GET /api/forecast/daily?occupancy=40&nationality=DEU&date=2025-01-10
func DailyHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		occupancy, err := httpx.RequireQueryInt(c, "occupancy")
		if err != nil {
			return err
		}
		date, err := httpx.QueryDate(c, "date", time.Now())
		if err != nil {
			return err
		}
		out, err := e.ForecastAll(c.UserContext(), occupancy, c.Query("nationality"), date)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

func Register(r fiber.Router, e *Engine) {
	g := r.Group("/forecast")
	g.Get("/", ForecastHandler(e))
	g.Get("/daily", DailyHandler(e))
}
