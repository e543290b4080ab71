package menu

import (
	"terroir-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// GET /api/menu?month=1&nationality=FRA
func MenuHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		month, err := httpx.RequireQueryInt(c, "month")
		if err != nil {
			return err
		}
		m, err := e.Generate(c.UserContext(), month, c.Query("nationality"))
		if err != nil {
			return err
		}
		return c.JSON(m)
	}
}

// GET /api/menu/breakfast?nationality=DEU
func BreakfastHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Query("nationality")
		items, err := e.Breakfast(c.UserContext(), code)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"nationality":     code,
			"recommendations": items,
		})
	}
}

func Register(r fiber.Router, e *Engine) {
	g := r.Group("/menu")
	g.Get("/", MenuHandler(e))
	g.Get("/breakfast", BreakfastHandler(e))
}
