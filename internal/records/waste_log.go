package records

import (
	"math"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type WasteLogRequest struct {
	IngredientID     *uint    `json:"ingredient_id"`
	DishID           *uint    `json:"dish_id"`
	Date             *string  `json:"date"`
	QuantityKg       *float64 `json:"quantity_kg"`
	Reason           *string  `json:"reason"`
	OccupancyOnDate  *int     `json:"occupancy_on_date"`
	WeatherCondition *string  `json:"weather_condition"`
}

type WasteLogResponse struct {
	ID               uint      `json:"id"`
	IngredientID     uint      `json:"ingredient_id"`
	DishID           *uint     `json:"dish_id"`
	Date             string    `json:"date"`
	QuantityKg       float64   `json:"quantity_kg"`
	Reason           string    `json:"reason"`
	OccupancyOnDate  *int      `json:"occupancy_on_date"`
	WeatherCondition string    `json:"weather_condition"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func wasteLogResponse(w *models.WasteLog) any {
	return WasteLogResponse{
		ID:               w.ID,
		IngredientID:     w.IngredientID,
		DishID:           w.DishID,
		Date:             w.Date.Format(models.DateLayout),
		QuantityKg:       w.QuantityKg,
		Reason:           w.Reason,
		OccupancyOnDate:  w.OccupancyOnDate,
		WeatherCondition: w.WeatherCondition,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// validateWasteLog checks ranges and the referenced ingredient and dish.
func validateWasteLog(tx *gorm.DB, w *models.WasteLog) error {
	if math.IsNaN(w.QuantityKg) || math.IsInf(w.QuantityKg, 0) {
		return apperr.Validation("quantity_kg must be a finite number")
	}
	if w.QuantityKg < 0 {
		return apperr.Validation("quantity_kg must not be negative")
	}
	if w.OccupancyOnDate != nil && *w.OccupancyOnDate < 0 {
		return apperr.Validation("occupancy_on_date must not be negative")
	}
	if err := exists(tx, &models.Ingredient{}, "ingredient", w.IngredientID); err != nil {
		return err
	}
	if w.DishID != nil {
		return exists(tx, &models.Dish{}, "dish", *w.DishID)
	}
	return nil
}

var wasteLogs = &resource[models.WasteLog, WasteLogRequest]{
	kind:  "waste_log",
	order: "date desc, id desc",
	apply: func(w *models.WasteLog, in *WasteLogRequest, full bool) error {
		if in.IngredientID != nil {
			w.IngredientID = *in.IngredientID
		} else if full {
			return missing("ingredient_id")
		}
		if in.DishID != nil || full {
			w.DishID = in.DishID
		}
		if err := setDate(&w.Date, in.Date, "date", full); err != nil {
			return err
		}
		if err := setFloat(&w.QuantityKg, in.QuantityKg, "quantity_kg", full, nil); err != nil {
			return err
		}
		if err := setString(&w.Reason, in.Reason, "reason", full, false); err != nil {
			return err
		}
		if in.OccupancyOnDate != nil || full {
			w.OccupancyOnDate = in.OccupancyOnDate
		}
		return setString(&w.WeatherCondition, in.WeatherCondition, "weather_condition", full, false)
	},
	check: func(tx *gorm.DB, w *models.WasteLog, _ *WasteLogRequest) error {
		return validateWasteLog(tx, w)
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		q, err := filterUint(c, q, "ingredient_id", "ingredient_id")
		if err != nil {
			return nil, err
		}
		return filterDates(c, q, "date", "date")
	},
	id:    func(w *models.WasteLog) uint { return w.ID },
	label: func(w *models.WasteLog) string { return w.Date.Format(models.DateLayout) },
	out:   wasteLogResponse,
}

func wasteLogRoutes(r fiber.Router) {
	g := wasteLogs.mount(r, "/waste-logs")
	g.Post("/import", ImportWasteLogsHandler())
}
