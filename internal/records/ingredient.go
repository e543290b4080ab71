package records

import (
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const defaultUnit = "kg"

type IngredientRequest struct {
	Name                *string  `json:"name"`
	NameAr              *string  `json:"name_ar"`
	Category            *string  `json:"category"`
	BaseConsumptionRate *float64 `json:"base_consumption_rate"`
	Unit                *string  `json:"unit"`
	CostPerUnit         *float64 `json:"cost_per_unit"`
	IsTraditional       *bool    `json:"is_traditional"`
	IsStaple            *bool    `json:"is_staple"`
	SeasonID            *uint    `json:"season_id"`
	SupplierID          *uint    `json:"supplier_id"`
}

var ingredients = &resource[models.Ingredient, IngredientRequest]{
	kind:  "ingredient",
	order: "name asc",
	deps: []dependent{
		{table: "dish_ingredients", column: "ingredient_id", label: "dishes"},
		{table: "waste_logs", column: "ingredient_id", label: "waste logs"},
	},
	apply: func(i *models.Ingredient, in *IngredientRequest, full bool) error {
		if err := setString(&i.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		if err := setString(&i.NameAr, in.NameAr, "name_ar", full, false); err != nil {
			return err
		}
		var category string
		if in.Category != nil {
			category = strings.ToLower(strings.TrimSpace(*in.Category))
		}
		if in.Category != nil || full {
			i.Category = models.IngredientCategory(category)
		}
		if err := setFloat(&i.BaseConsumptionRate, in.BaseConsumptionRate, "base_consumption_rate", full, nil); err != nil {
			return err
		}
		if err := setString(&i.Unit, in.Unit, "unit", full, false); err != nil {
			return err
		}
		if i.Unit == "" {
			i.Unit = defaultUnit
		}
		if err := setFloat(&i.CostPerUnit, in.CostPerUnit, "cost_per_unit", full, float64Ptr(0)); err != nil {
			return err
		}
		setBool(&i.IsTraditional, in.IsTraditional, full)
		setBool(&i.IsStaple, in.IsStaple, full)
		if in.SeasonID != nil || full {
			i.SeasonID = in.SeasonID
		}
		if in.SupplierID != nil || full {
			i.SupplierID = in.SupplierID
		}
		return nil
	},
	check: func(tx *gorm.DB, i *models.Ingredient, _ *IngredientRequest) error {
		if i.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if !models.ValidCategory(i.Category) {
			return apperr.Validation("category must be one of bread, dairy, spice, other")
		}
		if i.BaseConsumptionRate <= 0 {
			return apperr.Validation("base_consumption_rate must be positive")
		}
		if i.CostPerUnit < 0 {
			return apperr.Validation("cost_per_unit must not be negative")
		}
		if i.SeasonID != nil {
			if err := exists(tx, &models.Season{}, "season", *i.SeasonID); err != nil {
				return err
			}
		}
		if i.SupplierID != nil {
			if err := exists(tx, &models.Supplier{}, "supplier", *i.SupplierID); err != nil {
				return err
			}
		}
		return nil
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		q, err := filterUint(c, q, "season_id", "season_id")
		if err != nil {
			return nil, err
		}
		q, err = filterUint(c, q, "supplier_id", "supplier_id")
		if err != nil {
			return nil, err
		}
		if cat := strings.ToLower(strings.TrimSpace(c.Query("category"))); cat != "" {
			q = q.Where("category = ?", cat)
		}
		return q, nil
	},
	id:    func(i *models.Ingredient) uint { return i.ID },
	label: func(i *models.Ingredient) string { return i.Name },
	out:   func(i *models.Ingredient) any { return *i },
}

func ingredientRoutes(r fiber.Router) {
	ingredients.mount(r, "/ingredients")
}
