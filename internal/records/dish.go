package records

import (
	"sort"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DishRequest struct {
	Name          *string `json:"name"`
	NameAr        *string `json:"name_ar"`
	Description   *string `json:"description"`
	IsTraditional *bool   `json:"is_traditional"`
	CuisineType   *string `json:"cuisine_type"`
	MealType      *string `json:"meal_type"`
	IngredientIDs *[]uint `json:"ingredient_ids"`
}

type DishResponse struct {
	models.Dish
	IngredientIDs []uint `json:"ingredient_ids"`
}

func dishResponse(d *models.Dish) any {
	ids := d.IngredientIDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return DishResponse{Dish: *d, IngredientIDs: ids}
}

// dishIngredients loads the requested ingredients and fails when any id is
// unknown. Duplicate ids collapse.
func dishIngredients(tx *gorm.DB, ids []uint) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("a dish needs at least one ingredient")
	}
	want := make(map[uint]bool, len(ids))
	distinct := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !want[id] {
			want[id] = true
			distinct = append(distinct, id)
		}
	}

	var found []models.Ingredient
	if err := tx.Where("id IN ?", distinct).Order("id asc").Find(&found).Error; err != nil {
		return nil, apperr.Internal("load dish ingredients", err)
	}
	if len(found) != len(distinct) {
		for _, ing := range found {
			delete(want, ing.ID)
		}
		for _, id := range distinct {
			if want[id] {
				return nil, apperr.Validation("ingredient %d does not exist", id)
			}
		}
	}
	return found, nil
}

var dishes = &resource[models.Dish, DishRequest]{
	kind:    "dish",
	order:   "name asc",
	preload: []string{"Ingredients"},
	deps: []dependent{
		{table: "waste_logs", column: "dish_id", label: "waste logs"},
		{table: "reservations", column: "dish_id", label: "reservations"},
	},
	apply: func(d *models.Dish, in *DishRequest, full bool) error {
		if err := setString(&d.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		if err := setString(&d.NameAr, in.NameAr, "name_ar", full, false); err != nil {
			return err
		}
		if err := setString(&d.Description, in.Description, "description", full, false); err != nil {
			return err
		}
		setBool(&d.IsTraditional, in.IsTraditional, full)
		if err := setString(&d.CuisineType, in.CuisineType, "cuisine_type", full, false); err != nil {
			return err
		}
		if err := setString(&d.MealType, in.MealType, "meal_type", full, false); err != nil {
			return err
		}
		if in.IngredientIDs == nil && full {
			return missing("ingredient_ids")
		}
		return nil
	},
	check: func(tx *gorm.DB, d *models.Dish, in *DishRequest) error {
		if d.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if in.IngredientIDs == nil {
			return nil
		}
		found, err := dishIngredients(tx, *in.IngredientIDs)
		if err != nil {
			return err
		}
		d.Ingredients = found
		return nil
	},
	// the ingredient set is replaced in the same transaction as the row
	saved: func(tx *gorm.DB, d *models.Dish, in *DishRequest) error {
		if in.IngredientIDs == nil {
			return nil
		}
		if err := tx.Model(d).Association("Ingredients").Replace(d.Ingredients); err != nil {
			return apperr.Internal("replace dish ingredients", err)
		}
		return nil
	},
	deleting: func(tx *gorm.DB, d *models.Dish) error {
		if err := tx.Model(d).Association("Ingredients").Clear(); err != nil {
			return apperr.Internal("clear dish ingredients", err)
		}
		return nil
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		if meal := c.Query("meal_type"); meal != "" {
			q = q.Where("meal_type = ?", meal)
		}
		return q, nil
	},
	id:    func(d *models.Dish) uint { return d.ID },
	label: func(d *models.Dish) string { return d.Name },
	out:   dishResponse,
}

func dishRoutes(r fiber.Router) {
	dishes.mount(r, "/dishes")
}
