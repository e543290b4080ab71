package models

import "time"

type Dish struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"size:150;not null" json:"name"`
	NameAr        string       `gorm:"size:150" json:"name_ar"`
	Description   string       `gorm:"size:500" json:"description"`
	IsTraditional bool         `gorm:"not null;default:false" json:"is_traditional"`
	CuisineType   string       `gorm:"size:50" json:"cuisine_type"`
	MealType      string       `gorm:"size:50" json:"meal_type"` // breakfast, lunch, dinner
	Ingredients   []Ingredient `gorm:"many2many:dish_ingredients;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (d *Dish) IngredientIDs() []uint {
	ids := make([]uint, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		ids = append(ids, ing.ID)
	}
	return ids
}

func (d *Dish) IngredientNames() []string {
	names := make([]string, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		names = append(names, ing.Name)
	}
	return names
}

// Cost is the summed serving cost of the dish's ingredients.
func (d *Dish) Cost() float64 {
	var total float64
	for i := range d.Ingredients {
		total += d.Ingredients[i].ServingCost()
	}
	return total
}
