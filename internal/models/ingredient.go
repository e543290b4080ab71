package models

import (
	"strings"
	"time"
)

type IngredientCategory string

const (
	CategoryBread IngredientCategory = "bread"
	CategoryDairy IngredientCategory = "dairy"
	CategorySpice IngredientCategory = "spice"
	CategoryOther IngredientCategory = "other"
)

var categoryKeywords = []struct {
	category IngredientCategory
	words    []string
}{
	{CategoryBread, []string{"bread", "tabouna", "baguette"}},
	{CategoryDairy, []string{"milk", "yogurt", "cheese", "dairy"}},
	{CategorySpice, []string{"harissa", "spice", "pepper"}},
}

// ValidCategory accepts the known categories and the empty string.
func ValidCategory(c IngredientCategory) bool {
	switch c {
	case "", CategoryBread, CategoryDairy, CategorySpice, CategoryOther:
		return true
	}
	return false
}

type Ingredient struct {
	ID                  uint               `gorm:"primaryKey" json:"id"`
	Name                string             `gorm:"size:150;not null" json:"name"`
	NameAr              string             `gorm:"size:150" json:"name_ar"`
	Category            IngredientCategory `gorm:"size:20" json:"category"`
	BaseConsumptionRate float64            `gorm:"not null" json:"base_consumption_rate"` // kg per person
	Unit                string             `gorm:"size:20;not null;default:kg" json:"unit"`
	CostPerUnit         float64            `gorm:"not null;default:0" json:"cost_per_unit"`
	IsTraditional       bool               `gorm:"not null;default:false" json:"is_traditional"`
	IsStaple            bool               `gorm:"not null;default:false" json:"is_staple"`
	SeasonID            *uint              `gorm:"index" json:"season_id"` // nil = not seasonal
	Season              *Season            `gorm:"foreignKey:SeasonID;constraint:OnDelete:RESTRICT" json:"-"`
	SupplierID          *uint              `gorm:"index" json:"supplier_id"`
	Supplier            *Supplier          `gorm:"foreignKey:SupplierID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// EffectiveCategory returns the stored category, or one inferred from the
// ingredient name when none was stored.
func (i *Ingredient) EffectiveCategory() IngredientCategory {
	if i.Category != "" {
		return i.Category
	}
	name := strings.ToLower(i.Name)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(name, w) {
				return ck.category
			}
		}
	}
	return CategoryOther
}

// IsSeasonal reports whether the ingredient is tied to a season.
func (i *Ingredient) IsSeasonal() bool {
	return i.SeasonID != nil
}

// InSeason: the season lists month, or the ingredient is a year-round staple.
func (i *Ingredient) InSeason(month int) bool {
	if i.SeasonID == nil {
		return i.IsStaple
	}
	return i.Season.Contains(month)
}

// ServingCost is the cost of one person's base portion.
func (i *Ingredient) ServingCost() float64 {
	return i.CostPerUnit * i.BaseConsumptionRate
}
