package models

import "time"

// WasteLog: one discarded quantity of an ingredient on a day.
type WasteLog struct {
	ID               uint       `gorm:"primaryKey"`
	IngredientID     uint       `gorm:"index;not null"`
	Ingredient       Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:RESTRICT"`
	DishID           *uint      `gorm:"index"`
	Dish             *Dish      `gorm:"foreignKey:DishID;constraint:OnDelete:RESTRICT"`
	Date             time.Time  `gorm:"index;not null"`
	QuantityKg       float64    `gorm:"not null"`
	Reason           string     `gorm:"size:255"` // "flight delay", "over-preparation"...
	OccupancyOnDate  *int
	WeatherCondition string `gorm:"size:100"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
