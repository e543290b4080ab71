package models

import "time"

type Reservation struct {
	ID        uint      `gorm:"primaryKey"`
	GuestID   uint      `gorm:"index;not null"`
	Guest     Guest     `gorm:"foreignKey:GuestID;constraint:OnDelete:RESTRICT"`
	DishID    *uint     `gorm:"index"`
	Dish      *Dish     `gorm:"foreignKey:DishID;constraint:OnDelete:RESTRICT"`
	StartDate time.Time `gorm:"index;not null"`
	EndDate   time.Time `gorm:"index;not null"`
	PartySize int       `gorm:"not null;default:1"`
	Notes     string    `gorm:"size:500"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the stay includes day.
func (r *Reservation) Covers(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(r.StartDate)) && !d.After(Day(r.EndDate))
}
