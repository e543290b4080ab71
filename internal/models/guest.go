package models

import "time"

type Guest struct {
	ID                  uint         `gorm:"primaryKey" json:"id"`
	Name                string       `gorm:"size:150;not null" json:"name"`
	Email               string       `gorm:"size:150;uniqueIndex;not null" json:"email"`
	NationalityID       uint         `gorm:"index;not null" json:"nationality_id"`
	Nationality         *Nationality `gorm:"foreignKey:NationalityID;constraint:OnDelete:RESTRICT" json:"-"`
	DietaryRestrictions string       `gorm:"size:255" json:"dietary_restrictions"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}
