package models

import (
	"time"

	"gorm.io/datatypes"
)

// Season scores lie in [0.5,1.0].
const (
	MinSeasonScore = 0.5
	MaxSeasonScore = 1.0
)

type Season struct {
	ID          uint                     `gorm:"primaryKey" json:"id"`
	Name        string                   `gorm:"size:100;not null" json:"name"`
	Months      datatypes.JSONSlice[int] `gorm:"not null" json:"months"` // 1-12
	Score       float64                  `gorm:"not null;default:1" json:"score"`
	Description string                   `gorm:"size:255" json:"description"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func (s *Season) Contains(month int) bool {
	if s == nil {
		return false
	}
	for _, m := range s.Months {
		if m == month {
			return true
		}
	}
	return false
}
