package models

import "time"

// Nationality holds the cultural preference multipliers of a guest group.
// Every multiplier lies in [0,2]; 1.0 is neutral.
type Nationality struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"size:3;uniqueIndex;not null" json:"code"` // FRA, DEU, TUN...
	Name            string    `gorm:"size:100;not null" json:"name"`
	BreadPreference float64   `gorm:"not null;default:1" json:"bread_preference"`
	DairyPreference float64   `gorm:"not null;default:1" json:"dairy_preference"`
	SpiceTolerance  float64   `gorm:"not null;default:1" json:"spice_tolerance"`
	BreakfastStyle  string    `gorm:"size:50" json:"breakfast_style"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PreferenceFor returns the multiplier for an ingredient category, 1.0 when
// the category carries no preference.
func (n *Nationality) PreferenceFor(c IngredientCategory) float64 {
	switch c {
	case CategoryBread:
		return n.BreadPreference
	case CategoryDairy:
		return n.DairyPreference
	case CategorySpice:
		return n.SpiceTolerance
	default:
		return 1.0
	}
}

// PreferenceSum is bread + dairy + spice.
func (n *Nationality) PreferenceSum() float64 {
	return n.BreadPreference + n.DairyPreference + n.SpiceTolerance
}
