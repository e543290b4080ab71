package models

import "time"

// LocalDistanceKm is the radius under which a supplier counts as local.
const LocalDistanceKm = 20.0

type Supplier struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Location       string    `gorm:"size:200" json:"location"`
	DistanceKm     *float64  `json:"distance_km"` // nil when unknown
	ContactPhone   string    `gorm:"size:50" json:"contact_phone"`
	Specialization string    `gorm:"size:255" json:"specialization"` // product categories
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsLocal reports a known, non-zero distance under LocalDistanceKm.
func (s *Supplier) IsLocal() bool {
	return s != nil && s.DistanceKm != nil && *s.DistanceKm > 0 && *s.DistanceKm < LocalDistanceKm
}

// Distance returns the distance or 0 when unknown.
func (s *Supplier) Distance() float64 {
	if s == nil || s.DistanceKm == nil {
		return 0
	}
	return *s.DistanceKm
}
