package models

import "time"

// DisruptionEvent lowers demand by Severity (0..1) on every day it is active.
type DisruptionEvent struct {
	ID          uint       `gorm:"primaryKey"`
	Title       string     `gorm:"size:200;not null"`
	EventType   string     `gorm:"size:50;not null"` // weather, holiday, transport...
	Severity    float64    `gorm:"not null"`
	OccurredAt  time.Time  `gorm:"index;not null"`
	EndsAt      *time.Time `gorm:"index"` // nil = single day
	Description string     `gorm:"size:500"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LastDay is the final day the event is active.
func (e *DisruptionEvent) LastDay() time.Time {
	if e.EndsAt == nil {
		return Day(e.OccurredAt)
	}
	return Day(*e.EndsAt)
}

func (e *DisruptionEvent) ActiveOn(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(e.OccurredAt)) && !d.After(e.LastDay())
}
