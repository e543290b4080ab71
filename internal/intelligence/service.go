// Package intelligence composes the forecast, menu and waste engines into
// read-only planning reports. No report stores anything.
package intelligence

import (
	"context"
	"math"
	"sort"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/forecast"
	"terroir-backend/internal/models"

	"gorm.io/gorm"
)

// CO2PerKgKm is the transport emission factor in kg CO₂ per kg per km.
const CO2PerKgKm = 0.05

type Service struct {
	db       *gorm.DB
	forecast *forecast.Engine
	now      func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, forecast: forecast.NewEngine(db), now: time.Now}
}

func (s *Service) today() time.Time {
	return models.Day(s.now())
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func (s *Service) nationalities(ctx context.Context) ([]models.Nationality, error) {
	var nats []models.Nationality
	if err := s.db.WithContext(ctx).Order("id asc").Find(&nats).Error; err != nil {
		return nil, apperr.Internal("load nationalities", err)
	}
	return nats, nil
}

// Occupancy is the number of guests staying on a day, split by nationality.
type Occupancy struct {
	Guests    int            `json:"guests"`
	Breakdown map[string]int `json:"breakdown"`
}

// occupancyOn sums party sizes of reservations covering day.
func (s *Service) occupancyOn(ctx context.Context, day time.Time) (Occupancy, error) {
	day = models.Day(day)
	var reservations []models.Reservation
	if err := s.db.WithContext(ctx).
		Preload("Guest.Nationality").
		Where("start_date < ? AND end_date >= ?", day.AddDate(0, 0, 1), day).
		Find(&reservations).Error; err != nil {
		return Occupancy{}, apperr.Internal("load reservations", err)
	}

	occ := Occupancy{Breakdown: map[string]int{}}
	for i := range reservations {
		r := &reservations[i]
		if !r.Covers(day) {
			continue
		}
		occ.Guests += r.PartySize
		if r.Guest.Nationality != nil {
			occ.Breakdown[r.Guest.Nationality.Code] += r.PartySize
		}
	}
	return occ, nil
}

// demandFor sums the forecast of one ingredient over a nationality breakdown.
func demandFor(ctx context.Context, batch *forecast.Batch, ing *models.Ingredient, breakdown map[string]int, nats map[string]*models.Nationality, day time.Time) (float64, error) {
	codes := make([]string, 0, len(breakdown))
	for code := range breakdown {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var total float64
	for _, code := range codes {
		nat, ok := nats[code]
		if !ok || breakdown[code] <= 0 {
			continue
		}
		d, err := batch.Demand(ctx, ing, nat, breakdown[code], day)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

func byCode(nats []models.Nationality) map[string]*models.Nationality {
	m := make(map[string]*models.Nationality, len(nats))
	for i := range nats {
		m[nats[i].Code] = &nats[i]
	}
	return m
}

// wasteCost values logs at their ingredient's unit cost. Logs must have
// Ingredient loaded.
func wasteCost(logs []models.WasteLog) float64 {
	var cost float64
	for _, l := range logs {
		cost += l.QuantityKg * l.Ingredient.CostPerUnit
	}
	return cost
}
