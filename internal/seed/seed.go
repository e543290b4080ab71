// Package seed loads a YAML dataset of seasons, nationalities, suppliers,
// ingredients, dishes, guests, reservations, disruptions and waste logs into
// the database. Applying the same dataset twice creates nothing new.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"terroir-backend/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed default.yaml
var defaultDataset []byte

type Season struct {
	Name        string  `yaml:"name"`
	Months      []int   `yaml:"months"`
	Score       float64 `yaml:"score"`
	Description string  `yaml:"description"`
}

type Nationality struct {
	Code            string  `yaml:"code"`
	Name            string  `yaml:"name"`
	BreadPreference float64 `yaml:"bread_preference"`
	DairyPreference float64 `yaml:"dairy_preference"`
	SpiceTolerance  float64 `yaml:"spice_tolerance"`
	BreakfastStyle  string  `yaml:"breakfast_style"`
}

type Supplier struct {
	Name           string   `yaml:"name"`
	Location       string   `yaml:"location"`
	DistanceKm     *float64 `yaml:"distance_km"`
	ContactPhone   string   `yaml:"contact_phone"`
	Specialization string   `yaml:"specialization"`
}

type Ingredient struct {
	Name                string  `yaml:"name"`
	NameAr              string  `yaml:"name_ar"`
	Category            string  `yaml:"category"`
	BaseConsumptionRate float64 `yaml:"base_consumption_rate"`
	Unit                string  `yaml:"unit"`
	CostPerUnit         float64 `yaml:"cost_per_unit"`
	Season              string  `yaml:"season"`
	Supplier            string  `yaml:"supplier"`
	Traditional         bool    `yaml:"traditional"`
	Staple              bool    `yaml:"staple"`
}

type Dish struct {
	Name        string   `yaml:"name"`
	NameAr      string   `yaml:"name_ar"`
	Description string   `yaml:"description"`
	Traditional bool     `yaml:"traditional"`
	CuisineType string   `yaml:"cuisine_type"`
	MealType    string   `yaml:"meal_type"`
	Ingredients []string `yaml:"ingredients"`
}

type Guest struct {
	Name                string `yaml:"name"`
	Email               string `yaml:"email"`
	Nationality         string `yaml:"nationality"`
	DietaryRestrictions string `yaml:"dietary_restrictions"`
}

// Reservation dates are relative to the day the dataset is applied.
type Reservation struct {
	Guest        string `yaml:"guest"`
	Dish         string `yaml:"dish"`
	StartsInDays int    `yaml:"starts_in_days"`
	Nights       int    `yaml:"nights"`
	PartySize    int    `yaml:"party_size"`
	Notes        string `yaml:"notes"`
}

type Disruption struct {
	Title       string  `yaml:"title"`
	EventType   string  `yaml:"event_type"`
	Severity    float64 `yaml:"severity"`
	OccurredAt  string  `yaml:"occurred_at"`
	EndsAt      string  `yaml:"ends_at"`
	Description string  `yaml:"description"`
}

type WasteLog struct {
	Ingredient string  `yaml:"ingredient"`
	Dish       string  `yaml:"dish"`
	DaysAgo    int     `yaml:"days_ago"`
	QuantityKg float64 `yaml:"quantity_kg"`
	Reason     string  `yaml:"reason"`
	Occupancy  *int    `yaml:"occupancy"`
	Weather    string  `yaml:"weather"`
}

type Dataset struct {
	Seasons       []Season      `yaml:"seasons"`
	Nationalities []Nationality `yaml:"nationalities"`
	Suppliers     []Supplier    `yaml:"suppliers"`
	Ingredients   []Ingredient  `yaml:"ingredients"`
	Dishes        []Dish        `yaml:"dishes"`
	Guests        []Guest       `yaml:"guests"`
	Reservations  []Reservation `yaml:"reservations"`
	Disruptions   []Disruption  `yaml:"disruptions"`
	WasteLogs     []WasteLog    `yaml:"waste_logs"`
}

// Summary counts the rows created by Apply.
type Summary struct {
	Seasons       int `json:"seasons"`
	Nationalities int `json:"nationalities"`
	Suppliers     int `json:"suppliers"`
	Ingredients   int `json:"ingredients"`
	Dishes        int `json:"dishes"`
	Guests        int `json:"guests"`
	Reservations  int `json:"reservations"`
	Disruptions   int `json:"disruptions"`
	WasteLogs     int `json:"waste_logs"`
}

func (s Summary) Total() int {
	return s.Seasons + s.Nationalities + s.Suppliers + s.Ingredients + s.Dishes +
		s.Guests + s.Reservations + s.Disruptions + s.WasteLogs
}

// Load decodes and validates a dataset. Unknown keys are rejected.
func Load(r io.Reader) (*Dataset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DefaultYAML returns the embedded dataset as written.
func DefaultYAML() []byte {
	return bytes.Clone(defaultDataset)
}

// LoadFile reads a dataset from path.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded terroir dataset.
func Default() (*Dataset, error) {
	return Load(bytes.NewReader(defaultDataset))
}

// Validate checks field ranges and that every reference resolves inside
// the dataset.
func (d *Dataset) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	seasons := map[string]bool{}
	for _, s := range d.Seasons {
		seasons[s.Name] = true
		if len(s.Months) == 0 {
			bad("season %q: months must not be empty", s.Name)
		}
		for _, m := range s.Months {
			if m < 1 || m > 12 {
				bad("season %q: month %d out of range", s.Name, m)
			}
		}
		if s.Score < models.MinSeasonScore || s.Score > models.MaxSeasonScore {
			bad("season %q: score %g out of range", s.Name, s.Score)
		}
	}

	codes := map[string]bool{}
	for _, n := range d.Nationalities {
		codes[n.Code] = true
		for _, p := range []float64{n.BreadPreference, n.DairyPreference, n.SpiceTolerance} {
			if p < 0 || p > 2 {
				bad("nationality %q: preference %g out of range", n.Code, p)
			}
		}
	}

	suppliers := map[string]bool{}
	for _, s := range d.Suppliers {
		suppliers[s.Name] = true
		if s.DistanceKm != nil && *s.DistanceKm < 0 {
			bad("supplier %q: negative distance", s.Name)
		}
	}

	ingredients := map[string]bool{}
	for _, i := range d.Ingredients {
		ingredients[i.Name] = true
		if i.BaseConsumptionRate <= 0 {
			bad("ingredient %q: base_consumption_rate must be positive", i.Name)
		}
		if i.CostPerUnit < 0 {
			bad("ingredient %q: negative cost", i.Name)
		}
		if !models.ValidCategory(models.IngredientCategory(i.Category)) {
			bad("ingredient %q: unknown category %q", i.Name, i.Category)
		}
		if i.Season != "" && !seasons[i.Season] {
			bad("ingredient %q: unknown season %q", i.Name, i.Season)
		}
		if i.Supplier != "" && !suppliers[i.Supplier] {
			bad("ingredient %q: unknown supplier %q", i.Name, i.Supplier)
		}
	}

	dishes := map[string]bool{}
	for _, dish := range d.Dishes {
		dishes[dish.Name] = true
		if len(dish.Ingredients) == 0 {
			bad("dish %q: needs at least one ingredient", dish.Name)
		}
		for _, ing := range dish.Ingredients {
			if !ingredients[ing] {
				bad("dish %q: unknown ingredient %q", dish.Name, ing)
			}
		}
	}

	emails := map[string]bool{}
	for _, g := range d.Guests {
		emails[strings.ToLower(g.Email)] = true
		if !codes[g.Nationality] {
			bad("guest %q: unknown nationality %q", g.Email, g.Nationality)
		}
	}

	for _, r := range d.Reservations {
		if !emails[strings.ToLower(r.Guest)] {
			bad("reservation: unknown guest %q", r.Guest)
		}
		if r.Dish != "" && !dishes[r.Dish] {
			bad("reservation for %q: unknown dish %q", r.Guest, r.Dish)
		}
		if r.Nights < 0 || r.PartySize < 0 {
			bad("reservation for %q: nights and party_size must not be negative", r.Guest)
		}
	}

	for _, e := range d.Disruptions {
		if e.Severity < 0 || e.Severity > 1 {
			bad("disruption %q: severity %g out of range", e.Title, e.Severity)
		}
		start, err := models.ParseDate(e.OccurredAt)
		if err != nil {
			bad("disruption %q: invalid occurred_at %q", e.Title, e.OccurredAt)
			continue
		}
		if e.EndsAt != "" {
			end, err := models.ParseDate(e.EndsAt)
			if err != nil || end.Before(start) {
				bad("disruption %q: invalid ends_at %q", e.Title, e.EndsAt)
			}
		}
	}

	for _, w := range d.WasteLogs {
		if !ingredients[w.Ingredient] {
			bad("waste log: unknown ingredient %q", w.Ingredient)
		}
		if w.Dish != "" && !dishes[w.Dish] {
			bad("waste log: unknown dish %q", w.Dish)
		}
		if w.QuantityKg < 0 || w.DaysAgo < 0 {
			bad("waste log for %q: quantity and days_ago must not be negative", w.Ingredient)
		}
	}

	return errors.Join(errs...)
}

// ensure loads the row matching query into row, or creates it from fresh.
func ensure[M any](tx *gorm.DB, row *M, fresh M, created *int, query string, args ...any) error {
	res := tx.Where(query, args...).Limit(1).Find(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	*row = fresh
	if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
		return err
	}
	*created++
	return nil
}

// Reset removes every domain row. Users and audit logs are kept.
func Reset(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM dish_ingredients").Error; err != nil {
			return fmt.Errorf("clear dish ingredients: %w", err)
		}
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, m := range []any{
			&models.WasteLog{}, &models.Reservation{}, &models.DisruptionEvent{},
			&models.Dish{}, &models.Guest{}, &models.Ingredient{},
			&models.Supplier{}, &models.Season{}, &models.Nationality{},
		} {
			if err := all.Delete(m).Error; err != nil {
				return fmt.Errorf("clear %T: %w", m, err)
			}
		}
		return nil
	})
}

// Apply writes the dataset in one transaction. Rows that already exist,
// matched by their natural key, are left untouched. Relative dates count
// from today.
func Apply(ctx context.Context, db *gorm.DB, ds *Dataset, today time.Time) (Summary, error) {
	var sum Summary
	today = models.Day(today)

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seasonIDs := map[string]uint{}
		for _, s := range ds.Seasons {
			var row models.Season
			fresh := models.Season{Name: s.Name, Months: datatypes.JSONSlice[int](s.Months), Score: s.Score, Description: s.Description}
			if err := ensure(tx, &row, fresh, &sum.Seasons, "name = ?", s.Name); err != nil {
				return fmt.Errorf("season %q: %w", s.Name, err)
			}
			seasonIDs[s.Name] = row.ID
		}

		nationalityIDs := map[string]uint{}
		for _, n := range ds.Nationalities {
			var row models.Nationality
			fresh := models.Nationality{
				Code:            strings.ToUpper(n.Code),
				Name:            n.Name,
				BreadPreference: n.BreadPreference,
				DairyPreference: n.DairyPreference,
				SpiceTolerance:  n.SpiceTolerance,
				BreakfastStyle:  n.BreakfastStyle,
			}
			if err := ensure(tx, &row, fresh, &sum.Nationalities, "code = ?", fresh.Code); err != nil {
				return fmt.Errorf("nationality %q: %w", n.Code, err)
			}
			nationalityIDs[n.Code] = row.ID
		}

		supplierIDs := map[string]uint{}
		for _, s := range ds.Suppliers {
			var row models.Supplier
			fresh := models.Supplier{
				Name:           s.Name,
				Location:       s.Location,
				DistanceKm:     s.DistanceKm,
				ContactPhone:   s.ContactPhone,
				Specialization: s.Specialization,
			}
			if err := ensure(tx, &row, fresh, &sum.Suppliers, "name = ?", s.Name); err != nil {
				return fmt.Errorf("supplier %q: %w", s.Name, err)
			}
			supplierIDs[s.Name] = row.ID
		}

		ingredientIDs := map[string]uint{}
		for _, i := range ds.Ingredients {
			unit := i.Unit
			if unit == "" {
				unit = "kg"
			}
			fresh := models.Ingredient{
				Name:                i.Name,
				NameAr:              i.NameAr,
				Category:            models.IngredientCategory(i.Category),
				BaseConsumptionRate: i.BaseConsumptionRate,
				Unit:                unit,
				CostPerUnit:         i.CostPerUnit,
				IsTraditional:       i.Traditional,
				IsStaple:            i.Staple,
			}
			if id, ok := seasonIDs[i.Season]; ok {
				fresh.SeasonID = &id
			}
			if id, ok := supplierIDs[i.Supplier]; ok {
				fresh.SupplierID = &id
			}
			var row models.Ingredient
			if err := ensure(tx, &row, fresh, &sum.Ingredients, "name = ?", i.Name); err != nil {
				return fmt.Errorf("ingredient %q: %w", i.Name, err)
			}
			ingredientIDs[i.Name] = row.ID
		}

		dishIDs := map[string]uint{}
		for _, d := range ds.Dishes {
			before := sum.Dishes
			var row models.Dish
			fresh := models.Dish{
				Name:          d.Name,
				NameAr:        d.NameAr,
				Description:   d.Description,
				IsTraditional: d.Traditional,
				CuisineType:   d.CuisineType,
				MealType:      d.MealType,
			}
			if err := ensure(tx, &row, fresh, &sum.Dishes, "name = ?", d.Name); err != nil {
				return fmt.Errorf("dish %q: %w", d.Name, err)
			}
			dishIDs[d.Name] = row.ID
			if sum.Dishes == before {
				continue
			}
			ids := make([]uint, 0, len(d.Ingredients))
			for _, name := range d.Ingredients {
				ids = append(ids, ingredientIDs[name])
			}
			var ings []models.Ingredient
			if err := tx.Where("id IN ?", ids).Find(&ings).Error; err != nil {
				return fmt.Errorf("dish %q ingredients: %w", d.Name, err)
			}
			if err := tx.Model(&row).Association("Ingredients").Append(ings); err != nil {
				return fmt.Errorf("dish %q ingredients: %w", d.Name, err)
			}
		}

		guestIDs := map[string]uint{}
		for _, g := range ds.Guests {
			email := strings.ToLower(g.Email)
			var row models.Guest
			fresh := models.Guest{
				Name:                g.Name,
				Email:               email,
				NationalityID:       nationalityIDs[g.Nationality],
				DietaryRestrictions: g.DietaryRestrictions,
			}
			if err := ensure(tx, &row, fresh, &sum.Guests, "email = ?", email); err != nil {
				return fmt.Errorf("guest %q: %w", g.Email, err)
			}
			guestIDs[email] = row.ID
		}

		for _, r := range ds.Reservations {
			party := r.PartySize
			if party < 1 {
				party = 1
			}
			start := today.AddDate(0, 0, r.StartsInDays)
			fresh := models.Reservation{
				GuestID:   guestIDs[strings.ToLower(r.Guest)],
				StartDate: start,
				EndDate:   start.AddDate(0, 0, r.Nights),
				PartySize: party,
				Notes:     r.Notes,
			}
			if id, ok := dishIDs[r.Dish]; ok {
				fresh.DishID = &id
			}
			var row models.Reservation
			if err := ensure(tx, &row, fresh, &sum.Reservations,
				"guest_id = ? AND start_date = ?", fresh.GuestID, fresh.StartDate); err != nil {
				return fmt.Errorf("reservation for %q: %w", r.Guest, err)
			}
		}

		for _, e := range ds.Disruptions {
			occurred, _ := models.ParseDate(e.OccurredAt)
			fresh := models.DisruptionEvent{
				Title:       e.Title,
				EventType:   e.EventType,
				Severity:    e.Severity,
				OccurredAt:  occurred,
				Description: e.Description,
			}
			if e.EndsAt != "" {
				ends, _ := models.ParseDate(e.EndsAt)
				fresh.EndsAt = &ends
			}
			var row models.DisruptionEvent
			if err := ensure(tx, &row, fresh, &sum.Disruptions,
				"title = ? AND occurred_at = ?", e.Title, occurred); err != nil {
				return fmt.Errorf("disruption %q: %w", e.Title, err)
			}
		}

		for _, w := range ds.WasteLogs {
			fresh := models.WasteLog{
				IngredientID:     ingredientIDs[w.Ingredient],
				Date:             today.AddDate(0, 0, -w.DaysAgo),
				QuantityKg:       w.QuantityKg,
				Reason:           w.Reason,
				OccupancyOnDate:  w.Occupancy,
				WeatherCondition: w.Weather,
			}
			if id, ok := dishIDs[w.Dish]; ok {
				fresh.DishID = &id
			}
			var row models.WasteLog
			if err := ensure(tx, &row, fresh, &sum.WasteLogs,
				"ingredient_id = ? AND date = ? AND reason = ?", fresh.IngredientID, fresh.Date, fresh.Reason); err != nil {
				return fmt.Errorf("waste log for %q: %w", w.Ingredient, err)
			}
		}
		return nil
	})
	return sum, err
}
