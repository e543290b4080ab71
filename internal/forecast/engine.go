// Package forecast computes ingredient demand as
//
//	occupancy × base_rate × seasonality × culture × disruption × waste_feedback
//
// evaluated strictly left to right. Every intermediate product is kept so a
// result can be explained step by step.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const (
	// NonSeasonalFactor applies to ingredients without a season.
	NonSeasonalFactor = 0.8
	// OffSeasonFactor applies when the target month is outside the season.
	OffSeasonFactor = 0.5

	// WasteLookback is the number of most recent waste logs averaged.
	WasteLookback = 5
	// WasteThresholdRatio of the base rate above which the penalty applies.
	WasteThresholdRatio = 0.2
	// WastePenalty is the waste feedback factor for frequently wasted items.
	WastePenalty = 0.85
)

var forecastsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "terroir_forecasts_total",
		Help: "Ingredient demand forecasts computed, by outcome",
	},
	[]string{"outcome"},
)

// Factors are the four dimensionless multipliers after the base rate.
type Factors struct {
	Seasonality   float64 `json:"seasonality"`
	Culture       float64 `json:"culture"`
	Disruption    float64 `json:"disruption"`
	WasteFeedback float64 `json:"waste_feedback"`
}

// Step is one multiplication: Running = previous Running × Value.
type Step struct {
	Factor  string  `json:"factor"`
	Value   float64 `json:"value"`
	Running float64 `json:"running"`
}

// Result is a single ingredient forecast.
type Result struct {
	IngredientID    uint    `json:"ingredient_id"`
	IngredientName  string  `json:"ingredient_name"`
	Unit            string  `json:"unit"`
	NationalityCode string  `json:"nationality"`
	Date            string  `json:"date"`
	Occupancy       int     `json:"occupancy"`
	BaseRate        float64 `json:"base_rate"`
	Factors         Factors `json:"factors"`
	Steps           []Step  `json:"breakdown"`
	RawQuantity     float64 `json:"raw_quantity"`
	QuantityKg      float64 `json:"quantity_kg"`
}

// Round3 rounds half away from zero to three decimals (gram precision).
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}

// Round2 rounds half away from zero to two decimals, used for money.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Compute multiplies the factors in their fixed order and records each step.
func Compute(occupancy int, baseRate float64, f Factors) (float64, []Step) {
	running := float64(occupancy)
	steps := make([]Step, 0, 6)
	steps = append(steps, Step{Factor: "occupancy", Value: running, Running: running})

	for _, s := range []struct {
		name  string
		value float64
	}{
		{"base_rate", baseRate},
		{"seasonality", f.Seasonality},
		{"culture", f.Culture},
		{"disruption", f.Disruption},
		{"waste_feedback", f.WasteFeedback},
	} {
		running *= s.value
		steps = append(steps, Step{Factor: s.name, Value: s.value, Running: running})
	}
	return running, steps
}

// SeasonalityFactor expects ing.Season to be loaded when SeasonID is set.
func SeasonalityFactor(ing *models.Ingredient, month int) float64 {
	if !ing.IsSeasonal() || ing.Season == nil {
		return NonSeasonalFactor
	}
	if ing.Season.Contains(month) {
		return ing.Season.Score
	}
	return OffSeasonFactor
}

func CultureFactor(ing *models.Ingredient, nat *models.Nationality) float64 {
	return nat.PreferenceFor(ing.EffectiveCategory())
}

// DisruptionFactor is 1 − the highest severity among events active on day.
func DisruptionFactor(events []models.DisruptionEvent, day time.Time) float64 {
	var severity float64
	for i := range events {
		if events[i].ActiveOn(day) && events[i].Severity > severity {
			severity = events[i].Severity
		}
	}
	return 1.0 - severity
}

// WasteFeedback penalizes an ingredient whose recent mean waste exceeds
// WasteThresholdRatio of its base rate. recent holds the latest logs.
func WasteFeedback(ing *models.Ingredient, recent []models.WasteLog) float64 {
	if len(recent) == 0 {
		return 1.0
	}
	var sum float64
	for _, w := range recent {
		sum += w.QuantityKg
	}
	if sum/float64(len(recent)) > ing.BaseConsumptionRate*WasteThresholdRatio {
		return WastePenalty
	}
	return 1.0
}

// Engine loads factor inputs from the record store.
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Request identifies one forecast.
type Request struct {
	Occupancy       int
	IngredientID    uint
	NationalityCode string
	Date            time.Time
}

func (r Request) validate() error {
	if r.Occupancy <= 0 {
		return apperr.Validation("occupancy must be a positive integer")
	}
	if r.IngredientID == 0 {
		return apperr.Validation("ingredient_id is required")
	}
	if strings.TrimSpace(r.NationalityCode) == "" {
		return apperr.Validation("nationality is required")
	}
	return nil
}

// Forecast computes the demand of one ingredient.
func (e *Engine) Forecast(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		forecastsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	ing, err := e.Ingredient(ctx, req.IngredientID)
	if err != nil {
		forecastsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	nat, err := e.Nationality(ctx, req.NationalityCode)
	if err != nil {
		forecastsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	res, err := e.ForecastWith(ctx, ing, nat, req.Occupancy, req.Date)
	if err != nil {
		forecastsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	forecastsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// ForecastWith computes a forecast for already loaded records.
func (e *Engine) ForecastWith(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, occupancy int, date time.Time) (*Result, error) {
	return e.Batch().ForecastWith(ctx, ing, nat, occupancy, date)
}

func (b *Batch) ForecastWith(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, occupancy int, date time.Time) (*Result, error) {
	day := models.Day(date)
	f, err := b.FactorsFor(ctx, ing, nat, day)
	if err != nil {
		return nil, err
	}
	raw, steps := Compute(occupancy, ing.BaseConsumptionRate, f)
	return &Result{
		IngredientID:    ing.ID,
		IngredientName:  ing.Name,
		Unit:            ing.Unit,
		NationalityCode: nat.Code,
		Date:            day.Format(models.DateLayout),
		Occupancy:       occupancy,
		BaseRate:        ing.BaseConsumptionRate,
		Factors:         f,
		Steps:           steps,
		RawQuantity:     raw,
		QuantityKg:      Round3(raw),
	}, nil
}

// Demand returns the unrounded demand in kg.
func (e *Engine) Demand(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, occupancy int, date time.Time) (float64, error) {
	return e.Batch().Demand(ctx, ing, nat, occupancy, date)
}

// FactorsFor loads events and waste history and evaluates the four factors.
func (e *Engine) FactorsFor(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, day time.Time) (Factors, error) {
	return e.Batch().FactorsFor(ctx, ing, nat, day)
}

// Batch evaluates many forecasts against one snapshot of the factor
// inputs: active events are loaded once per day and waste history once per
// ingredient. A Batch is not safe for concurrent use.
type Batch struct {
	e      *Engine
	events map[string][]models.DisruptionEvent
	waste  map[uint][]models.WasteLog
}

func (e *Engine) Batch() *Batch {
	return &Batch{
		e:      e,
		events: map[string][]models.DisruptionEvent{},
		waste:  map[uint][]models.WasteLog{},
	}
}

// ActiveEvents is Engine.ActiveEvents, memoized per day.
func (b *Batch) ActiveEvents(ctx context.Context, day time.Time) ([]models.DisruptionEvent, error) {
	key := models.Day(day).Format(models.DateLayout)
	if evs, ok := b.events[key]; ok {
		return evs, nil
	}
	evs, err := b.e.ActiveEvents(ctx, day)
	if err != nil {
		return nil, err
	}
	b.events[key] = evs
	return evs, nil
}

// RecentWaste is Engine.RecentWaste, memoized per ingredient.
func (b *Batch) RecentWaste(ctx context.Context, ingredientID uint) ([]models.WasteLog, error) {
	if logs, ok := b.waste[ingredientID]; ok {
		return logs, nil
	}
	logs, err := b.e.RecentWaste(ctx, ingredientID)
	if err != nil {
		return nil, err
	}
	b.waste[ingredientID] = logs
	return logs, nil
}

func (b *Batch) FactorsFor(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, day time.Time) (Factors, error) {
	day = models.Day(day)
	events, err := b.ActiveEvents(ctx, day)
	if err != nil {
		return Factors{}, err
	}
	recent, err := b.RecentWaste(ctx, ing.ID)
	if err != nil {
		return Factors{}, err
	}
	return Factors{
		Seasonality:   SeasonalityFactor(ing, int(day.Month())),
		Culture:       CultureFactor(ing, nat),
		Disruption:    DisruptionFactor(events, day),
		WasteFeedback: WasteFeedback(ing, recent),
	}, nil
}

// Demand returns the unrounded demand in kg, never negative.
func (b *Batch) Demand(ctx context.Context, ing *models.Ingredient, nat *models.Nationality, occupancy int, date time.Time) (float64, error) {
	f, err := b.FactorsFor(ctx, ing, nat, date)
	if err != nil {
		return 0, err
	}
	q, _ := Compute(occupancy, ing.BaseConsumptionRate, f)
	return math.Max(0, q), nil
}

// Ingredient loads an ingredient with its season and supplier.
func (e *Engine) Ingredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := e.db.WithContext(ctx).Preload("Season").Preload("Supplier").First(&ing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("ingredient", id)
	}
	if err != nil {
		return nil, apperr.Internal("load ingredient", err)
	}
	return &ing, nil
}

// Ingredients loads every ingredient ordered by id.
func (e *Engine) Ingredients(ctx context.Context) ([]models.Ingredient, error) {
	var ings []models.Ingredient
	if err := e.db.WithContext(ctx).Preload("Season").Preload("Supplier").Order("id asc").Find(&ings).Error; err != nil {
		return nil, apperr.Internal("load ingredients", err)
	}
	return ings, nil
}

// Nationality looks a nationality up by its code, case-insensitively.
func (e *Engine) Nationality(ctx context.Context, code string) (*models.Nationality, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var nat models.Nationality
	err := e.db.WithContext(ctx).Where("code = ?", code).First(&nat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("nationality", code)
	}
	if err != nil {
		return nil, apperr.Internal("load nationality", err)
	}
	return &nat, nil
}

// ActiveEvents returns disruption events covering day.
func (e *Engine) ActiveEvents(ctx context.Context, day time.Time) ([]models.DisruptionEvent, error) {
	day = models.Day(day)
	next := day.AddDate(0, 0, 1)

	var candidates []models.DisruptionEvent
	if err := e.db.WithContext(ctx).
		Where("occurred_at < ?", next).
		Where("ends_at IS NULL OR ends_at >= ?", day).
		Find(&candidates).Error; err != nil {
		return nil, apperr.Internal("load disruption events", err)
	}

	active := candidates[:0]
	for _, ev := range candidates {
		if ev.ActiveOn(day) {
			active = append(active, ev)
		}
	}
	return active, nil
}

// RecentWaste returns the WasteLookback most recent logs of an ingredient.
func (e *Engine) RecentWaste(ctx context.Context, ingredientID uint) ([]models.WasteLog, error) {
	var logs []models.WasteLog
	if err := e.db.WithContext(ctx).
		Where("ingredient_id = ?", ingredientID).
		Order("date desc, id desc").
		Limit(WasteLookback).
		Find(&logs).Error; err != nil {
		return nil, apperr.Internal("load waste history", err)
	}
	return logs, nil
}

// Daily is the forecast of every ingredient for one day and nationality.
type Daily struct {
	Date        string   `json:"date"`
	Occupancy   int      `json:"occupancy"`
	Nationality string   `json:"nationality"`
	Ingredients []Result `json:"ingredients"`
	TotalKg     float64  `json:"total_kg"`
}

// ForecastAll computes the forecast of every ingredient.
func (e *Engine) ForecastAll(ctx context.Context, occupancy int, nationalityCode string, date time.Time) (*Daily, error) {
	if occupancy <= 0 {
		return nil, apperr.Validation("occupancy must be a positive integer")
	}
	nat, err := e.Nationality(ctx, nationalityCode)
	if err != nil {
		return nil, err
	}
	ings, err := e.Ingredients(ctx)
	if err != nil {
		return nil, err
	}

	out := &Daily{
		Date:        models.Day(date).Format(models.DateLayout),
		Occupancy:   occupancy,
		Nationality: nat.Code,
		Ingredients: make([]Result, 0, len(ings)),
	}
	batch := e.Batch()
	var total float64
	for i := range ings {
		res, err := batch.ForecastWith(ctx, &ings[i], nat, occupancy, date)
		if err != nil {
			return nil, err
		}
		total += res.RawQuantity
		out.Ingredients = append(out.Ingredients, *res)
	}
	out.TotalKg = Round3(total)
	forecastsTotal.WithLabelValues("ok").Add(float64(len(ings)))
	return out, nil
}

// Explain renders a result as human-readable lines.
func Explain(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s: %.3f %s\n", r.IngredientName, r.QuantityKg, r.Unit)
	fmt.Fprintf(&b, "- Occupancy: %d guests\n", r.Occupancy)
	fmt.Fprintf(&b, "- Base rate: %g per person\n", r.BaseRate)
	fmt.Fprintf(&b, "- Seasonality: x%g\n", r.Factors.Seasonality)
	fmt.Fprintf(&b, "- Cultural preference (%s): x%g\n", r.NationalityCode, r.Factors.Culture)
	fmt.Fprintf(&b, "- Disruption: x%g\n", r.Factors.Disruption)
	fmt.Fprintf(&b, "- Waste feedback: x%g", r.Factors.WasteFeedback)
	return b.String()
}
