// Package waste aggregates waste logs into totals, rankings, a week over week
// trend and recommendations.
package waste

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 365
	TopItems          = 5

	// SavingsThresholdKg is the mean log size above which savings are projected.
	SavingsThresholdKg = 2.0
	// CostPerKg is the average value of wasted food in TND.
	CostPerKg = 5.0
)

const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionFlat       = "flat"
)

type ItemTotal struct {
	IngredientID uint    `json:"ingredient_id"`
	Item         string  `json:"item"`
	TotalKg      float64 `json:"total_kg"`
}

type Trend struct {
	ThisWeekKg    float64 `json:"this_week_kg"`
	LastWeekKg    float64 `json:"last_week_kg"`
	ChangePercent float64 `json:"change_percent"`
	Direction     string  `json:"direction"`
}

type WeekTotal struct {
	Week    string  `json:"week"` // ISO week, 2025-W03
	TotalKg float64 `json:"total_kg"`
}

type Analysis struct {
	WindowDays      int                `json:"window_days"`
	From            string             `json:"from"`
	To              string             `json:"to"`
	Logs            int                `json:"logs"`
	TotalKg         float64            `json:"total_waste_kg"`
	AverageKg       float64            `json:"average_log_kg"`
	TopWasted       []ItemTotal        `json:"top_wasted_items"`
	ByReason        map[string]float64 `json:"waste_by_reason"`
	Trend           Trend              `json:"trend"`
	Weekly          []WeekTotal        `json:"weekly"`
	Recommendations []string           `json:"recommendations"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Analyzer loads waste logs and runs Analyze over them.
type Analyzer struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyzer(db *gorm.DB) *Analyzer {
	return &Analyzer{db: db, now: time.Now}
}

// Run analyzes the windowDays days ending today. windowDays ≤ 0 selects
// DefaultWindowDays.
func (a *Analyzer) Run(ctx context.Context, windowDays int) (*Analysis, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays > MaxWindowDays {
		return nil, apperr.Validation("window_days must not exceed %d", MaxWindowDays)
	}

	today := models.Day(a.now())
	from := today.AddDate(0, 0, -(windowDays - 1))
	if trendFrom := today.AddDate(0, 0, -13); trendFrom.Before(from) {
		from = trendFrom
	}

	logs, err := Logs(ctx, a.db, from, today)
	if err != nil {
		return nil, err
	}
	return Analyze(logs, today, windowDays), nil
}

// Logs returns waste logs dated within [from, to] with their ingredient.
func Logs(ctx context.Context, db *gorm.DB, from, to time.Time) ([]models.WasteLog, error) {
	var logs []models.WasteLog
	if err := db.WithContext(ctx).
		Preload("Ingredient").
		Where("date >= ? AND date < ?", models.Day(from), models.Day(to).AddDate(0, 0, 1)).
		Order("date asc, id asc").
		Find(&logs).Error; err != nil {
		return nil, apperr.Internal("load waste logs", err)
	}
	return logs, nil
}

// Analyze aggregates logs over the windowDays days ending today. The trend
// always compares the 7 days ending today with the 7 days before, so logs
// should cover at least 14 days.
func Analyze(logs []models.WasteLog, today time.Time, windowDays int) *Analysis {
	today = models.Day(today)
	from := today.AddDate(0, 0, -(windowDays - 1))

	out := &Analysis{
		WindowDays: windowDays,
		From:       from.Format(models.DateLayout),
		To:         today.Format(models.DateLayout),
		TopWasted:  []ItemTotal{},
		ByReason:   map[string]float64{},
		Weekly:     []WeekTotal{},
	}

	var window []models.WasteLog
	for _, l := range logs {
		d := models.Day(l.Date)
		if !d.Before(from) && !d.After(today) {
			window = append(window, l)
		}
	}
	out.Trend = TrendOf(logs, today)

	if len(window) == 0 {
		out.Recommendations = []string{"Start logging waste to get insights"}
		return out
	}

	byItem := map[uint]*ItemTotal{}
	weeks := map[string]float64{}
	var total float64
	for _, l := range window {
		total += l.QuantityKg

		it, ok := byItem[l.IngredientID]
		if !ok {
			name := l.Ingredient.Name
			if name == "" {
				name = fmt.Sprintf("ingredient #%d", l.IngredientID)
			}
			it = &ItemTotal{IngredientID: l.IngredientID, Item: name}
			byItem[l.IngredientID] = it
		}
		it.TotalKg += l.QuantityKg

		out.ByReason[reasonKey(l.Reason)] += l.QuantityKg

		y, w := l.Date.ISOWeek()
		weeks[fmt.Sprintf("%d-W%02d", y, w)] += l.QuantityKg
	}

	items := make([]ItemTotal, 0, len(byItem))
	for _, it := range byItem {
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TotalKg != items[j].TotalKg {
			return items[i].TotalKg > items[j].TotalKg
		}
		return items[i].Item < items[j].Item
	})
	if len(items) > TopItems {
		items = items[:TopItems]
	}
	for i := range items {
		items[i].TotalKg = round2(items[i].TotalKg)
	}
	out.TopWasted = items

	for k, v := range out.ByReason {
		out.ByReason[k] = round2(v)
	}

	keys := make([]string, 0, len(weeks))
	for k := range weeks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Weekly = append(out.Weekly, WeekTotal{Week: k, TotalKg: round2(weeks[k])})
	}

	out.Logs = len(window)
	out.TotalKg = round2(total)
	out.AverageKg = round2(total / float64(len(window)))
	out.Recommendations = Recommend(window, total/float64(len(window)))
	return out
}

func reasonKey(reason string) string {
	r := strings.TrimSpace(reason)
	if r == "" {
		return "unspecified"
	}
	return r
}

// TrendOf compares the 7 days ending today with the 7 days before.
func TrendOf(logs []models.WasteLog, today time.Time) Trend {
	today = models.Day(today)
	thisStart := today.AddDate(0, 0, -6)
	lastStart := today.AddDate(0, 0, -13)

	var t Trend
	for _, l := range logs {
		d := models.Day(l.Date)
		switch {
		case d.After(today) || d.Before(lastStart):
		case d.Before(thisStart):
			t.LastWeekKg += l.QuantityKg
		default:
			t.ThisWeekKg += l.QuantityKg
		}
	}

	switch {
	case t.ThisWeekKg > t.LastWeekKg:
		t.Direction = DirectionIncreasing
	case t.ThisWeekKg < t.LastWeekKg:
		t.Direction = DirectionDecreasing
	default:
		t.Direction = DirectionFlat
	}
	if t.LastWeekKg > 0 {
		t.ChangePercent = round2((t.ThisWeekKg - t.LastWeekKg) / t.LastWeekKg * 100)
	}
	t.ThisWeekKg = round2(t.ThisWeekKg)
	t.LastWeekKg = round2(t.LastWeekKg)
	return t
}

// Recommend maps the reasons and items found in logs to fixed advice.
func Recommend(logs []models.WasteLog, meanKg float64) []string {
	var bread, flight, portion, hot, weather bool
	for _, l := range logs {
		reason := strings.ToLower(l.Reason)
		cond := strings.ToLower(l.WeatherCondition)

		if strings.Contains(strings.ToLower(l.Ingredient.Name), "bread") {
			bread = true
		}
		if strings.Contains(reason, "flight") {
			flight = true
		}
		if strings.Contains(reason, "portion") || strings.Contains(reason, "over-prep") || strings.Contains(reason, "overprep") {
			portion = true
		}
		if strings.Contains(reason, "hot") || strings.Contains(cond, "hot") {
			hot = true
		} else if containsAny(reason, "weather", "rain", "storm") || containsAny(cond, "rain", "storm") {
			weather = true
		}
	}

	var recs []string
	if bread {
		recs = append(recs, "Consider reducing bread quantities - it's frequently wasted")
	}
	if flight {
		recs = append(recs, "Set up flight tracking alerts to adjust breakfast preparation")
	}
	if portion {
		recs = append(recs, "Review portion calculations - consistent over-preparation detected")
	}
	if hot {
		recs = append(recs, "Hot weather reduces appetite - prepare 15% less on very hot days")
	}
	if weather {
		recs = append(recs, "Check the weather forecast and scale preparation down on stormy or rainy days")
	}
	if len(recs) == 0 {
		recs = append(recs, "Continue logging waste - patterns will emerge over time")
	}

	if meanKg > SavingsThresholdKg {
		savings := meanKg * 30 * CostPerKg
		recs = append(recs, fmt.Sprintf("Reducing daily waste by 50%% could save ~%d TND/month", int(savings)))
	}
	return recs
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
