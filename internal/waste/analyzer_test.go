package waste

import (
	"context"
	"testing"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/database"
	"terroir-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

func logOn(daysAgo int, name string, kg float64, reason string) models.WasteLog {
	return models.WasteLog{
		IngredientID: uint(len(name)),
		Ingredient:   models.Ingredient{ID: uint(len(name)), Name: name},
		Date:         today.AddDate(0, 0, -daysAgo),
		QuantityKg:   kg,
		Reason:       reason,
	}
}

func TestTrendIncreasing(t *testing.T) {
	logs := []models.WasteLog{
		logOn(0, "Bread", 4, ""),
		logOn(6, "Bread", 6, ""),
		logOn(7, "Bread", 5, ""),
		logOn(13, "Bread", 3, ""),
		logOn(14, "Bread", 50, ""),
	}
	tr := TrendOf(logs, today)
	assert.Equal(t, 10.0, tr.ThisWeekKg)
	assert.Equal(t, 8.0, tr.LastWeekKg)
	assert.Equal(t, DirectionIncreasing, tr.Direction)
	assert.Equal(t, 25.0, tr.ChangePercent)
}

func TestTrendDecreasingAndFlat(t *testing.T) {
	assert.Equal(t, DirectionDecreasing, TrendOf([]models.WasteLog{logOn(8, "Milk", 1, "")}, today).Direction)
	assert.Equal(t, DirectionFlat, TrendOf(nil, today).Direction)
}

func TestAnalyzeAggregates(t *testing.T) {
	logs := []models.WasteLog{
		logOn(1, "Tabouna Bread", 3, "over-preparation"),
		logOn(2, "Tabouna Bread", 2, "flight delay"),
		logOn(2, "Milk", 5, ""),
		logOn(3, "Dates", 1, "over-preparation"),
		logOn(40, "Milk", 100, "old"),
	}
	a := Analyze(logs, today, 30)

	assert.Equal(t, 4, a.Logs)
	assert.Equal(t, 11.0, a.TotalKg)
	assert.Equal(t, 2.75, a.AverageKg)
	assert.Equal(t, []ItemTotal{
		{IngredientID: 4, Item: "Milk", TotalKg: 5},
		{IngredientID: 13, Item: "Tabouna Bread", TotalKg: 5},
		{IngredientID: 5, Item: "Dates", TotalKg: 1},
	}, a.TopWasted)
	assert.Equal(t, map[string]float64{
		"over-preparation": 4,
		"flight delay":     2,
		"unspecified":      5,
	}, a.ByReason)
	assert.Equal(t, []string{
		"Consider reducing bread quantities - it's frequently wasted",
		"Set up flight tracking alerts to adjust breakfast preparation",
		"Review portion calculations - consistent over-preparation detected",
		"Reducing daily waste by 50% could save ~412 TND/month",
	}, a.Recommendations)
	assert.Equal(t, "2025-02-19", a.From)
	assert.Equal(t, "2025-03-20", a.To)
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil, today, 7)
	assert.Zero(t, a.TotalKg)
	assert.Empty(t, a.TopWasted)
	assert.Equal(t, []string{"Start logging waste to get insights"}, a.Recommendations)
}

func TestRecommendWeather(t *testing.T) {
	hot := logOn(0, "Salad", 1, "")
	hot.WeatherCondition = "Very hot"
	assert.Equal(t, []string{"Hot weather reduces appetite - prepare 15% less on very hot days"}, Recommend([]models.WasteLog{hot}, 1))

	assert.Equal(t, []string{"Continue logging waste - patterns will emerge over time"}, Recommend([]models.WasteLog{logOn(0, "Salad", 1, "spoiled")}, 1))
}

func TestAnalyzerRun(t *testing.T) {
	db := database.OpenTest(t)
	bread := models.Ingredient{Name: "Tabouna Bread", BaseConsumptionRate: 0.2}
	require.NoError(t, db.Create(&bread).Error)
	for _, l := range []struct {
		daysAgo int
		kg      float64
	}{{0, 4}, {3, 6}, {9, 8}, {20, 1}} {
		require.NoError(t, db.Create(&models.WasteLog{
			IngredientID: bread.ID,
			Date:         today.AddDate(0, 0, -l.daysAgo),
			QuantityKg:   l.kg,
		}).Error)
	}

	a := NewAnalyzer(db)
	a.now = func() time.Time { return today.Add(10 * time.Hour) }

	res, err := a.Run(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 10.0, res.TotalKg)
	assert.Equal(t, DirectionIncreasing, res.Trend.Direction)
	assert.Equal(t, 8.0, res.Trend.LastWeekKg)
	require.Len(t, res.TopWasted, 1)
	assert.Equal(t, "Tabouna Bread", res.TopWasted[0].Item)

	res, err = a.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultWindowDays, res.WindowDays)
	assert.Equal(t, 19.0, res.TotalKg)

	_, err = a.Run(context.Background(), 400)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
