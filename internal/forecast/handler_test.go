package forecast

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"terroir-backend/internal/database"
	"terroir-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForecastHandlers(t *testing.T) {
	db := database.OpenTest(t)
	bread, _ := seedForecastData(t, db)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	Register(app.Group("/api"), NewEngine(db))

	url := fmt.Sprintf("/api/forecast?occupancy=15&ingredient_id=%d&nationality=FRA&date=2025-01-10", bread.ID)
	resp, err := app.Test(httptest.NewRequest("GET", url, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		QuantityKg  float64 `json:"quantity_kg"`
		Breakdown   []Step  `json:"breakdown"`
		Explanation string  `json:"explanation"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2.652, body.QuantityKg)
	assert.Len(t, body.Breakdown, 6)
	assert.Contains(t, body.Explanation, "Cultural preference (FRA): x1.3")

	for _, bad := range []string{
		"/api/forecast?ingredient_id=1&nationality=FRA",
		"/api/forecast?occupancy=0&ingredient_id=1&nationality=FRA",
		"/api/forecast?occupancy=3&nationality=FRA",
		"/api/forecast/daily?occupancy=3&nationality=FRA&date=yesterday",
	} {
		resp, err := app.Test(httptest.NewRequest("GET", bad, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, bad)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/forecast/daily?occupancy=3&nationality=ZZZ", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/forecast/daily?occupancy=15&nationality=fra&date=2025-01-10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var daily Daily
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&daily))
	assert.Equal(t, 2.652, daily.TotalKg)
}
