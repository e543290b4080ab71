package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"terroir-backend/internal/database"
	"terroir-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

func TestDefaultDatasetIsValid(t *testing.T) {
	ds, err := Default()
	require.NoError(t, err)
	assert.Len(t, ds.Seasons, 4)
	assert.Len(t, ds.Nationalities, 6)
	assert.Len(t, ds.Suppliers, 5)
	assert.Len(t, ds.Ingredients, 13)
	assert.Len(t, ds.Dishes, 3)
	assert.Equal(t, "2025-04-10", ds.Disruptions[0].OccurredAt)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := database.OpenTest(t)
	ds, err := Default()
	require.NoError(t, err)

	sum, err := Apply(context.Background(), db, ds, today)
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Seasons: 4, Nationalities: 6, Suppliers: 5, Ingredients: 13, Dishes: 3,
		Guests: 2, Reservations: 2, Disruptions: 2, WasteLogs: 2,
	}, sum)

	again, err := Apply(context.Background(), db, ds, today)
	require.NoError(t, err)
	assert.Zero(t, again.Total())

	var dish models.Dish
	require.NoError(t, db.Preload("Ingredients").Where("name = ?", "Tabouna with Olive Oil & Harissa").First(&dish).Error)
	assert.ElementsMatch(t, []string{"Tabouna Bread", "Olive Oil", "Harissa"}, dish.IngredientNames())

	var oil models.Ingredient
	require.NoError(t, db.Preload("Season").Preload("Supplier").Where("name = ?", "Olive Oil").First(&oil).Error)
	assert.True(t, oil.InSeason(10))
	assert.False(t, oil.InSeason(3))
	assert.True(t, oil.Supplier.IsLocal())

	var waste models.WasteLog
	require.NoError(t, db.Where("quantity_kg = ?", 1.5).First(&waste).Error)
	assert.Equal(t, today.AddDate(0, 0, -7), waste.Date.UTC())

	var stay models.Reservation
	require.NoError(t, db.Where("party_size = ?", 2).First(&stay).Error)
	assert.Equal(t, today.AddDate(0, 0, 3), stay.EndDate.UTC())
}

func TestResetClearsDomainRows(t *testing.T) {
	db := database.OpenTest(t)
	ds, err := Default()
	require.NoError(t, err)
	_, err = Apply(context.Background(), db, ds, today)
	require.NoError(t, err)

	require.NoError(t, Reset(context.Background(), db))
	var n int64
	db.Model(&models.Ingredient{}).Count(&n)
	assert.Zero(t, n)
	db.Table("dish_ingredients").Count(&n)
	assert.Zero(t, n)

	sum, err := Apply(context.Background(), db, ds, today)
	require.NoError(t, err)
	assert.Equal(t, 13, sum.Ingredients)
}

func TestLoadRejectsBrokenReferences(t *testing.T) {
	_, err := Load(strings.NewReader(`
seasons:
  - {name: Spring, months: [3, 13], score: 0.3}
ingredients:
  - {name: Fava, base_consumption_rate: 0, season: Summer}
dishes:
  - {name: Ful, ingredients: [Chickpeas]}
guests:
  - {name: A, email: a@example.com, nationality: XXX}
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "month 13")
	assert.Contains(t, msg, "score 0.3")
	assert.Contains(t, msg, `unknown season "Summer"`)
	assert.Contains(t, msg, "base_consumption_rate")
	assert.Contains(t, msg, `unknown ingredient "Chickpeas"`)
	assert.Contains(t, msg, `unknown nationality "XXX"`)

	_, err = Load(strings.NewReader("seasonz: []\n"))
	assert.Error(t, err)
}
