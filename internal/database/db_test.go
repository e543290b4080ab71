package database

import (
	"testing"

	"terroir-backend/internal/config"
	"terroir-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresDSN(t *testing.T) {
	db, err := Open(&config.Config{DatabaseDriver: "postgres", DatabaseDSN: " "})
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(&config.Config{DatabaseDriver: "oracle", DatabaseDSN: "x"})
	assert.Error(t, err)
}

func TestAutoMigrateRejectsNil(t *testing.T) {
	assert.Error(t, AutoMigrate(nil))
	assert.Error(t, AutoMigrateAuth(nil))
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	db, err := Open(&config.Config{
		DatabaseDriver: "sqlite",
		DatabaseDSN:    "file:migrate_test?mode=memory&cache=shared",
		MaxOpenConns:   1,
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AutoMigrateAuth(db))

	assert.True(t, db.Migrator().HasTable(&models.Dish{}))
	assert.True(t, db.Migrator().HasTable("dish_ingredients"))
	assert.True(t, db.Migrator().HasTable(&models.RevokedToken{}))
}

func TestOpenTestInstallsGlobal(t *testing.T) {
	db := OpenTest(t)
	assert.Same(t, db, DB)

	season := models.Season{Name: "Winter", Months: []int{12, 1, 2}, Score: 0.8}
	require.NoError(t, db.Create(&season).Error)

	var loaded models.Season
	require.NoError(t, db.First(&loaded, season.ID).Error)
	assert.Equal(t, []int{12, 1, 2}, []int(loaded.Months))
}
