package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/audit"
	"terroir-backend/internal/auth"
	"terroir-backend/internal/database"
	"terroir-backend/internal/logging"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Spreadsheet columns, in order. Only the first three are required.
const (
	colDate = iota
	colIngredient
	colQuantity
	colReason
	colWeather
	colOccupancy
	colDish
)

// Cell date formats seen in exported sheets, tried in order.
var sheetDateLayouts = []string{
	models.DateLayout,
	"02.01.2006",
	"02/01/2006",
	"01-02-06",
	"1/2/06",
}

type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ImportResult struct {
	Imported int        `json:"imported"`
	Skipped  []RowError `json:"skipped"`
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseSheetDate(s string) (time.Time, error) {
	for _, layout := range sheetDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return models.Day(t), nil
		}
	}
	// unformatted date cells come through as serial numbers
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseSheetNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// nameIndex matches sheet values against names (case-insensitive) or ids.
type nameIndex map[string]uint

func (ix nameIndex) lookup(v string) (uint, bool) {
	if id, ok := ix[strings.ToLower(v)]; ok {
		return id, true
	}
	if n, err := strconv.ParseUint(v, 10, 64); err == nil {
		for _, id := range ix {
			if id == uint(n) {
				return id, true
			}
		}
	}
	return 0, false
}

func loadIndex(db *gorm.DB, model any) (nameIndex, error) {
	var rows []struct {
		ID   uint
		Name string
	}
	if err := db.Model(model).Select("id", "name").Find(&rows).Error; err != nil {
		return nil, err
	}
	ix := make(nameIndex, len(rows))
	for _, r := range rows {
		ix[strings.ToLower(strings.TrimSpace(r.Name))] = r.ID
	}
	return ix, nil
}

func parseWasteRow(row []string, ingredients, dishes nameIndex) (*models.WasteLog, error) {
	date, err := parseSheetDate(cell(row, colDate))
	if err != nil {
		return nil, err
	}
	ingName := cell(row, colIngredient)
	ingID, ok := ingredients.lookup(ingName)
	if !ok {
		return nil, fmt.Errorf("unknown ingredient %q", ingName)
	}
	qty, err := parseSheetNumber(cell(row, colQuantity))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q", cell(row, colQuantity))
	}
	if qty < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	w := &models.WasteLog{
		IngredientID:     ingID,
		Date:             date,
		QuantityKg:       qty,
		Reason:           cell(row, colReason),
		WeatherCondition: cell(row, colWeather),
	}
	if v := cell(row, colOccupancy); v != "" {
		occ, err := strconv.Atoi(v)
		if err != nil || occ < 0 {
			return nil, fmt.Errorf("invalid occupancy %q", v)
		}
		w.OccupancyOnDate = &occ
	}
	if v := cell(row, colDish); v != "" {
		dishID, ok := dishes.lookup(v)
		if !ok {
			return nil, fmt.Errorf("unknown dish %q", v)
		}
		w.DishID = &dishID
	}
	return w, nil
}

// POST /api/waste-logs/import
// Reads the first sheet of an .xlsx upload. Rows that fail to parse are
// reported back and skipped; the rest are stored in one transaction.
func ImportWasteLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("file upload is required")
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Validation("only .xlsx files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Internal("open upload", err)
		}
		defer file.Close()

		book, err := excelize.OpenReader(file)
		if err != nil {
			return apperr.Validation("cannot read spreadsheet: %v", err)
		}
		defer book.Close()

		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return apperr.Validation("spreadsheet has no sheets")
		}
		rows, err := book.GetRows(sheets[0])
		if err != nil {
			return apperr.Validation("cannot read sheet %q: %v", sheets[0], err)
		}
		if len(rows) == 0 {
			return apperr.Validation("spreadsheet is empty")
		}

		start := 0
		if strings.Contains(strings.ToUpper(cell(rows[0], colDate)), "DATE") {
			start = 1
		}

		db := database.DB.WithContext(ctx)
		ingredientIx, err := loadIndex(db, &models.Ingredient{})
		if err != nil {
			return apperr.Internal("load ingredients", err)
		}
		dishIx, err := loadIndex(db, &models.Dish{})
		if err != nil {
			return apperr.Internal("load dishes", err)
		}

		result := ImportResult{Skipped: make([]RowError, 0)}
		logs := make([]models.WasteLog, 0, len(rows))
		for i := start; i < len(rows); i++ {
			row := rows[i]
			if cell(row, colDate) == "" && cell(row, colIngredient) == "" {
				continue
			}
			w, err := parseWasteRow(row, ingredientIx, dishIx)
			if err != nil {
				// spreadsheet rows are 1-based
				result.Skipped = append(result.Skipped, RowError{Row: i + 1, Error: err.Error()})
				continue
			}
			logs = append(logs, *w)
		}

		if len(logs) > 0 {
			userID, email := auth.Actor(c)
			err = db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Omit(clause.Associations).Create(&logs).Error; err != nil {
					return apperr.Internal("store waste logs", err)
				}
				return audit.WriteLogTx(tx, audit.LogOptions{
					UserID:      userID,
					UserEmail:   email,
					EntityType:  wasteLogs.kind,
					Action:      models.AuditActionImport,
					Description: fmt.Sprintf("%d waste logs imported from %s", len(logs), fileHeader.Filename),
					After:       map[string]any{"file": fileHeader.Filename, "imported": len(logs), "skipped": len(result.Skipped)},
				})
			})
			if err != nil {
				return err
			}
		}
		result.Imported = len(logs)

		logging.Info(ctx, "waste logs imported",
			"file", fileHeader.Filename,
			"imported", result.Imported,
			"skipped", len(result.Skipped))
		return c.JSON(result)
	}
}
