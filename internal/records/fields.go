package records

import (
	"strings"
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/httpx"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func missing(field string) error {
	return apperr.Validation("%s is required", field)
}

// setString trims v into dst. Absent values fail when required and reset to
// "" on a full update.
func setString(dst *string, v *string, field string, full, required bool) error {
	switch {
	case v != nil:
		*dst = strings.TrimSpace(*v)
	case full && required:
		return missing(field)
	case full:
		*dst = ""
	}
	return nil
}

func setFloat(dst *float64, v *float64, field string, full bool, def *float64) error {
	switch {
	case v != nil:
		*dst = *v
	case full && def == nil:
		return missing(field)
	case full:
		*dst = *def
	}
	return nil
}

func setBool(dst *bool, v *bool, full bool) {
	if v != nil {
		*dst = *v
	} else if full {
		*dst = false
	}
}

// setDate parses a YYYY-MM-DD body field.
func setDate(dst *time.Time, v *string, field string, full bool) error {
	if v == nil {
		if full {
			return missing(field)
		}
		return nil
	}
	d, err := models.ParseDate(strings.TrimSpace(*v))
	if err != nil {
		return apperr.Validation("%s must be a date in YYYY-MM-DD format", field)
	}
	*dst = d
	return nil
}

// setOptionalDate treats an absent field on a full update, or an empty
// string, as a cleared date.
func setOptionalDate(dst **time.Time, v *string, field string, full bool) error {
	if v == nil || strings.TrimSpace(*v) == "" {
		if v != nil || full {
			*dst = nil
		}
		return nil
	}
	var d time.Time
	if err := setDate(&d, v, field, full); err != nil {
		return err
	}
	*dst = &d
	return nil
}

func float64Ptr(v float64) *float64 { return &v }

func ratio(field string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return apperr.Validation("%s must be between %g and %g", field, lo, hi)
	}
	return nil
}

// exists fails validation when the referenced row is missing.
func exists(tx *gorm.DB, model any, kind string, id uint) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return apperr.Internal("look up "+kind, err)
	}
	if n == 0 {
		return apperr.Validation("%s %d does not exist", kind, id)
	}
	return nil
}

// unique fails with a conflict when another row already holds value.
func unique(tx *gorm.DB, model any, column, value string, selfID uint) error {
	var n int64
	if err := tx.Model(model).Where(column+" = ? AND id <> ?", value, selfID).Count(&n).Error; err != nil {
		return apperr.Internal("check "+column, err)
	}
	if n > 0 {
		return apperr.Conflict("%s %q is already in use", column, value)
	}
	return nil
}

// filterUint adds "column = ?" when key is present in the query string.
func filterUint(c *fiber.Ctx, q *gorm.DB, key, column string) (*gorm.DB, error) {
	if strings.TrimSpace(c.Query(key)) == "" {
		return q, nil
	}
	id, err := httpx.QueryUint(c, key)
	if err != nil {
		return nil, err
	}
	return q.Where(column+" = ?", id), nil
}

// filterDates keeps rows whose [startCol, endCol] span overlaps the
// from/to query window. Either bound may be omitted.
func filterDates(c *fiber.Ctx, q *gorm.DB, startCol, endCol string) (*gorm.DB, error) {
	from, err := httpx.QueryDate(c, "from", time.Time{})
	if err != nil {
		return nil, err
	}
	to, err := httpx.QueryDate(c, "to", time.Time{})
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperr.Validation("to must not be before from")
	}
	if !from.IsZero() {
		q = q.Where(endCol+" >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where(startCol+" <= ?", to)
	}
	return q, nil
}
