package records

import (
	"regexp"
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var nationalityCode = regexp.MustCompile(`^[A-Z]{2,3}$`)

// Preference multipliers lie in [0,2].
const maxPreference = 2.0

type NationalityRequest struct {
	Code            *string  `json:"code"`
	Name            *string  `json:"name"`
	BreadPreference *float64 `json:"bread_preference"`
	DairyPreference *float64 `json:"dairy_preference"`
	SpiceTolerance  *float64 `json:"spice_tolerance"`
	BreakfastStyle  *string  `json:"breakfast_style"`
}

var nationalities = &resource[models.Nationality, NationalityRequest]{
	kind:  "nationality",
	order: "code asc",
	deps: []dependent{
		{table: "guests", column: "nationality_id", label: "guests"},
	},
	apply: func(n *models.Nationality, in *NationalityRequest, full bool) error {
		if err := setString(&n.Code, in.Code, "code", full, true); err != nil {
			return err
		}
		n.Code = strings.ToUpper(n.Code)
		if err := setString(&n.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		neutral := float64Ptr(1.0)
		if err := setFloat(&n.BreadPreference, in.BreadPreference, "bread_preference", full, neutral); err != nil {
			return err
		}
		if err := setFloat(&n.DairyPreference, in.DairyPreference, "dairy_preference", full, neutral); err != nil {
			return err
		}
		if err := setFloat(&n.SpiceTolerance, in.SpiceTolerance, "spice_tolerance", full, neutral); err != nil {
			return err
		}
		return setString(&n.BreakfastStyle, in.BreakfastStyle, "breakfast_style", full, false)
	},
	check: func(tx *gorm.DB, n *models.Nationality, _ *NationalityRequest) error {
		if !nationalityCode.MatchString(n.Code) {
			return apperr.Validation("code must be 2 or 3 letters")
		}
		if n.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if err := ratio("bread_preference", n.BreadPreference, 0, maxPreference); err != nil {
			return err
		}
		if err := ratio("dairy_preference", n.DairyPreference, 0, maxPreference); err != nil {
			return err
		}
		if err := ratio("spice_tolerance", n.SpiceTolerance, 0, maxPreference); err != nil {
			return err
		}
		return unique(tx, &models.Nationality{}, "code", n.Code, n.ID)
	},
	id:    func(n *models.Nationality) uint { return n.ID },
	label: func(n *models.Nationality) string { return n.Code },
	out:   func(n *models.Nationality) any { return *n },
}

func nationalityRoutes(r fiber.Router) {
	nationalities.mount(r, "/nationalities")
}
