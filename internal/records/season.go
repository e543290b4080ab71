package records

import (
	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SeasonRequest struct {
	Name        *string  `json:"name"`
	Months      *[]int   `json:"months"`
	Score       *float64 `json:"score"`
	Description *string  `json:"description"`
}

var seasons = &resource[models.Season, SeasonRequest]{
	kind:  "season",
	order: "id asc",
	deps: []dependent{
		{table: "ingredients", column: "season_id", label: "ingredients"},
	},
	apply: func(s *models.Season, in *SeasonRequest, full bool) error {
		if err := setString(&s.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		if in.Months != nil {
			// duplicates collapse, order is kept
			seen := make(map[int]bool, len(*in.Months))
			months := make(datatypes.JSONSlice[int], 0, len(*in.Months))
			for _, m := range *in.Months {
				if !seen[m] {
					seen[m] = true
					months = append(months, m)
				}
			}
			s.Months = months
		} else if full {
			return missing("months")
		}
		if err := setFloat(&s.Score, in.Score, "score", full, float64Ptr(models.MaxSeasonScore)); err != nil {
			return err
		}
		return setString(&s.Description, in.Description, "description", full, false)
	},
	check: func(_ *gorm.DB, s *models.Season, _ *SeasonRequest) error {
		if s.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if len(s.Months) == 0 {
			return apperr.Validation("months must not be empty")
		}
		for _, m := range s.Months {
			if m < 1 || m > 12 {
				return apperr.Validation("month %d must be between 1 and 12", m)
			}
		}
		return ratio("score", s.Score, models.MinSeasonScore, models.MaxSeasonScore)
	},
	id:    func(s *models.Season) uint { return s.ID },
	label: func(s *models.Season) string { return s.Name },
	out:   func(s *models.Season) any { return *s },
}

func seasonRoutes(r fiber.Router) {
	seasons.mount(r, "/seasons")
}
