package records

import (
	"net/mail"
	"strings"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type GuestRequest struct {
	Name                *string `json:"name"`
	Email               *string `json:"email"`
	NationalityID       *uint   `json:"nationality_id"`
	DietaryRestrictions *string `json:"dietary_restrictions"`
}

var guests = &resource[models.Guest, GuestRequest]{
	kind:  "guest",
	order: "name asc",
	deps: []dependent{
		{table: "reservations", column: "guest_id", label: "reservations"},
	},
	apply: func(g *models.Guest, in *GuestRequest, full bool) error {
		if err := setString(&g.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		if err := setString(&g.Email, in.Email, "email", full, true); err != nil {
			return err
		}
		g.Email = strings.ToLower(g.Email)
		if in.NationalityID != nil {
			g.NationalityID = *in.NationalityID
		} else if full {
			return missing("nationality_id")
		}
		return setString(&g.DietaryRestrictions, in.DietaryRestrictions, "dietary_restrictions", full, false)
	},
	check: func(tx *gorm.DB, g *models.Guest, _ *GuestRequest) error {
		if g.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if addr, err := mail.ParseAddress(g.Email); err != nil || addr.Address != g.Email {
			return apperr.Validation("email %q is not a valid address", g.Email)
		}
		if err := exists(tx, &models.Nationality{}, "nationality", g.NationalityID); err != nil {
			return err
		}
		return unique(tx, &models.Guest{}, "email", g.Email, g.ID)
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		return filterUint(c, q, "nationality_id", "nationality_id")
	},
	id:    func(g *models.Guest) uint { return g.ID },
	label: func(g *models.Guest) string { return g.Email },
	out:   func(g *models.Guest) any { return *g },
}

func guestRoutes(r fiber.Router) {
	guests.mount(r, "/guests")
}
