package records

import (
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ReservationRequest struct {
	GuestID   *uint   `json:"guest_id"`
	DishID    *uint   `json:"dish_id"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	PartySize *int    `json:"party_size"`
	Notes     *string `json:"notes"`
}

type ReservationResponse struct {
	ID        uint      `json:"id"`
	GuestID   uint      `json:"guest_id"`
	DishID    *uint     `json:"dish_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	PartySize int       `json:"party_size"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func reservationResponse(r *models.Reservation) any {
	return ReservationResponse{
		ID:        r.ID,
		GuestID:   r.GuestID,
		DishID:    r.DishID,
		StartDate: r.StartDate.Format(models.DateLayout),
		EndDate:   r.EndDate.Format(models.DateLayout),
		PartySize: r.PartySize,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

var reservations = &resource[models.Reservation, ReservationRequest]{
	kind:  "reservation",
	order: "start_date asc, id asc",
	apply: func(r *models.Reservation, in *ReservationRequest, full bool) error {
		if in.GuestID != nil {
			r.GuestID = *in.GuestID
		} else if full {
			return missing("guest_id")
		}
		if in.DishID != nil || full {
			r.DishID = in.DishID
		}
		if err := setDate(&r.StartDate, in.StartDate, "start_date", full); err != nil {
			return err
		}
		if err := setDate(&r.EndDate, in.EndDate, "end_date", full); err != nil {
			return err
		}
		if in.PartySize != nil {
			r.PartySize = *in.PartySize
		} else if full {
			r.PartySize = 1
		}
		return setString(&r.Notes, in.Notes, "notes", full, false)
	},
	check: func(tx *gorm.DB, r *models.Reservation, _ *ReservationRequest) error {
		if r.EndDate.Before(r.StartDate) {
			return apperr.Validation("end_date must not be before start_date")
		}
		if r.PartySize < 1 {
			return apperr.Validation("party_size must be at least 1")
		}
		if err := exists(tx, &models.Guest{}, "guest", r.GuestID); err != nil {
			return err
		}
		if r.DishID != nil {
			return exists(tx, &models.Dish{}, "dish", *r.DishID)
		}
		return nil
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		q, err := filterUint(c, q, "guest_id", "guest_id")
		if err != nil {
			return nil, err
		}
		return filterDates(c, q, "start_date", "end_date")
	},
	id:    func(r *models.Reservation) uint { return r.ID },
	label: func(r *models.Reservation) string { return r.StartDate.Format(models.DateLayout) },
	out:   reservationResponse,
}

func reservationRoutes(r fiber.Router) {
	reservations.mount(r, "/reservations")
}
