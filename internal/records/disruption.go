package records

import (
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DisruptionRequest struct {
	Title       *string  `json:"title"`
	EventType   *string  `json:"event_type"`
	Severity    *float64 `json:"severity"`
	OccurredAt  *string  `json:"occurred_at"`
	EndsAt      *string  `json:"ends_at"`
	Description *string  `json:"description"`
}

type DisruptionResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	EventType   string    `json:"event_type"`
	Severity    float64   `json:"severity"`
	OccurredAt  string    `json:"occurred_at"`
	EndsAt      *string   `json:"ends_at"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func disruptionResponse(e *models.DisruptionEvent) any {
	resp := DisruptionResponse{
		ID:          e.ID,
		Title:       e.Title,
		EventType:   e.EventType,
		Severity:    e.Severity,
		OccurredAt:  e.OccurredAt.Format(models.DateLayout),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.EndsAt != nil {
		ends := e.EndsAt.Format(models.DateLayout)
		resp.EndsAt = &ends
	}
	return resp
}

var disruptions = &resource[models.DisruptionEvent, DisruptionRequest]{
	kind:  "disruption_event",
	order: "occurred_at desc, id desc",
	apply: func(e *models.DisruptionEvent, in *DisruptionRequest, full bool) error {
		if err := setString(&e.Title, in.Title, "title", full, true); err != nil {
			return err
		}
		if err := setString(&e.EventType, in.EventType, "event_type", full, true); err != nil {
			return err
		}
		if err := setFloat(&e.Severity, in.Severity, "severity", full, nil); err != nil {
			return err
		}
		if err := setDate(&e.OccurredAt, in.OccurredAt, "occurred_at", full); err != nil {
			return err
		}
		if err := setOptionalDate(&e.EndsAt, in.EndsAt, "ends_at", full); err != nil {
			return err
		}
		return setString(&e.Description, in.Description, "description", full, false)
	},
	check: func(_ *gorm.DB, e *models.DisruptionEvent, _ *DisruptionRequest) error {
		if e.Title == "" || e.EventType == "" {
			return apperr.Validation("title and event_type must not be empty")
		}
		if err := ratio("severity", e.Severity, 0, 1); err != nil {
			return err
		}
		if e.EndsAt != nil && e.EndsAt.Before(e.OccurredAt) {
			return apperr.Validation("ends_at must not be before occurred_at")
		}
		return nil
	},
	filter: func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
		if t := c.Query("event_type"); t != "" {
			q = q.Where("event_type = ?", t)
		}
		return filterDates(c, q, "occurred_at", "COALESCE(ends_at, occurred_at)")
	},
	id:    func(e *models.DisruptionEvent) uint { return e.ID },
	label: func(e *models.DisruptionEvent) string { return e.Title },
	out:   disruptionResponse,
}

func disruptionRoutes(r fiber.Router) {
	disruptions.mount(r, "/disruptions")
}
