package audit

import (
	"time"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/database"
	"terroir-backend/internal/httpx"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserEmail   string             `json:"user_email"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Before      datatypes.JSON     `json:"before"`
	After       datatypes.JSON     `json:"after"`
}

// GET /api/audit-logs?entity_type=dish&entity_id=1&user_id=2&action=update&limit=50
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.AuditLog{})

		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		if c.Query("entity_id") != "" {
			eid, err := httpx.QueryUint(c, "entity_id")
			if err != nil {
				return err
			}
			dbq = dbq.Where("entity_id = ?", eid)
		}
		if c.Query("user_id") != "" {
			uid, err := httpx.QueryUint(c, "user_id")
			if err != nil {
				return err
			}
			dbq = dbq.Where("user_id = ?", uid)
		}
		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}

		limit, err := httpx.QueryInt(c, "limit", DefaultLimit)
		if err != nil {
			return err
		}
		if limit <= 0 || limit > MaxLimit {
			return apperr.Validation("limit must be between 1 and %d", MaxLimit)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return apperr.Internal("list audit logs", err)
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.UTC().Format(time.RFC3339),
				UserID:      log.UserID,
				UserEmail:   log.UserEmail,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				Before:      log.BeforeData,
				After:       log.AfterData,
			})
		}
		return c.JSON(resp)
	}
}
