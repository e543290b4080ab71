// Package records exposes list/get/create/put/patch/delete endpoints for the
// nine stored entities. Every mutation is validated, runs in a transaction
// and leaves an audit log entry.
package records

import (
	"errors"
	"fmt"

	"terroir-backend/internal/apperr"
	"terroir-backend/internal/audit"
	"terroir-backend/internal/auth"
	"terroir-backend/internal/database"
	"terroir-backend/internal/httpx"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dependent names a table whose rows point at the resource through column.
// A delete is refused while any such row exists.
type dependent struct {
	table  string
	column string
	label  string
}

// resource wires one model M and its request body In into CRUD handlers.
// In uses pointer fields so PATCH can tell an absent field from a zero one.
type resource[M any, In any] struct {
	kind    string // audit entity type and error noun
	order   string
	preload []string
	deps    []dependent

	// apply copies the body into m. When full is set (POST, PUT) missing
	// required fields fail and missing optional fields reset to defaults.
	apply func(m *M, in *In, full bool) error
	// check validates the merged record, including referenced rows.
	check func(tx *gorm.DB, m *M, in *In) error
	// saved runs after the row is written, inside the same transaction.
	saved func(tx *gorm.DB, m *M, in *In) error
	// deleting runs before the row is removed.
	deleting func(tx *gorm.DB, m *M) error
	filter   func(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error)

	id    func(m *M) uint
	label func(m *M) string
	out   func(m *M) any
}

func (r *resource[M, In]) query(db *gorm.DB) *gorm.DB {
	for _, p := range r.preload {
		db = db.Preload(p)
	}
	return db
}

func (r *resource[M, In]) find(db *gorm.DB, id uint) (*M, error) {
	var m M
	if err := r.query(db).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(r.kind, id)
		}
		return nil, apperr.Internal("load "+r.kind, err)
	}
	return &m, nil
}

func (r *resource[M, In]) writeAudit(c *fiber.Ctx, tx *gorm.DB, m *M, action models.AuditAction, before, after any) error {
	userID, email := auth.Actor(c)
	return audit.WriteLogTx(tx, audit.LogOptions{
		UserID:      userID,
		UserEmail:   email,
		EntityType:  r.kind,
		EntityID:    r.id(m),
		Action:      action,
		Description: fmt.Sprintf("%s %s: %s", r.kind, action, r.label(m)),
		Before:      before,
		After:       after,
	})
}

// GET /api/<collection>?limit=&offset=
func (r *resource[M, In]) list() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := httpx.QueryInt(c, "limit", 0)
		if err != nil {
			return err
		}
		offset, err := httpx.QueryInt(c, "offset", 0)
		if err != nil {
			return err
		}
		if limit < 0 || offset < 0 {
			return apperr.Validation("limit and offset must not be negative")
		}

		q := r.query(database.DB.WithContext(c.UserContext())).Order(r.order)
		if r.filter != nil {
			if q, err = r.filter(c, q); err != nil {
				return err
			}
		}
		if limit > 0 {
			q = q.Limit(limit)
		}
		if offset > 0 {
			q = q.Offset(offset)
		}

		var rows []M
		if err := q.Find(&rows).Error; err != nil {
			return apperr.Internal("list "+r.kind, err)
		}
		resp := make([]any, 0, len(rows))
		for i := range rows {
			resp = append(resp, r.out(&rows[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/<collection>/:id
func (r *resource[M, In]) get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}
		m, err := r.find(database.DB.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(r.out(m))
	}
}

// POST /api/<collection>
func (r *resource[M, In]) create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body In
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		var m M
		if err := r.apply(&m, &body, true); err != nil {
			return err
		}

		db := database.DB.WithContext(c.UserContext())
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := r.check(tx, &m, &body); err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
				return apperr.Internal("create "+r.kind, err)
			}
			if r.saved != nil {
				if err := r.saved(tx, &m, &body); err != nil {
					return err
				}
			}
			return r.writeAudit(c, tx, &m, models.AuditActionCreate, nil, r.out(&m))
		})
		if err != nil {
			return err
		}

		created, err := r.find(db, r.id(&m))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(r.out(created))
	}
}

// PUT and PATCH /api/<collection>/:id
func (r *resource[M, In]) update(full bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}
		var body In
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		db := database.DB.WithContext(c.UserContext())
		err = db.Transaction(func(tx *gorm.DB) error {
			m, err := r.find(tx, id)
			if err != nil {
				return err
			}
			before := r.out(m)

			if err := r.apply(m, &body, full); err != nil {
				return err
			}
			if err := r.check(tx, m, &body); err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
				return apperr.Internal("update "+r.kind, err)
			}
			if r.saved != nil {
				if err := r.saved(tx, m, &body); err != nil {
					return err
				}
			}
			return r.writeAudit(c, tx, m, models.AuditActionUpdate, before, r.out(m))
		})
		if err != nil {
			return err
		}

		updated, err := r.find(db, id)
		if err != nil {
			return err
		}
		return c.JSON(r.out(updated))
	}
}

// DELETE /api/<collection>/:id
func (r *resource[M, In]) remove() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c)
		if err != nil {
			return err
		}

		err = database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			m, err := r.find(tx, id)
			if err != nil {
				return err
			}

			for _, d := range r.deps {
				var n int64
				if err := tx.Table(d.table).Where(d.column+" = ?", id).Count(&n).Error; err != nil {
					return apperr.Internal("count "+d.label, err)
				}
				if n > 0 {
					return apperr.Conflict("%s %d is still referenced by %d %s", r.kind, id, n, d.label)
				}
			}

			before := r.out(m)
			if r.deleting != nil {
				if err := r.deleting(tx, m); err != nil {
					return err
				}
			}
			if err := tx.Delete(m).Error; err != nil {
				return apperr.Internal("delete "+r.kind, err)
			}
			return r.writeAudit(c, tx, m, models.AuditActionDelete, before, nil)
		})
		if err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (r *resource[M, In]) mount(router fiber.Router, path string) fiber.Router {
	g := router.Group(path)
	g.Get("/", r.list())
	g.Get("/:id", r.get())
	g.Post("/", r.create())
	g.Put("/:id", r.update(true))
	g.Patch("/:id", r.update(false))
	g.Delete("/:id", r.remove())
	return g
}
