package records

import (
	"terroir-backend/internal/apperr"
	"terroir-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SupplierRequest struct {
	Name           *string  `json:"name"`
	Location       *string  `json:"location"`
	DistanceKm     *float64 `json:"distance_km"`
	ContactPhone   *string  `json:"contact_phone"`
	Specialization *string  `json:"specialization"`
}

var suppliers = &resource[models.Supplier, SupplierRequest]{
	kind:  "supplier",
	order: "name asc",
	deps: []dependent{
		{table: "ingredients", column: "supplier_id", label: "ingredients"},
	},
	apply: func(s *models.Supplier, in *SupplierRequest, full bool) error {
		if err := setString(&s.Name, in.Name, "name", full, true); err != nil {
			return err
		}
		if err := setString(&s.Location, in.Location, "location", full, false); err != nil {
			return err
		}
		if in.DistanceKm != nil || full {
			s.DistanceKm = in.DistanceKm
		}
		if err := setString(&s.ContactPhone, in.ContactPhone, "contact_phone", full, false); err != nil {
			return err
		}
		return setString(&s.Specialization, in.Specialization, "specialization", full, false)
	},
	check: func(_ *gorm.DB, s *models.Supplier, _ *SupplierRequest) error {
		if s.Name == "" {
			return apperr.Validation("name must not be empty")
		}
		if s.DistanceKm != nil && *s.DistanceKm < 0 {
			return apperr.Validation("distance_km must not be negative")
		}
		return nil
	},
	id:    func(s *models.Supplier) uint { return s.ID },
	label: func(s *models.Supplier) string { return s.Name },
	out:   func(s *models.Supplier) any { return *s },
}

func supplierRoutes(r fiber.Router) {
	suppliers.mount(r, "/suppliers")
}
