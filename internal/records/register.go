package records

import "github.com/gofiber/fiber/v2"

// Register mounts every collection under r.
func Register(r fiber.Router) {
	nationalityRoutes(r)
	guestRoutes(r)
	supplierRoutes(r)
	seasonRoutes(r)
	ingredientRoutes(r)
	dishRoutes(r)
	wasteLogRoutes(r)
	disruptionRoutes(r)
	reservationRoutes(r)
}
