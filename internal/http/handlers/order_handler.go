package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
	"wanderlust/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// History lists the logged-in user's orders, newest first. Mounted behind RequireUser.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	u := currentUser(c)
	if u == nil {
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}
	orders, err := h.Orders.ListForUser(c.UserContext(), u.ID)
	if err != nil {
		return failErr(c, "orders.history.fail", err)
	}
	if orders == nil {
		orders = []domain.OrderView{}
	}
	applog.Info(c, "orders.history", map[string]any{"count": len(orders)})
	return ok(c, fiber.StatusOK, "orders", fiber.Map{"orders": orders})
}
