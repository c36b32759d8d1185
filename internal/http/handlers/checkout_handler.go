package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"wanderlust/internal/cart"
	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
	"wanderlust/internal/payment"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Cart     *services.CartService
}

func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	var req services.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	sess, order, err := h.Checkout.CreateSession(c.UserContext(), req, currentUser(c))
	if err != nil {
		return failErr(c, "checkout.create.fail", err)
	}
	applog.Audit(c, "checkout.session.created", map[string]any{
		"order_id": order.ID,
		"session":  sess.ID,
		"total":    order.Total.StringFixed(2),
		"items":    len(order.CartItems),
	})
	return ok(c, fiber.StatusOK, "checkout session created", fiber.Map{"sessionId": sess.ID, "url": sess.URL})
}

func (h *CheckoutHandler) VerifySession(c *fiber.Ctx) error {
	raw := c.Query("session_id")
	if raw == "" {
		return fail(c, fiber.StatusBadRequest, "session_id is required")
	}
	id, valid := validate.SessionID(raw)
	if !valid {
		applog.Security(c, "validation.fail", map[string]any{"field": "session_id"})
		return fail(c, fiber.StatusBadRequest, "session_id is invalid")
	}
	view, err := h.Orders.Verify(c.UserContext(), id)
	if err != nil {
		return failErr(c, "checkout.verify.fail", err)
	}
	return ok(c, fiber.StatusOK, "order verified", fiber.Map{
		"order":       view,
		"cartCleared": h.clearCart(c, view),
	})
}

// clearCart empties the caller's cart the first time a completed order is
// seen from a browser holding a session cookie.
func (h *CheckoutHandler) clearCart(c *fiber.Ctx, view domain.OrderView) bool {
	sid := c.Cookies(sidCookie)
	if sid == "" || view.Status != domain.OrderCompleted {
		return false
	}
	claimed, err := h.Orders.ClaimCartClear(c.UserContext(), view.StripeSessionID)
	if err != nil {
		applog.Error(c, "checkout.cart.clear.fail", err, map[string]any{"order_id": view.ID})
		return false
	}
	if !claimed {
		return false
	}
	h.Cart.Update(c.UserContext(), sid, (*cart.Store).ClearCart)
	return true
}

// Success is the page the hosted checkout redirects to after payment.
func (h *CheckoutHandler) Success(c *fiber.Ctx) error {
	id, valid := validate.SessionID(c.Query("session_id"))
	if !valid {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Order not found"})
	}
	view, err := h.Orders.Verify(c.UserContext(), id)
	if err != nil {
		return h.pageErr(c, "checkout.success.fail", err)
	}
	return render(c, "checkout_success", fiber.Map{"Order": view, "CartCleared": h.clearCart(c, view)})
}

// Cancel closes the session the customer abandoned.
func (h *CheckoutHandler) Cancel(c *fiber.Ctx) error {
	id, valid := validate.SessionID(c.Query("session_id"))
	if !valid {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Order not found"})
	}
	view, err := h.Orders.Cancel(c.UserContext(), id)
	if err != nil {
		return h.pageErr(c, "checkout.cancel.fail", err)
	}
	if view.Status == domain.OrderCancelled {
		applog.Audit(c, "order.cancelled", map[string]any{"order_id": view.ID})
	}
	return render(c, "checkout_cancel", fiber.Map{"Order": view})
}

func (h *CheckoutHandler) pageErr(c *fiber.Ctx, action string, err error) error {
	if errors.Is(err, services.ErrOrderNotFound) {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Order not found"})
	}
	applog.Error(c, action, err, nil)
	status := fiber.StatusInternalServerError
	if errors.Is(err, payment.ErrUnavailable) {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).Render("notfound", fiber.Map{"Message": genericFailure})
}
