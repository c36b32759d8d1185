package handlers

import (
	"github.com/gofiber/fiber/v2"

	"wanderlust/internal/cart"
	"wanderlust/internal/domain"
	applog "wanderlust/internal/log"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func cartData(st *cart.Store) fiber.Map {
	items := st.Items()
	if items == nil {
		items = []domain.CartItem{}
	}
	return fiber.Map{
		"items":     items,
		"itemCount": st.ItemCount(),
		"cartTotal": st.CartTotal().StringFixed(2),
	}
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	st := h.Cart.Open(c.UserContext(), ensureSID(c))
	return ok(c, fiber.StatusOK, "cart", cartData(st))
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	var item domain.CartItem
	if err := c.BodyParser(&item); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	// quantity on add is ignored; the reducer sets or increments it
	item.Quantity = 1
	if err := validate.Struct(item); err != nil {
		return failErr(c, "cart.add", err)
	}
	st := h.Cart.Update(c.UserContext(), ensureSID(c), func(st *cart.Store) { st.AddItem(item) })
	return ok(c, fiber.StatusOK, "item added", cartData(st))
}

func (h *CartHandler) Update(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return fail(c, fiber.StatusBadRequest, "id is invalid")
	}
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil || req.Quantity == nil {
		return fail(c, fiber.StatusBadRequest, "quantity is required")
	}
	st := h.Cart.Update(c.UserContext(), ensureSID(c), func(st *cart.Store) { st.UpdateQuantity(id, *req.Quantity) })
	return ok(c, fiber.StatusOK, "quantity updated", cartData(st))
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return fail(c, fiber.StatusBadRequest, "id is invalid")
	}
	st := h.Cart.Update(c.UserContext(), ensureSID(c), func(st *cart.Store) { st.RemoveItem(id) })
	return ok(c, fiber.StatusOK, "item removed", cartData(st))
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	st := h.Cart.Update(c.UserContext(), ensureSID(c), (*cart.Store).ClearCart)
	return ok(c, fiber.StatusOK, "cart cleared", cartData(st))
}
