package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "wanderlust/internal/log"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	list, err := h.Catalog.ListProducts(c.UserContext())
	if err != nil {
		return failErr(c, "products.list.fail", err)
	}
	return ok(c, fiber.StatusOK, "products", fiber.Map{"products": list})
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, valid := validate.ID(c.Params("id"))
	if !valid {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return fail(c, fiber.StatusNotFound, "This item is no longer available")
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if errors.Is(err, services.ErrProductNotFound) {
		return fail(c, fiber.StatusNotFound, "This item is no longer available")
	}
	if err != nil {
		return failErr(c, "products.get.fail", err)
	}
	return ok(c, fiber.StatusOK, "product", fiber.Map{"product": p})
}
