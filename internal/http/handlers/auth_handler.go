package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "wanderlust/internal/log"
	"wanderlust/internal/services"
	"wanderlust/internal/validate"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "malformed request body")
	}
	email, okEmail := validate.Email(req.Email)
	if !okEmail || !validate.Password(req.Password) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_format"})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}

	sid := ensureSID(c)
	u, err := h.Auth.Login(c.UserContext(), sid, email, req.Password)
	if errors.Is(err, services.ErrBadCreds) {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email})
		return fail(c, fiber.StatusUnauthorized, "Invalid email or password")
	}
	if err != nil {
		return failErr(c, "auth.login.error", err)
	}
	c.Locals("user", u)
	applog.Audit(c, "auth.login.success", map[string]any{"email": email})
	return ok(c, fiber.StatusOK, "logged in", fiber.Map{"user": u})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sid := c.Cookies(sidCookie); sid != "" {
		if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
			applog.Error(c, "auth.logout.fail", err, nil)
		}
		applog.Audit(c, "auth.logout", map[string]any{"sid": sid})
	}
	expireSID(c)
	return ok(c, fiber.StatusOK, "logged out", nil)
}
