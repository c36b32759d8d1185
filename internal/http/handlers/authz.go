package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "wanderlust/internal/log"
	"wanderlust/internal/services"
)

// AttachUser puts the session's user, if any, into Locals("user").
func AttachUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if sid := c.Cookies(sidCookie); sid != "" {
			u, err := auth.CurrentUser(c.UserContext(), sid)
			if err != nil {
				applog.Error(c, "auth.session.lookup", err, nil)
			} else if u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	}
}

// RequireUser rejects anonymous requests with a 401 envelope.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		sid := c.Cookies(sidCookie)
		if sid != "" {
			if u, err := auth.CurrentUser(c.UserContext(), sid); err == nil && u != nil {
				c.Locals("user", u)
				return c.Next()
			}
		}
		applog.Security(c, "access.denied.user", map[string]any{"has_sid": sid != ""})
		return fail(c, fiber.StatusUnauthorized, "authentication required")
	}
}
