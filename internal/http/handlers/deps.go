package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/jmoiron/sqlx"

	"wanderlust/internal/cart"
	"wanderlust/internal/config"
	applog "wanderlust/internal/log"
	"wanderlust/internal/notify"
	"wanderlust/internal/payment"
	"wanderlust/internal/repos"
	"wanderlust/internal/services"
)

type Deps struct {
	AuthSvc *services.AuthService

	AuthHandler     *AuthHandler
	CartHandler     *CartHandler
	CheckoutHandler *CheckoutHandler
	OrderHandler    *OrderHandler
	ProductHandler  *ProductHandler
}

// NewDeps wires the services over db. carts is where cart state lives
// (sqlite, Redis or memory).
func NewDeps(db *sqlx.DB, cfg config.Config, gw payment.Gateway, n notify.Notifier, carts cart.Storage) (*Deps, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	orderRepo := repos.NewOrderRepo(db)
	prodRepo := repos.NewProductRepo(db)
	authSvc := &services.AuthService{Users: repos.NewUserRepo(db)}

	cartSvc := services.NewCartService(carts)
	checkoutSvc := services.NewCheckoutService(orderRepo, gw, rules, cfg.BaseURL)
	orderSvc := services.NewOrderService(orderRepo, prodRepo, gw, n)
	if cfg.NotifyTimeout > 0 {
		orderSvc.NotifyTimeout = cfg.NotifyTimeout
	}

	return &Deps{
		AuthSvc:         authSvc,
		AuthHandler:     &AuthHandler{Auth: authSvc},
		CartHandler:     &CartHandler{Cart: cartSvc},
		CheckoutHandler: &CheckoutHandler{Checkout: checkoutSvc, Orders: orderSvc, Cart: cartSvc},
		OrderHandler:    &OrderHandler{Orders: orderSvc},
		ProductHandler:  &ProductHandler{Catalog: services.NewCatalogService(prodRepo)},
	}, nil
}

// Mount registers the storefront routes on app.
func (d *Deps) Mount(app *fiber.App) {
	app.Use(AttachUser(d.AuthSvc))

	app.Get("/products", d.ProductHandler.List)
	app.Get("/products/:id", d.ProductHandler.Detail)

	app.Get("/cart", d.CartHandler.View)
	app.Post("/cart/items", d.CartHandler.Add)
	app.Patch("/cart/items/:id", d.CartHandler.Update)
	app.Delete("/cart/items/:id", d.CartHandler.Remove)
	app.Delete("/cart", d.CartHandler.Clear)

	checkout := app.Group("/checkout")
	checkout.Post("/create-session", d.CheckoutHandler.CreateSession)
	checkout.Get("/verify-session", d.CheckoutHandler.VerifySession)
	checkout.Get("/success", d.CheckoutHandler.Success)
	checkout.Get("/cancel", d.CheckoutHandler.Cancel)

	app.Get("/orders", RequireUser(d.AuthSvc), d.OrderHandler.History)

	app.Post("/auth/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return fail(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	}), d.AuthHandler.Login)
	app.Post("/auth/logout", d.AuthHandler.Logout)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return ok(c, fiber.StatusOK, "ok", fiber.Map{"ok": true})
	})
}
