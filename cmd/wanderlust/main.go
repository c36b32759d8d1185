package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"

	"wanderlust/internal/cart"
	"wanderlust/internal/config"
	"wanderlust/internal/http/handlers"
	applog "wanderlust/internal/log"
	"wanderlust/internal/notify"
	"wanderlust/internal/payment"
	"wanderlust/internal/repos"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Cart state: Redis when configured, the database otherwise.
	var carts cart.Storage = repos.NewCartRepo(db)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.Printf("[warn] redis %s unreachable: %v", cfg.Redis.Addr, err)
		}
		cancel()
		carts = cart.NewRedisStorage(rdb, cfg.Redis.CartTTL)
	}

	if cfg.Stripe.SecretKey == "" {
		log.Printf("[warn] STRIPE_SECRET_KEY is empty; checkout will fail")
	}
	gw := payment.NewBreakerGateway(payment.NewStripeGateway(cfg.Stripe.SecretKey), payment.BreakerSettings{
		Name:        "stripe",
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	})

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer kn.Close()
		notifier = kn
	}

	deps, err := handlers.NewDeps(db, cfg, gw, notifier, carts)
	if err != nil {
		log.Fatal(err)
	}

	engine := html.New(cfg.TemplatesDir, ".html")
	app := fiber.New(fiber.Config{
		Views:        engine,
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20,
	})

	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	}))

	deps.Mount(app)
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("[http] listen: %v", err)
			stop()
		}
	}()
	<-ctx.Done()
	log.Printf("[http] shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("[http] shutdown: %v", err)
	}
}
