package router

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PropFox/app/controllers"
	"github.com/ManuelReschke/PropFox/app/repository"
	apiv1 "github.com/ManuelReschke/PropFox/internal/api/v1"
	"github.com/ManuelReschke/PropFox/internal/pkg/cache"
	"github.com/ManuelReschke/PropFox/internal/pkg/env"
	"github.com/ManuelReschke/PropFox/internal/pkg/middleware"
)

type ApiRouter struct {
	api     *controllers.API
	tenants repository.TenantRepository
	// storage backs the rate limiter; nil keeps the counters in memory
	storage fiber.Storage
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	cfg := env.GetConfig()
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		Storage:    h.storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	apiServer := apiv1.NewAPIServer(h.api)
	api.Get("/v1/ping", apiServer.GetPing)
	v1 := api.Group("/v1", middleware.ActorMiddleware(h.tenants))
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(api *controllers.API, tenants repository.TenantRepository, storage fiber.Storage) *ApiRouter {
	return &ApiRouter{api: api, tenants: tenants, storage: storage}
}

// NewLimiterStorage keeps rate-limit counters in Redis so every instance
// shares them. It reuses the address of the cache client on database 1.
func NewLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
