package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/internal/pkg/jobqueue"
)

// QueueMonitor reports the background queue depth
type QueueMonitor interface {
	Depth(ctx context.Context) (jobqueue.Depth, error)
}

type HealthRouter struct {
	queue QueueMonitor
}

// InstallRouter serves the health check outside the rate-limited /api group.
// An unreachable queue degrades the report but still answers 200.
func (h HealthRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		body := fiber.Map{"status": "ok"}
		if h.queue != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			depth, err := h.queue.Depth(ctx)
			if err != nil {
				log.Warnf("[Health] Queue depth unavailable: %v", err)
				body["status"] = "degraded"
				body["queue"] = fiber.Map{"error": "unavailable"}
			} else {
				body["queue"] = depth
			}
		}
		return c.Status(fiber.StatusOK).JSON(body)
	})
}

func NewHealthRouter(queue QueueMonitor) *HealthRouter {
	return &HealthRouter{queue: queue}
}
