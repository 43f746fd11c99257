package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PropFox/app/repository"
	"github.com/ManuelReschke/PropFox/internal/pkg/usercontext"
)

// ActorMiddleware resolves the caller tuple from the gateway headers and
// rejects providers that do not belong to the caller's tenant.
func ActorMiddleware(tenants repository.TenantRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := usercontext.ParseHeaders(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": err.Error()})
		}

		ok, err := tenants.ProviderBelongsToTenant(c.UserContext(), actor.ProviderID, actor.TenantID)
		if err != nil {
			log.Errorf("[Middleware] tenant lookup failed for provider %d: %v", actor.ProviderID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Tenant verification failed"})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "provider does not belong to tenant"})
		}

		usercontext.SetActor(c, actor)
		return c.Next()
	}
}
