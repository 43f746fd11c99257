package usercontext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Actor is the caller tuple supplied by the upstream gateway for every request.
type Actor struct {
	TenantID   uint `json:"tenant_id"`
	ProviderID uint `json:"provider_id"`
	// UserID is 0 for system callers (billing sweep, replays).
	UserID uint `json:"user_id"`
}

// System returns an actor for background work on behalf of a provider.
func System(tenantID, providerID uint) Actor {
	return Actor{TenantID: tenantID, ProviderID: providerID}
}

// ActorID returns the user id as a nullable column value.
func (a Actor) ActorID() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}

// ParseHeaders reads the caller tuple from the gateway headers. Tenant and
// provider are mandatory; the actor id may be absent.
func ParseHeaders(c *fiber.Ctx) (Actor, error) {
	tenantID, err := parseID(c.Get(HeaderTenantID), HeaderTenantID, true)
	if err != nil {
		return Actor{}, err
	}
	providerID, err := parseID(c.Get(HeaderProviderID), HeaderProviderID, true)
	if err != nil {
		return Actor{}, err
	}
	userID, err := parseID(c.Get(HeaderActorID), HeaderActorID, false)
	if err != nil {
		return Actor{}, err
	}
	return Actor{TenantID: tenantID, ProviderID: providerID, UserID: userID}, nil
}

func parseID(raw, header string, required bool) (uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return 0, fmt.Errorf("missing %s header", header)
		}
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s header", header)
	}
	return uint(v), nil
}

// SetActor stores the resolved caller on the request
func SetActor(c *fiber.Ctx, a Actor) {
	c.Locals(KeyActor, a)
}

// GetActor retrieves the caller from the fiber context.
// Returns false if the middleware did not run.
func GetActor(c *fiber.Ctx) (Actor, bool) {
	a, ok := c.Locals(KeyActor).(Actor)
	return a, ok
}
