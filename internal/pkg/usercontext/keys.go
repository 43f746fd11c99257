package usercontext

// Gateway headers and Locals keys shared by the middleware and controllers
const (
	HeaderTenantID   = "X-Tenant-ID"
	HeaderProviderID = "X-Provider-ID"
	HeaderActorID    = "X-Actor-ID"

	KeyActor = "ACTOR_CONTEXT"
)
