package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PropFox/app/controllers"
)

// APIServer serves the versioned REST surface
type APIServer struct {
	api *controllers.API
}

// NewAPIServer creates a new API server instance
func NewAPIServer(api *controllers.API) *APIServer {
	return &APIServer{api: api}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// Pong is the ping response body
type Pong struct {
	Ping string `json:"ping"`
}

// RegisterHandlers mounts every v1 route on router. Routes other than /ping
// expect the caller context set by middleware.ActorMiddleware.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	api := s.api

	router.Post("/customers", api.HandleCreateCustomer)

	contracts := router.Group("/contracts")
	contracts.Post("/", api.HandleCreateContract)
	contracts.Put("/:id", api.HandleUpdateContract)
	contracts.Post("/:id/pause", api.HandlePauseContract)
	contracts.Post("/:id/resume", api.HandleResumeContract)
	contracts.Post("/:id/cancel", api.HandleCancelContract)
	contracts.Post("/:id/properties", api.HandleLinkProperty)
	contracts.Delete("/:id/properties/:propertyId", api.HandleUnlinkProperty)
	contracts.Put("/:id/properties/:propertyId/fee", api.HandleSetPropertyFee)
	contracts.Get("/:id/monthly-fee", api.HandleMonthlyFee)

	invoices := router.Group("/cleaning-invoices")
	invoices.Post("/generate", api.HandleGenerateInvoice)
	invoices.Put("/:id/mark-paid", api.HandleMarkInvoicePaid)
	invoices.Put("/:id/charges", api.HandleAdjustCharges)

	router.Post("/jobs", api.HandleCreateJob)

	// cleaning jobs share the dispatch routes with maintenance jobs
	for _, prefix := range []string{"/maintenance-jobs", "/jobs"} {
		jobs := router.Group(prefix)
		jobs.Post("/:id/request-quote", api.HandleRequestQuote)
		jobs.Post("/:id/send-quote", api.HandleSendQuote)
		jobs.Post("/:id/approve-quote", api.HandleApproveQuote)
		jobs.Post("/:id/assign-internal", api.HandleAssignInternal)
		jobs.Post("/:id/assign-external", api.HandleAssignExternal)
		jobs.Post("/:id/unassign", api.HandleUnassign)
		jobs.Post("/:id/start", api.HandleStartJob)
		jobs.Post("/:id/complete", api.HandleCompleteJob)
		jobs.Post("/:id/cancel", api.HandleCancelJob)
		jobs.Post("/:id/invoice", api.HandleGenerateJobInvoice)
		jobs.Delete("/:id", api.HandleDeleteJob)
	}

	router.Get("/workers/:id/availability", api.HandleWorkerAvailability)

	calendar := router.Group("/calendar-entries")
	calendar.Post("/", api.HandleRecordStay)
	calendar.Get("/needs-cleaning", api.HandleNeedsCleaning)
	calendar.Post("/:id/schedule-cleaning", api.HandleScheduleCleaning)

	router.Get("/global-activity", api.HandleGlobalActivity)
}
