package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"sla-engine/internal/config"
	"sla-engine/internal/logging"
)

func NewRouter(h *Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		projects := api.Group("/projects/:project_id")

		// SLA
		projects.POST("/sla/policies", h.UpsertPolicy)
		projects.GET("/sla/policies", h.ListPolicies)
		projects.POST("/sla/evaluate", h.Evaluate)
		projects.GET("/sla/breaches", h.ListBreaches)
		projects.POST("/sla/reset", h.ResetSLA)

		// Notifications
		projects.GET("/notifications/scheme", h.GetScheme)
		projects.POST("/notifications/events", h.EnqueueEvent)
		projects.POST("/notifications/process", h.ProcessQueue)
		projects.PUT("/notifications/triggers/:trigger_id/channels", h.UpdateTriggerChannel)
		projects.PUT("/notifications/digests/:digest_id/channels", h.UpdateDigestChannels)
		projects.GET("/notifications/deliveries", h.ListDeliveries)
		projects.GET("/notifications/digest-summary", h.GetDigestSummary)
		projects.POST("/notifications/due-soon", h.RegisterDueSoon)
		projects.POST("/notifications/reset", h.ResetNotifications)

		// Automation runs
		projects.POST("/automation-runs", h.RegisterAutomationRun)
		projects.GET("/automation-runs", h.ListAutomationRuns)
	}

	r.GET("/ws/projects/:project_id/deliveries", h.ServeDeliveryFeed)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
