package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"sla-engine/internal/config"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/notify"
	"sla-engine/internal/sla"
)

type Handler struct {
	sla    *sla.Service
	notify *notify.Engine
	hub    *DeliveryHub
	logger *logging.Logger
	config config.Config
}

func NewHandler(slaSvc *sla.Service, engine *notify.Engine, hub *DeliveryHub, logger *logging.Logger, cfg config.Config) *Handler {
	return &Handler{sla: slaSvc, notify: engine, hub: hub, logger: logger, config: cfg}
}

func (h *Handler) UpsertPolicy(c *gin.Context) {
	projectID := c.Param("project_id")
	var in models.SLAPolicyUpsert
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Errorf("Invalid policy body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	policy, err := h.sla.UpsertPolicy(projectID, in, time.Now())
	if err != nil {
		if errors.Is(err, sla.ErrPolicyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Policy not found"})
			return
		}
		h.logger.Errorf("Upsert policy failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upsert policy"})
		return
	}

	h.logger.Infof("Upserted policy %s for project %s", policy.ID, projectID)
	c.JSON(http.StatusOK, policy)
}

func (h *Handler) ListPolicies(c *gin.Context) {
	projectID := c.Param("project_id")
	c.JSON(http.StatusOK, h.sla.Policies(projectID))
}

type evaluateRequest struct {
	Tasks []models.TaskSnapshot `json:"tasks"`
}

func (h *Handler) Evaluate(c *gin.Context) {
	projectID := c.Param("project_id")
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid evaluate body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	snapshot := h.sla.Evaluate(projectID, req.Tasks, time.Now())
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) ListBreaches(c *gin.Context) {
	projectID := c.Param("project_id")
	limit := h.parseLimit(c, h.config.Engine.RecentBreachLimit)
	c.JSON(http.StatusOK, h.sla.Breaches(projectID, limit))
}

func (h *Handler) ResetSLA(c *gin.Context) {
	projectID := c.Param("project_id")
	h.sla.ResetProject(projectID)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) GetScheme(c *gin.Context) {
	projectID := c.Param("project_id")
	c.JSON(http.StatusOK, h.notify.Scheme(projectID, time.Now()))
}

type enqueueRequest struct {
	Trigger      models.TriggerKind     `json:"trigger" binding:"required"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Channels     []string               `json:"channels,omitempty"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
}

func (h *Handler) EnqueueEvent(c *gin.Context) {
	projectID := c.Param("project_id")
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid event body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ev := h.notify.Enqueue(projectID, req.Trigger, req.Payload, models.EnqueueOptions{
		Channels:     req.Channels,
		ScheduledFor: req.ScheduledFor,
	}, time.Now())
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) ProcessQueue(c *gin.Context) {
	projectID := c.Param("project_id")
	deliveries := h.notify.ProcessQueue(projectID, time.Now())
	c.JSON(http.StatusOK, deliveries)
}

type channelUpdateRequest struct {
	Channel string `json:"channel" binding:"required"`
	Enabled *bool  `json:"enabled" binding:"required"`
	Cadence string `json:"cadence,omitempty"`
}

func (h *Handler) UpdateTriggerChannel(c *gin.Context) {
	projectID := c.Param("project_id")
	triggerID := c.Param("trigger_id")
	var req channelUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid channel update body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.notify.UpdateTriggerChannel(projectID, triggerID, req.Channel, *req.Enabled, req.Cadence, time.Now())
	if err != nil {
		if errors.Is(err, notify.ErrTriggerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Trigger not found"})
			return
		}
		h.logger.Errorf("Update trigger channel failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update channel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type digestChannelsRequest struct {
	Channels []string `json:"channels" binding:"required"`
}

func (h *Handler) UpdateDigestChannels(c *gin.Context) {
	projectID := c.Param("project_id")
	digestID := c.Param("digest_id")
	var req digestChannelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid digest channels body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.notify.UpdateDigestChannels(projectID, digestID, req.Channels, time.Now())
	if err != nil {
		if errors.Is(err, notify.ErrDigestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Digest not found"})
			return
		}
		h.logger.Errorf("Update digest channels failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update digest"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) ListDeliveries(c *gin.Context) {
	projectID := c.Param("project_id")
	limit := h.parseLimit(c, h.config.Engine.DeliveryPageSize)
	c.JSON(http.StatusOK, h.notify.Deliveries(projectID, limit))
}

func (h *Handler) GetDigestSummary(c *gin.Context) {
	projectID := c.Param("project_id")
	c.JSON(http.StatusOK, h.notify.DigestSummary(projectID, time.Now()))
}

func (h *Handler) RegisterDueSoon(c *gin.Context) {
	projectID := c.Param("project_id")
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid due-soon body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	registered := h.notify.RegisterDueSoonNotifications(projectID, req.Tasks, time.Now())
	c.JSON(http.StatusOK, gin.H{"registered": registered})
}

func (h *Handler) RegisterAutomationRun(c *gin.Context) {
	projectID := c.Param("project_id")
	var in models.AutomationRunInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Errorf("Invalid automation run body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	run := h.notify.RegisterAutomationRun(projectID, in, time.Now())
	c.JSON(http.StatusCreated, run)
}

func (h *Handler) ListAutomationRuns(c *gin.Context) {
	projectID := c.Param("project_id")
	c.JSON(http.StatusOK, h.notify.AutomationRuns(projectID, time.Now()))
}

func (h *Handler) ResetNotifications(c *gin.Context) {
	projectID := c.Param("project_id")
	h.notify.ResetProject(projectID)
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (h *Handler) parseLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
