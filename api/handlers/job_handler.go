package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/vidgrab/internal/app"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// JobService is the part of the queue manager the HTTP API uses
type JobService interface {
	Validate(locatorKey string, target domain.NotificationTarget) error
	Submit(locatorKey string, target domain.NotificationTarget) (domain.Task, error)
	GetJob(id string) (*domain.JobRecord, error)
	ListJobs(filters map[string]interface{}, limit int) ([]*domain.JobRecord, error)
	GetStats(ctx context.Context) (*app.QueueStatus, error)
}

// Acknowledger posts chat updates without waiting for delivery
type Acknowledger interface {
	SendQueuedAck(target domain.NotificationTarget)
	EditCaption(target domain.NotificationTarget, text string)
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs    JobService
	acks    Acknowledger
	catalog *messages.Catalog
	logger  *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobService, acks Acknowledger, catalog *messages.Catalog, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:    jobs,
		acks:    acks,
		catalog: catalog,
		logger:  logger,
	}
}

// SubmitJobRequest represents a request to queue a download
type SubmitJobRequest struct {
	LocatorKey string `json:"locator_key" binding:"required"`
	ChatID     int64  `json:"chat_id" binding:"required"`
	MessageID  int    `json:"message_id"`
}

// SubmitJob handles POST /api/v1/jobs. When message_id is set the message's
// caption is marked queued before the task is submitted, as the bot does.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := domain.NotificationTarget{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
	}
	if err := h.jobs.Validate(req.LocatorKey, target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acked := target.MessageID != 0
	if acked {
		h.acks.SendQueuedAck(target)
	}

	task, err := h.jobs.Submit(req.LocatorKey, target)
	if err != nil {
		if acked {
			h.acks.EditCaption(target, h.catalog.Text(messages.KeyQueueUnavailable))
		}
		if errors.Is(err, domain.ErrQueueClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, task)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.jobs.GetJob(id)
	if err != nil {
		h.respondError(c, "Failed to get job", err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateStatus(domain.JobStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filters["status"] = status
	}
	if chatID := c.Query("chat_id"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat_id"})
			return
		}
		filters["chat_id"] = id
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxListLimit)
	}

	jobs, err := h.jobs.ListJobs(filters, limit)
	if err != nil {
		h.respondError(c, "Failed to list jobs", err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobs.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *JobHandler) respondError(c *gin.Context, msg string, err error) {
	if errors.Is(err, app.ErrJournalDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
