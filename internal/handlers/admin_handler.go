package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/middleware"
	"github.com/framefind/framefind/internal/service"
)

// AdminHandler exposes the retry queue to operators
type AdminHandler struct {
	failedRequests service.FailedRequestService
	scheduler      service.RetryScheduler
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(failedRequests service.FailedRequestService, scheduler service.RetryScheduler) *AdminHandler {
	return &AdminHandler{failedRequests: failedRequests, scheduler: scheduler}
}

// Stats handles GET /api/admin/retry-queue/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.failedRequests.Stats(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return
	}

	middleware.RetryQueueDepth.WithLabelValues("embed").Set(float64(stats.PendingEmbeds))
	middleware.RetryQueueDepth.WithLabelValues("index_deletion").Set(float64(stats.PendingIndexDeletions))

	c.JSON(http.StatusOK, dto.RetryQueueStatsResponse{
		PendingEmbeds:         stats.PendingEmbeds,
		PendingIndexDeletions: stats.PendingIndexDeletions,
		FailedEmbeds:          stats.FailedEmbeds,
		FailedIndexDeletions:  stats.FailedIndexDeletions,
	})
}

// TriggerEmbedRetry handles POST /api/admin/retry-queue/trigger-embed-retry
func (h *AdminHandler) TriggerEmbedRetry(c *gin.Context) {
	processed, err := h.scheduler.RunEmbedRetries(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("embed retry pass completed, processed %d requests", processed),
	})
}

// TriggerIndexDeletionRetry handles POST /api/admin/retry-queue/trigger-index-deletion-retry
func (h *AdminHandler) TriggerIndexDeletionRetry(c *gin.Context) {
	processed, err := h.scheduler.RunDeletionRetries(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, apperrors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("index deletion retry pass completed, processed %d requests", processed),
	})
}
