package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/orderbridge/backend/internal/infrastructure/persistence"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// SystemHandler handles health, readiness, and system info endpoints
type SystemHandler struct {
	BaseHandler
	db        *persistence.Database
	redis     *redis.Client
	jobs      *queue.Repository
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler
func NewSystemHandler(db *persistence.Database, redisClient *redis.Client, jobs *queue.Repository) *SystemHandler {
	return &SystemHandler{
		db:        db,
		redis:     redisClient,
		jobs:      jobs,
		startTime: time.Now(),
	}
}

// Health handles GET /health. It reports liveness only.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
		"status":     "ok",
		"go_version": runtime.Version(),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// Ready handles GET /ready. It checks the database and Redis so the load
// balancer stops routing before dependencies are actually usable.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{}
	healthy := true

	if err := h.db.Ping(); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse(dto.ErrCodeInternal, "Dependencies unavailable"))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{"checks": checks}))
}

// QueueStats handles GET /api/v1/system/queue. Job counts by status, for
// operators watching a backlog.
func (h *SystemHandler) QueueStats(c *gin.Context) {
	counts, err := h.jobs.CountByStatus(c.Request.Context())
	if err != nil {
		h.Internal(c, "Failed to count jobs")
		return
	}
	h.Success(c, counts)
}
