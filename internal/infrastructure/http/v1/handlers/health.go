package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stroyfin/internal/infrastructure/storage/postgres"
)

// HealthHandler provides liveness and readiness endpoints.
type HealthHandler struct {
	pool *postgres.Pool
}

// NewHealthHandler creates a health handler over the database pool.
func NewHealthHandler(pool *postgres.Pool) *HealthHandler {
	return &HealthHandler{pool: pool}
}

// Live handles GET /health/live - process is up.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready - database is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	start := time.Now()
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"db_latency": time.Since(start).String(),
	})
}
