package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stack-service/tax_service/pkg/health"
	"github.com/stack-service/tax_service/pkg/logger"
	"github.com/stack-service/tax_service/pkg/version"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.HealthChecker
	version string
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.HealthChecker, version string, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		version: version,
		logger:  logger,
	}
}

var startTime = time.Now()

// Health runs every registered check. Degraded dependencies still answer 200.
func (h *HealthHandler) Health(c *gin.Context) {
	status, checks := h.checker.Check(c.Request.Context())

	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
		h.logger.Warnw("Health check failed", "checks", checks)
	}

	c.JSON(statusCode, health.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   h.version,
		Checks:    checks,
	})
}

// Ready reports whether the service can take traffic
func (h *HealthHandler) Ready(c *gin.Context) {
	status, checks := h.checker.Check(c.Request.Context())

	ready := status != health.StatusUnhealthy
	statusCode := http.StatusOK
	label := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		label = "not_ready"
	}

	c.JSON(statusCode, gin.H{
		"status":    label,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

// Live is the liveness probe
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
	})
}

// Version returns build information
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
