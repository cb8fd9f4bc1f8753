package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatusReporter is satisfied by health.HealthChecker
type StatusReporter interface {
	GetHealthStatus(ctx context.Context) (map[string]interface{}, bool)
}

// HealthController handles liveness and readiness probes
type HealthController struct {
	checker StatusReporter
	extras  map[string]func() interface{}
}

func NewHealthController(checker StatusReporter) *HealthController {
	return &HealthController{checker: checker, extras: make(map[string]func() interface{})}
}

// AddDetail attaches a named value to the readiness response, e.g. breaker state
func (c *HealthController) AddDetail(name string, fn func() interface{}) {
	c.extras[name] = fn
}

func (c *HealthController) RegisterRoutes(router gin.IRouter) {
	router.GET("/health/live", c.HealthLive)
	router.GET("/health/ready", c.HealthReady)
}

func (c *HealthController) HealthLive(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (c *HealthController) HealthReady(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	status, ok := c.checker.GetHealthStatus(reqCtx)
	for name, fn := range c.extras {
		status[name] = fn()
	}

	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}
