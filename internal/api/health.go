package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// HealthHandler reports healthy only when every check passes.
func HealthHandler(service, version string, checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := "healthy"
		results := make(map[string]checkResult, len(checks))
		for name, check := range checks {
			start := time.Now()
			res := checkResult{Status: "healthy"}
			if err := check(ctx); err != nil {
				res.Status = "unhealthy"
				res.Message = err.Error()
				status = "unhealthy"
			}
			res.Latency = time.Since(start).String()
			results[name] = res
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":  status,
			"service": service,
			"version": version,
			"checks":  results,
		})
	}
}
