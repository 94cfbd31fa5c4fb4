package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"forest-fashion/internal/service"
	"forest-fashion/internal/util"

	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// bearerToken returns the second word of the Authorization header.
func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// requireAuth rejects requests without a valid bearer token.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
			return
		}
		caller, err := h.svc.Auth.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// requireAdmin must run after requireAuth.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerOf(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
			return
		}
		c.Next()
	}
}

func callerOf(c *gin.Context) service.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(service.Caller); ok {
			return caller
		}
	}
	return service.Caller{}
}

// optionalCaller identifies the caller on public routes. A missing or bad
// token yields an anonymous caller.
func (h *Handler) optionalCaller(c *gin.Context) service.Caller {
	token := bearerToken(c)
	if token == "" {
		return service.Caller{}
	}
	caller, err := h.svc.Auth.Authenticate(token)
	if err != nil {
		return service.Caller{}
	}
	return caller
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
