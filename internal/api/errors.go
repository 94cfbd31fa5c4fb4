package api

import (
	"errors"
	"net/http"

	"forest-fashion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail writes the JSON error response for err. Only validation and
// not-found messages are passed through to the client; anything unexpected
// is logged and reported as a server error.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		ve *service.ValidationError
		nf *service.NotFoundError
	)

	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"message": ve.Message})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "Invalid token"})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"message": nf.Message})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	case errors.Is(err, service.ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"message": "Insufficient stock", "details": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": "Conflict", "details": err.Error()})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}
