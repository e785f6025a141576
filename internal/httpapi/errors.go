package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clubhub/internal/apperr"
	"clubhub/internal/clubs"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:         http.StatusNotFound,
	apperr.KindValidation:       http.StatusBadRequest,
	apperr.KindConflict:         http.StatusConflict,
	apperr.KindCapacityExceeded: http.StatusConflict,
	apperr.KindInvalidState:     http.StatusUnprocessableEntity,
	apperr.KindUnauthorized:     http.StatusForbidden,
}

// fail writes err as {"error", "code"}. Unclassified errors are logged and
// reported generically.
func (h *handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	if errors.Is(err, clubs.ErrLogosDisabled) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "unavailable"})
		return
	}
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		h.Logger.ErrorContext(c.Request.Context(), "request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": apperr.KindInternal.String()})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err), "code": kind.String()})
}

// bind decodes the JSON body, reporting malformed input as a validation error.
func (h *handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, apperr.Validation("invalid request body: %v", err))
		return false
	}
	return true
}
