package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sevotec/voting-service/core"
)

// statusFor maps an error classification to an HTTP status
func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindUnauthorized:
		return http.StatusUnauthorized
	case core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindResourceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the classified error and stops the handler chain.
// Internal errors never leak their cause to the caller.
func abortWithError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	msg := core.MessageOf(err)
	if kind == core.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{
		"error":   kind,
		"message": msg,
	})
}
