package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/middleware"
)

// StatusOf maps a workflow error kind to its HTTP status.
func StatusOf(err error) int {
	switch workflow.KindOf(err) {
	case workflow.KindNotFound:
		return http.StatusNotFound
	case workflow.KindForbidden:
		return http.StatusForbidden
	case workflow.KindInvalidTransition, workflow.KindVersionConflict:
		return http.StatusConflict
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError aborts the request with {"error", "kind"}. Forbidden becomes
// 401 when the caller did not authenticate at all.
func WriteError(c *gin.Context, err error) {
	status := StatusOf(err)
	kind := workflow.KindOf(err)
	if kind == workflow.KindForbidden && !middleware.ActorFrom(c).Authenticated() {
		status = http.StatusUnauthorized
	}
	msg := err.Error()
	var we *workflow.Error
	if errors.As(err, &we) && we.Message != "" {
		msg = we.Message
	}
	body := gin.H{"error": msg, "kind": kind}
	switch {
	case kind == "":
		logger.Errorw("content: unexpected error", "method", c.Request.Method, "route", c.FullPath(), "err", err)
		body = gin.H{"error": "internal error", "kind": "internal"}
	case kind == workflow.KindStorageUnavailable:
		logger.Warnw("content: storage unavailable", "method", c.Request.Method, "route", c.FullPath(), "err", err)
	case workflow.IsRetryable(err):
		body["retryable"] = true
	}
	c.AbortWithStatusJSON(status, body)
}
