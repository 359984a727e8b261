package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/audit"
	contenthandler "github.com/fansite/contentflow/internal/content/handler"
	"github.com/fansite/contentflow/internal/users"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/middleware"
)

// RegisterUserRoutes mounts user listing and role management. rec may be nil.
func RegisterUserRoutes(r gin.IRouter, svc *users.Service, rec *audit.Recorder) {
	r.GET("/api/v1/users", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), middleware.ActorFrom(c))
		if err != nil {
			contenthandler.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list})
	})

	r.PUT("/api/v1/users/:sub/role", func(c *gin.Context) {
		var req struct {
			Role string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			contenthandler.WriteError(c, workflow.Validationf("role is required"))
			return
		}
		ctx := c.Request.Context()
		by := middleware.ActorFrom(c)
		sub := c.Param("sub")

		var from workflow.Role
		if prev, err := svc.GetBySub(ctx, sub); err == nil && prev != nil {
			from = prev.Role
		}
		u, err := svc.SetRole(ctx, by, sub, workflow.ParseRole(req.Role))
		if err != nil {
			contenthandler.WriteError(c, err)
			return
		}
		if rec != nil {
			if err := rec.RoleChanged(ctx, by, sub, from, u.Role); err != nil {
				logger.Warnf("users: audit role change of %s: %v", sub, err)
			}
		}
		c.JSON(http.StatusOK, u)
	})
}
