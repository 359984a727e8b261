package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	contenthandler "github.com/fansite/contentflow/internal/content/handler"
	"github.com/fansite/contentflow/internal/tags"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/middleware"
)

func RegisterTagRoutes(r gin.IRouter, svc *tags.Service) {
	r.GET("/api/v1/tags", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		list, err := svc.Suggest(c.Request.Context(), c.Query("q"), limit)
		if err != nil {
			contenthandler.WriteError(c, err)
			return
		}
		if list == nil {
			list = []*tags.Tag{}
		}
		c.JSON(http.StatusOK, gin.H{"tags": list})
	})

	r.POST("/api/v1/tags", func(c *gin.Context) {
		var req struct {
			Category string   `json:"category"`
			Values   []string `json:"values"`
			Value    string   `json:"value"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			contenthandler.WriteError(c, workflow.Validationf("invalid request body: %v", err))
			return
		}
		if req.Value != "" {
			req.Values = append(req.Values, req.Value)
		}
		list, err := svc.Ensure(c.Request.Context(), middleware.ActorFrom(c), req.Category, req.Values...)
		if err != nil {
			contenthandler.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tags": list})
	})
}
