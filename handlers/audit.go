package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/audit"
	contenthandler "github.com/fansite/contentflow/internal/content/handler"
	"github.com/fansite/contentflow/pkg/middleware"
)

// RegisterAuditRoutes mounts GET /api/v1/audit?itemId=&actorId=&resource=&limit=&offset=
func RegisterAuditRoutes(r gin.IRouter, rec *audit.Recorder) {
	r.GET("/api/v1/audit", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		offset, _ := strconv.Atoi(c.Query("offset"))
		if offset < 0 {
			offset = 0
		}
		entries, err := rec.List(c.Request.Context(), middleware.ActorFrom(c), audit.Query{
			TargetID: c.Query("itemId"),
			ActorID:  c.Query("actorId"),
			Resource: c.Query("resource"),
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			contenthandler.WriteError(c, err)
			return
		}
		if entries == nil {
			entries = []*audit.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})
}
