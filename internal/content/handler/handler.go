// Package handler exposes the content workflow over HTTP.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/content"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/middleware"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type Handler struct {
	d      *content.Dispatcher
	policy workflow.Policy
}

// RegisterContentRoutes mounts the content and review queue routes. The
// actor middleware must run before them.
func RegisterContentRoutes(r gin.IRouter, d *content.Dispatcher) {
	h := &Handler{d: d}
	g := r.Group("/api/v1/content/:kind")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.GET("/:id/actions", h.Allowed)
	g.POST("/:id/actions", h.Apply)
	g.DELETE("/:id", h.Delete)

	r.GET("/api/v1/review/queue", h.ReviewQueue)
}

type createRequest struct {
	Action  workflow.Action `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type actionRequest struct {
	Action  workflow.Action `json:"action"`
	Version *int64          `json:"version,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// List handles GET /api/v1/content/:kind?owner=&status=&limit=&offset=
func (h *Handler) List(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	f, err := filterFromQuery(c, actor)
	if err != nil {
		WriteError(c, err)
		return
	}
	items, err := h.d.ListItems(c.Request.Context(), kind, f, actor)
	if err != nil {
		WriteError(c, err)
		return
	}
	if items == nil {
		items = []workflow.Content{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": f.Limit, "offset": f.Offset})
}

// Create handles POST /api/v1/content/:kind with {action, payload}. The
// action defaults to saveDraft.
func (h *Handler) Create(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, workflow.Validationf("invalid request body: %v", err))
		return
	}
	if req.Action == "" {
		req.Action = workflow.ActionSaveDraft
	}
	item, err := h.d.Dispatch(c.Request.Context(), content.ActionRequest{
		Kind:    kind,
		Action:  req.Action,
		Actor:   middleware.ActorFrom(c),
		Payload: req.Payload,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	setETag(c, item.Header())
	c.JSON(http.StatusCreated, item)
}

// Get handles GET /api/v1/content/:kind/:id and honours If-None-Match.
func (h *Handler) Get(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	item, err := h.d.GetItem(c.Request.Context(), kind, c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		WriteError(c, err)
		return
	}
	tag := setETag(c, item.Header())
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == tag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Allowed lists the actions the caller may request on the item right now.
func (h *Handler) Allowed(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	item, err := h.d.GetItem(c.Request.Context(), kind, c.Param("id"), actor)
	if err != nil {
		WriteError(c, err)
		return
	}
	m := item.Header()
	actions := h.policy.Allowed(actor, m)
	if actions == nil {
		actions = []workflow.Action{}
	}
	setETag(c, m)
	c.JSON(http.StatusOK, gin.H{"id": m.ID, "status": m.Status, "version": m.Version, "actions": actions})
}

// Apply handles POST /api/v1/content/:kind/:id/actions. The expected version
// comes from the body or, failing that, from If-Match.
func (h *Handler) Apply(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteError(c, workflow.Validationf("invalid request body: %v", err))
		return
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		WriteError(c, err)
		return
	}
	if _, err := workflow.ParseAction(string(req.Action)); err != nil {
		WriteError(c, err)
		return
	}
	item, err := h.d.ApplyAction(c.Request.Context(), content.ActionRequest{
		Kind:            kind,
		ID:              c.Param("id"),
		Action:          req.Action,
		Actor:           middleware.ActorFrom(c),
		ExpectedVersion: version,
		Payload:         req.Payload,
		Reason:          req.Reason,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	if !item.Header().Deleted {
		setETag(c, item.Header())
	}
	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /api/v1/content/:kind/:id. The version may be given
// as If-Match or ?version=.
func (h *Handler) Delete(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var body *int64
	if v := c.Query("version"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			WriteError(c, workflow.Validationf("invalid version %q", v))
			return
		}
		body = &n
	}
	version, err := expectedVersion(c, body)
	if err != nil {
		WriteError(c, err)
		return
	}
	_, err = h.d.ApplyAction(c.Request.Context(), content.ActionRequest{
		Kind:            kind,
		ID:              c.Param("id"),
		Action:          workflow.ActionDelete,
		Actor:           middleware.ActorFrom(c),
		ExpectedVersion: version,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReviewQueue handles GET /api/v1/review/queue?kind=
func (h *Handler) ReviewQueue(c *gin.Context) {
	var kinds []content.Kind
	for _, raw := range c.QueryArray("kind") {
		for _, v := range strings.Split(raw, ",") {
			if v == "" {
				continue
			}
			k, err := content.ParseKind(v)
			if err != nil {
				WriteError(c, workflow.Validationf("unknown content kind %q", v))
				return
			}
			kinds = append(kinds, k)
		}
	}
	items, err := h.d.ReviewQueue(c.Request.Context(), middleware.ActorFrom(c), kinds...)
	if err != nil {
		WriteError(c, err)
		return
	}
	if items == nil {
		items = []workflow.Content{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func kindParam(c *gin.Context) (content.Kind, bool) {
	k, err := content.ParseKind(c.Param("kind"))
	if err != nil {
		WriteError(c, err)
		return "", false
	}
	return k, true
}

func filterFromQuery(c *gin.Context, actor workflow.Actor) (workflow.Filter, error) {
	f := workflow.Filter{OwnerID: c.Query("owner"), Limit: defaultLimit}
	if f.OwnerID == "me" {
		if !actor.Authenticated() {
			return f, workflow.Forbiddenf("sign in to list your own items")
		}
		f.OwnerID = actor.ID
	}
	if v := c.Query("status"); v != "" {
		s, err := workflow.ParseStatus(v)
		if err != nil {
			return f, workflow.Validationf("unknown status %q", v)
		}
		f.Status = s
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, workflow.Validationf("invalid limit %q", v)
		}
		f.Limit = min(n, maxLimit)
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, workflow.Validationf("invalid offset %q", v)
		}
		f.Offset = n
	}
	return f, nil
}

func etag(m *workflow.Meta) string {
	return `"` + strconv.FormatInt(m.Version, 10) + `"`
}

func setETag(c *gin.Context, m *workflow.Meta) string {
	tag := etag(m)
	c.Header("ETag", tag)
	return tag
}

// expectedVersion prefers the body value. If-Match accepts "3", W/"3" and a
// bare 3; "*" means any version.
func expectedVersion(c *gin.Context, body *int64) (int64, error) {
	if body != nil {
		if *body < 0 {
			return 0, workflow.Validationf("invalid version %d", *body)
		}
		return *body, nil
	}
	im := strings.TrimSpace(c.GetHeader("If-Match"))
	if im == "" || im == "*" {
		return 0, nil
	}
	v := strings.Trim(strings.TrimPrefix(im, "W/"), `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 1 {
		return 0, workflow.Validationf("invalid If-Match %q", im)
	}
	return n, nil
}
