package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fansite/contentflow/internal/content"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/middleware"
)

var (
	owner    = workflow.Actor{ID: "u1", Role: workflow.RoleUser}
	reviewer = workflow.Actor{ID: "a1", Role: workflow.RoleAdmin}
)

// newRouter resolves the actor from X-Actor: "<id>:<role>".
func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg, err := content.OpenStores(context.Background(), content.Backend{Driver: "memory"})
	require.NoError(t, err)
	g := gin.New()
	g.Use(func(c *gin.Context) {
		a := workflow.Anonymous
		if id, role, ok := strings.Cut(c.GetHeader("X-Actor"), ":"); ok {
			a = workflow.Actor{ID: id, Role: workflow.ParseRole(role)}
		}
		c.Set(middleware.ActorKey, a)
		c.Next()
	})
	RegisterContentRoutes(g, content.NewDispatcher(cfg))
	return g
}

func do(g *gin.Engine, method, path string, as workflow.Actor, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if as.ID != "" {
		req.Header.Set("X-Actor", as.ID+":"+string(as.Role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createArticle(t *testing.T, g *gin.Engine) string {
	t.Helper()
	w := do(g, http.MethodPost, "/api/v1/content/articles", owner, `{"payload":{"title":"Hello","content":"body text"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, `"1"`, w.Header().Get("ETag"))
	got := decode(t, w)
	require.Equal(t, "draft", got["status"])
	return got["id"].(string)
}

func TestContentHandler_ReviewFlow(t *testing.T) {
	g := newRouter(t)
	id := createArticle(t, g)
	base := "/api/v1/content/article/" + id

	w := do(g, http.MethodPost, base+"/actions", owner, `{"action":"submit"}`, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, `"2"`, w.Header().Get("ETag"))

	// reviewer acting on what they read before the submit
	w = do(g, http.MethodPost, base+"/actions", reviewer, `{"action":"approve","version":1}`)
	require.Equal(t, http.StatusConflict, w.Code)
	got := decode(t, w)
	require.Equal(t, "version_conflict", got["kind"])
	require.Equal(t, true, got["retryable"])

	w = do(g, http.MethodGet, base+"/actions", reviewer, "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode(t, w)
	require.ElementsMatch(t, []interface{}{"approve", "reject", "delete"}, got["actions"])

	w = do(g, http.MethodPost, base+"/actions", reviewer, `{"action":"approve","version":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode(t, w)
	require.Equal(t, "approved", got["status"])
	require.Equal(t, true, got["isPublished"])
	require.Equal(t, "a1", got["reviewerId"])

	// published items are public
	w = do(g, http.MethodGet, base, workflow.Anonymous, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `"3"`, w.Header().Get("ETag"))

	w = do(g, http.MethodGet, base, workflow.Anonymous, "", "If-None-Match", `"3"`)
	require.Equal(t, http.StatusNotModified, w.Code)
}

func TestContentHandler_ErrorMapping(t *testing.T) {
	g := newRouter(t)
	id := createArticle(t, g)
	base := "/api/v1/content/article/" + id

	cases := []struct {
		name   string
		method string
		path   string
		as     workflow.Actor
		body   string
		status int
		kind   string
	}{
		{"unknown kind", http.MethodGet, "/api/v1/content/podcasts", owner, "", http.StatusNotFound, "not_found"},
		{"missing item", http.MethodGet, "/api/v1/content/article/nope", owner, "", http.StatusNotFound, "not_found"},
		{"draft hidden from others", http.MethodGet, base, workflow.Actor{ID: "u2", Role: workflow.RoleUser}, "", http.StatusNotFound, "not_found"},
		{"anonymous action", http.MethodPost, base + "/actions", workflow.Anonymous, `{"action":"submit"}`, http.StatusUnauthorized, "forbidden"},
		{"self review", http.MethodPost, base + "/actions", workflow.Actor{ID: "u1", Role: workflow.RoleAdmin}, `{"action":"approve"}`, http.StatusForbidden, "forbidden"},
		{"invalid transition", http.MethodPost, base + "/actions", owner, `{"action":"resubmit"}`, http.StatusConflict, "invalid_transition"},
		{"unknown action", http.MethodPost, base + "/actions", owner, `{"action":"publish"}`, http.StatusBadRequest, "validation_error"},
		{"client status", http.MethodPost, base + "/actions", owner, `{"action":"saveDraft","payload":{"title":"x","status":"approved"}}`, http.StatusBadRequest, "validation_error"},
		{"bad if-match", http.MethodPost, base + "/actions", owner, `{"action":"submit"}`, http.StatusBadRequest, "validation_error"},
		{"bad status filter", http.MethodGet, "/api/v1/content/article?status=live", reviewer, "", http.StatusBadRequest, "validation_error"},
		{"anonymous drafts", http.MethodGet, "/api/v1/content/article?status=draft", workflow.Anonymous, "", http.StatusUnauthorized, "forbidden"},
		{"queue for users", http.MethodGet, "/api/v1/review/queue", owner, "", http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var headers []string
			if tc.name == "bad if-match" {
				headers = []string{"If-Match", "yesterday"}
			}
			w := do(g, tc.method, tc.path, tc.as, tc.body, headers...)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			got := decode(t, w)
			require.Equal(t, tc.kind, got["kind"])
			require.NotEmpty(t, got["error"])
		})
	}
}

func TestContentHandler_ListAndQueue(t *testing.T) {
	g := newRouter(t)
	createArticle(t, g)
	w := do(g, http.MethodPost, "/api/v1/content/galleries", owner,
		`{"action":"submit","payload":{"title":"Tour","category":"巡演返图","photos":[{"imageUrl":"https://cdn.example/1.jpg"}]}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "pending", decode(t, w)["status"])

	w = do(g, http.MethodGet, "/api/v1/content/article?owner=me", owner, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["items"], 1)

	w = do(g, http.MethodGet, "/api/v1/content/article", workflow.Anonymous, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["items"], 0)

	w = do(g, http.MethodGet, "/api/v1/review/queue", reviewer, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["items"], 1)

	w = do(g, http.MethodGet, "/api/v1/review/queue?kind=article", reviewer, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode(t, w)["items"], 0)

	w = do(g, http.MethodGet, "/api/v1/content/article?limit=0", reviewer, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentHandler_Delete(t *testing.T) {
	g := newRouter(t)
	id := createArticle(t, g)
	base := "/api/v1/content/article/" + id

	w := do(g, http.MethodDelete, base, workflow.Actor{ID: "u2", Role: workflow.RoleUser}, "")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(g, http.MethodDelete, base+"?version=7", owner, "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(g, http.MethodDelete, base, owner, "", "If-Match", `W/"1"`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(g, http.MethodGet, base, owner, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExpectedVersion(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	v, err := expectedVersion(c, nil)
	require.NoError(t, err)
	require.Zero(t, v)

	for _, h := range []string{`"4"`, `W/"4"`, "4"} {
		c.Request.Header.Set("If-Match", h)
		v, err = expectedVersion(c, nil)
		require.NoError(t, err)
		require.Equal(t, int64(4), v)
	}

	five := int64(5)
	v, err = expectedVersion(c, &five)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	c.Request.Header.Set("If-Match", "*")
	v, err = expectedVersion(c, nil)
	require.NoError(t, err)
	require.Zero(t, v)
}
