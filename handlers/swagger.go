package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>contentflow - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Errors from content routes are {"error": string, "kind": string}; version
// conflicts add "retryable": true.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "contentflow", "version": "v1.0.0" },
  "paths": {
    "/auth/login": {
      "post": {
        "summary": "Exchange an ID token, authorization code or password for service tokens",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"mode":{"type":"string","enum":["id_token","auth_code","password"]},"id_token":{"type":"string"},"code":{"type":"string"},"redirect_uri":{"type":"string"},"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "accessToken, refreshToken, expiresIn, user" }, "401": { "description": "authentication failed" } }
      }
    },
    "/auth/refresh": {
      "post": { "summary": "Rotate the refresh token and issue a new access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "new tokens" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Remove the refresh session and blacklist the bearer token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refreshToken":{"type":"string"}}}}}}, "responses": { "200": { "description": "logged out" } } }
    },
    "/auth/me": { "get": { "summary": "Current actor and user", "responses": { "200": { "description": "actor and user" }, "401": { "description": "not signed in" } } } },
    "/api/v1/content/{kind}": {
      "get": { "summary": "List items (query: owner, status, limit, offset)", "responses": { "200": { "description": "items" } } },
      "post": { "summary": "Create an item with action saveDraft or submit", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"action":{"type":"string"},"payload":{"type":"object"}}}}}}, "responses": { "201": { "description": "created item, ETag is the version" } } }
    },
    "/api/v1/content/{kind}/{id}": {
      "get": { "summary": "Get an item", "responses": { "200": { "description": "item" }, "304": { "description": "If-None-Match matched" }, "404": { "description": "not found" } } },
      "delete": { "summary": "Delete an item (If-Match or ?version=)", "responses": { "204": { "description": "deleted" }, "409": { "description": "version conflict" } } }
    },
    "/api/v1/content/{kind}/{id}/actions": {
      "get": { "summary": "Actions the caller may request now", "responses": { "200": { "description": "actions" } } },
      "post": { "summary": "Apply a workflow action", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"action":{"type":"string","enum":["saveDraft","submit","withdrawToDraft","resubmit","update","approve","reject","delete"]},"version":{"type":"integer"},"payload":{"type":"object"},"reason":{"type":"string"}}}}}}, "responses": { "200": { "description": "updated item" }, "403": { "description": "forbidden" }, "409": { "description": "invalid transition or version conflict" } } }
    },
    "/api/v1/review/queue": { "get": { "summary": "Pending items across kinds, oldest first (query: kind)", "responses": { "200": { "description": "items" }, "403": { "description": "reviewers only" } } } },
    "/api/v1/audit": { "get": { "summary": "Moderation log (query: itemId, actorId, resource, limit, offset)", "responses": { "200": { "description": "entries" } } } },
    "/api/v1/tags": {
      "get": { "summary": "Suggest tags by substring (query: q, limit)", "responses": { "200": { "description": "tags" } } },
      "post": { "summary": "Find or create tags", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"category":{"type":"string"},"values":{"type":"array","items":{"type":"string"}}}}}}}, "responses": { "200": { "description": "tags" } } }
    },
    "/api/v1/uploads": { "post": { "summary": "Upload an image (multipart: file, kind)", "responses": { "201": { "description": "url and key" }, "413": { "description": "too large" } } } },
    "/api/v1/files/{key}": { "get": { "summary": "Serve an uploaded file", "responses": { "200": { "description": "file" }, "404": { "description": "not found" } } } },
    "/api/v1/users": { "get": { "summary": "List users (reviewers)", "responses": { "200": { "description": "users" } } } },
    "/api/v1/users/{sub}/role": { "put": { "summary": "Change a user's role (super admins)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"role":{"type":"string"}}}}}}, "responses": { "200": { "description": "user" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
