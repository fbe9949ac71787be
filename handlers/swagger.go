package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerHTML))
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>app-dedupe API</title>
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

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "app-dedupe", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/users/register": {
      "post": {
        "summary": "Create an account",
        "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["name","email","password"],"properties":{"name":{"type":"string"},"email":{"type":"string"},"password":{"type":"string","minLength":6}}}}}},
        "responses": { "201": { "description": "user and token" }, "400": { "description": "validation failed" }, "409": { "description": "user already exists" } }
      }
    },
    "/api/users/login": {
      "post": {
        "summary": "Log in with email and password",
        "security": [],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "user and token" }, "401": { "description": "invalid login credentials" } }
      }
    },
    "/api/users/login/sso": {
      "post": { "summary": "Exchange an SSO authorization code", "security": [], "responses": { "200": { "description": "user and token" }, "401": { "description": "authentication failed" } } }
    },
    "/api/users/me": { "get": { "summary": "Current user", "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" } } } },
    "/api/users/logout": { "post": { "summary": "Revoke the current token", "responses": { "200": { "description": "logged out" } } } },
    "/api/apps": {
      "get": { "summary": "List app names", "parameters": [{"name":"confirmed","in":"query","schema":{"type":"boolean"}}], "responses": { "200": { "description": "app names with cluster and user names" } } },
      "post": { "summary": "Create an app name", "responses": { "201": { "description": "created" }, "400": { "description": "validation failed" } } }
    },
    "/api/apps/confirmed": { "get": { "summary": "List confirmed app names", "responses": { "200": { "description": "app names" } } } },
    "/api/apps/unconfirmed": { "get": { "summary": "List unconfirmed app names", "responses": { "200": { "description": "app names" } } } },
    "/api/apps/{id}": {
      "get": { "summary": "Get an app name", "responses": { "200": { "description": "app name" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Edit name, cluster or notes", "responses": { "200": { "description": "updated" }, "400": { "description": "invalid updates" } } }
    },
    "/api/apps/{id}/confirm": { "patch": { "summary": "Confirm an app name", "responses": { "200": { "description": "app, score summary and cluster" }, "404": { "description": "not found" } } } },
    "/api/clusters": {
      "get": { "summary": "List clusters by confirmation ratio", "responses": { "200": { "description": "clusters" } } },
      "post": { "summary": "Create a cluster", "responses": { "201": { "description": "created" } } }
    },
    "/api/clusters/{id}": {
      "get": { "summary": "Get a cluster", "responses": { "200": { "description": "cluster" }, "404": { "description": "not found" } } },
      "patch": { "summary": "Edit a cluster", "responses": { "200": { "description": "updated" } } }
    },
    "/api/clusters/{id}/stats": { "get": { "summary": "Cluster counts", "responses": { "200": { "description": "totalApps, confirmedApps, unconfirmedApps" } } } },
    "/api/stats": { "get": { "summary": "Dashboard numbers", "responses": { "200": { "description": "catalog totals, personal score and team stats" } } } },
    "/api/stats/team": { "get": { "summary": "Team stats", "responses": { "200": { "description": "team stats" } } } },
    "/api/stats/achievements": { "get": { "summary": "Team achievements", "responses": { "200": { "description": "badges" } } } },
    "/api/leaderboard": { "get": { "summary": "Confirmers ranked by count", "responses": { "200": { "description": "leaderboard" } } } },
    "/api/admin/upload-csv": {
      "post": {
        "summary": "Replace the catalog from a CSV upload",
        "requestBody": { "content": { "multipart/form-data": { "schema": {"type":"object","properties":{"file":{"type":"string","format":"binary"}}}}}},
        "responses": { "200": { "description": "ingested" }, "400": { "description": "invalid CSV" }, "403": { "description": "access denied" } }
      }
    },
    "/api/admin/export-clusters": { "get": { "summary": "Fully confirmed clusters", "responses": { "200": { "description": "cluster and app names" } } } },
    "/api/admin/stats": { "get": { "summary": "Catalog counts", "responses": { "200": { "description": "counts" } } } },
    "/api/admin/ingest-runs": { "get": { "summary": "Recent ingestion runs", "responses": { "200": { "description": "runs" } } } },
    "/api/admin/ingest-runs/{id}": { "get": { "summary": "One ingestion run", "responses": { "200": { "description": "run and download link" }, "404": { "description": "not found" } } } },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "metrics" } } } }
  }
}`
