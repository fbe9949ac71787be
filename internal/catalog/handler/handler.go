package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/catalog/repository"
	"github.com/appdedupe/appdedupe/internal/catalog/service"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the app name and cluster routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	apps := rg.Group("/apps")
	apps.GET("", h.listApps)
	apps.GET("/confirmed", h.listFiltered(repository.Confirmed))
	apps.GET("/unconfirmed", h.listFiltered(repository.Unconfirmed))
	apps.POST("", h.createApp)
	apps.GET("/:id", h.getApp)
	apps.PATCH("/:id", h.updateApp)
	apps.PATCH("/:id/confirm", h.confirm)

	clusters := rg.Group("/clusters")
	clusters.GET("", h.listClusters)
	clusters.POST("", h.createCluster)
	clusters.GET("/:id", h.getCluster)
	clusters.PATCH("/:id", h.updateCluster)
	clusters.GET("/:id/stats", h.clusterStats)
}

func (h *Handler) listApps(c *gin.Context) {
	var f repository.AppFilter
	if raw, ok := c.GetQuery("confirmed"); ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			apperr.Respond(c, apperr.Validation("Invalid filter", apperr.FieldError{Field: "confirmed", Message: "must be true or false"}))
			return
		}
		f.Confirmed = &v
	}
	h.respondList(c, f)
}

func (h *Handler) listFiltered(f repository.AppFilter) gin.HandlerFunc {
	return func(c *gin.Context) { h.respondList(c, f) }
}

func (h *Handler) respondList(c *gin.Context, f repository.AppFilter) {
	list, err := h.svc.ListApps(c.Request.Context(), f)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) createApp(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		Cluster       string `json:"cluster"`
		CanonicalName string `json:"canonicalName"`
		Notes         string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.FromBinding(err))
		return
	}
	v, err := h.svc.CreateApp(c.Request.Context(), service.CreateAppInput{
		Name:          req.Name,
		ClusterID:     req.Cluster,
		CanonicalName: req.CanonicalName,
		Notes:         req.Notes,
	}, middleware.UserFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Handler) getApp(c *gin.Context) {
	v, err := h.svc.GetApp(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) updateApp(c *gin.Context) {
	fields, err := bindPatch(c, "name", "cluster", "notes")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var p service.AppPatch
	if p.Name, err = stringField(fields, "name"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if p.ClusterID, err = stringField(fields, "cluster"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if p.Notes, err = stringField(fields, "notes"); err != nil {
		apperr.Respond(c, err)
		return
	}
	v, err := h.svc.UpdateApp(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) confirm(c *gin.Context) {
	res, err := h.svc.Confirm(c.Request.Context(), c.Param("id"), middleware.UserFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) listClusters(c *gin.Context) {
	list, err := h.svc.ListClusters(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) createCluster(c *gin.Context) {
	var req struct {
		Name          string `json:"name" binding:"required"`
		CanonicalName string `json:"canonicalName"`
		Description   string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, apperr.FromBinding(err))
		return
	}
	cl, err := h.svc.CreateCluster(c.Request.Context(), service.CreateClusterInput{
		Name:          req.Name,
		CanonicalName: req.CanonicalName,
		Description:   req.Description,
	}, middleware.UserFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

func (h *Handler) getCluster(c *gin.Context) {
	cl, err := h.svc.GetCluster(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) updateCluster(c *gin.Context) {
	fields, err := bindPatch(c, "name", "canonicalName", "description")
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	var p service.ClusterPatch
	if p.Name, err = stringField(fields, "name"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if p.CanonicalName, err = stringField(fields, "canonicalName"); err != nil {
		apperr.Respond(c, err)
		return
	}
	if p.Description, err = stringField(fields, "description"); err != nil {
		apperr.Respond(c, err)
		return
	}
	cl, err := h.svc.UpdateCluster(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *Handler) clusterStats(c *gin.Context) {
	st, err := h.svc.ClusterStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// bindPatch decodes a JSON object and rejects any key outside allowed.
func bindPatch(c *gin.Context, allowed ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		return nil, apperr.FromBinding(err)
	}
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	var bad []apperr.FieldError
	for k := range fields {
		if !ok[k] {
			bad = append(bad, apperr.FieldError{Field: k, Message: "field cannot be updated"})
		}
	}
	if len(bad) > 0 {
		return nil, apperr.Validation("Invalid updates", bad...)
	}
	return fields, nil
}

// stringField reads an optional string; JSON null reads as "".
func stringField(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	s := ""
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, apperr.Validation("Invalid updates", apperr.FieldError{Field: key, Message: key + " must be a string"})
	}
	return &s, nil
}
