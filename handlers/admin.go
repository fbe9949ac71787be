package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/appdedupe/appdedupe/internal/apperr"
	catalog "github.com/appdedupe/appdedupe/internal/catalog/service"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/internal/stats"
	"github.com/appdedupe/appdedupe/pkg/logger"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

const (
	defaultRunLimit = 20
	downloadTTL     = 15 * time.Minute
)

// Presigner hands out temporary download links for archived uploads.
type Presigner interface {
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// AdminHandler serves /admin. The group it is registered on must already
// require an admin caller.
type AdminHandler struct {
	ingest   *ingest.Service
	catalog  *catalog.Service
	stats    *stats.Service
	files    Presigner
	maxBytes int64
}

// NewAdminHandler wires the admin routes. files may be nil.
func NewAdminHandler(in *ingest.Service, cat *catalog.Service, st *stats.Service, files Presigner, maxBytes int64) *AdminHandler {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &AdminHandler{ingest: in, catalog: cat, stats: st, files: files, maxBytes: maxBytes}
}

func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/admin")
	a.POST("/upload-csv", h.UploadCSV)
	a.GET("/export-clusters", h.ExportClusters)
	a.GET("/stats", h.Stats)
	a.GET("/ingest-runs", h.ListRuns)
	a.GET("/ingest-runs/:id", h.GetRun)
}

// UploadCSV replaces the catalog with the uploaded CSV in multipart field "file".
func (h *AdminHandler) UploadCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		apperr.Respond(c, apperr.Internal("Error processing CSV", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		apperr.Respond(c, apperr.Internal("Error processing CSV", err))
		return
	}

	run, err := h.ingest.Ingest(c.Request.Context(), middleware.UserFrom(c), ingest.Upload{FileName: fh.Filename, Data: data})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "CSV ingested successfully",
		"run":      run,
		"clusters": run.Clusters,
		"apps":     run.Apps,
		"skipped":  run.Skipped,
	})
}

func (h *AdminHandler) ExportClusters(c *gin.Context) {
	out, err := h.catalog.Export(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	out, err := h.stats.Admin(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) ListRuns(c *gin.Context) {
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			apperr.Respond(c, apperr.Validation("Invalid limit", apperr.FieldError{Field: "limit", Message: "limit must be a positive integer"}))
			return
		}
		limit = n
	}
	runs, err := h.ingest.Runs(c.Request.Context(), limit)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetRun returns one run and, when the upload was archived, a short-lived
// download link for it.
func (h *AdminHandler) GetRun(c *gin.Context) {
	ctx := c.Request.Context()
	run, err := h.ingest.Run(ctx, c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	body := gin.H{"run": run}
	if h.files != nil && run.ObjectKey != "" {
		link, err := h.files.GetPresignedURL(ctx, run.ObjectKey, downloadTTL)
		if err != nil {
			logger.Warnf("presign %s: %v", run.ObjectKey, err)
		} else {
			body["downloadUrl"] = link
		}
	}
	c.JSON(http.StatusOK, body)
}
