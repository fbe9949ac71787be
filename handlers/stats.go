package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/appdedupe/appdedupe/internal/apperr"
	"github.com/appdedupe/appdedupe/internal/stats"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

type StatsHandler struct {
	stats *stats.Service
}

func NewStatsHandler(s *stats.Service) *StatsHandler {
	return &StatsHandler{stats: s}
}

func (h *StatsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Dashboard)
	rg.GET("/stats/team", h.Team)
	rg.GET("/stats/achievements", h.Achievements)
	rg.GET("/leaderboard", h.Leaderboard)
}

func (h *StatsHandler) Dashboard(c *gin.Context) {
	out, err := h.stats.Dashboard(c.Request.Context(), middleware.UserFrom(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *StatsHandler) Team(c *gin.Context) {
	out, err := h.stats.Team(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *StatsHandler) Achievements(c *gin.Context) {
	out, err := h.stats.Achievements(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *StatsHandler) Leaderboard(c *gin.Context) {
	out, err := h.stats.Leaderboard(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
