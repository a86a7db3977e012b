// Package http exposes the movers and positions read models over a
// small gin router.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screener-backend/internal/domain"
)

// MoversHandler serves the latest cached MoversResult.
type MoversHandler struct {
	repo domain.MoversRepository
}

// NewMoversHandler builds a handler over repo.
func NewMoversHandler(repo domain.MoversRepository) *MoversHandler {
	return &MoversHandler{repo: repo}
}

// Register wires the handler's routes onto r.
func (h *MoversHandler) Register(r gin.IRouter) {
	r.GET("/futures/movers", h.getAll)
	r.GET("/futures/movers/:timeframe", h.getTimeframe)
}

func (h *MoversHandler) getAll(c *gin.Context) {
	result, ok := h.repo.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no movers data yet"})
		return
	}
	if timeframe := c.Query("timeframe"); timeframe != "" {
		snapshot, ok := result.Snapshots[timeframe]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe: " + timeframe})
			return
		}
		c.JSON(http.StatusOK, snapshot)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MoversHandler) getTimeframe(c *gin.Context) {
	timeframe := c.Param("timeframe")
	result, ok := h.repo.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no movers data yet"})
		return
	}

	snapshot, ok := result.Snapshots[timeframe]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timeframe: " + timeframe})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
