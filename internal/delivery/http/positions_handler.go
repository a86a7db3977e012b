package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screener-backend/internal/domain"
)

// PositionsHandler serves the Strategy Engine's latest managed-position
// snapshot.
type PositionsHandler struct {
	repo domain.PositionsRepository
}

// NewPositionsHandler builds a handler over repo.
func NewPositionsHandler(repo domain.PositionsRepository) *PositionsHandler {
	return &PositionsHandler{repo: repo}
}

// Register wires the handler's routes onto r.
func (h *PositionsHandler) Register(r gin.IRouter) {
	r.GET("/futures/positions", h.getAll)
}

func (h *PositionsHandler) getAll(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": h.repo.Snapshot()})
}
