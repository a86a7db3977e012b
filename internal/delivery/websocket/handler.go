// Package websocket pushes the latest movers snapshot and managed
// positions to connected dashboard clients on a fixed polling interval.
package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"screener-backend/internal/domain"
	"screener-backend/internal/obslog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const pushInterval = 5 * time.Second

type pushPayload struct {
	Movers    domain.MoversResult            `json:"movers,omitempty"`
	Positions []domain.ManagedPositionState   `json:"positions"`
}

// Handler upgrades dashboard clients and pushes the latest movers
// result plus managed positions on a fixed interval.
type Handler struct {
	movers    domain.MoversRepository
	positions domain.PositionsRepository
}

// NewHandler builds a Handler over the given repositories.
func NewHandler(movers domain.MoversRepository, positions domain.PositionsRepository) *Handler {
	return &Handler{movers: movers, positions: positions}
}

// Handle upgrades r to a websocket connection and streams snapshots
// until the client disconnects or a write fails.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		obslog.Errorf("websocket upgrade failed err=%v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(h.snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.WriteJSON(h.snapshot()); err != nil {
			return
		}
	}
}

func (h *Handler) snapshot() pushPayload {
	payload := pushPayload{Positions: h.positions.Snapshot()}
	if result, ok := h.movers.Latest(); ok {
		payload.Movers = result
	}
	return payload
}
