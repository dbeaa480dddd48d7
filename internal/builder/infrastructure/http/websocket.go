package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// streamEvents pushes the current state of a session, then one state per
// change, until the client goes away or the session is deleted.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	initial, updates, cancel, err := h.service.Subscribe(r.Context(), id)
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session_id", id, "err", err)
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead discards their frames and cancels ctx
	// once the connection closes.
	ctx := conn.CloseRead(r.Context())
	h.log.Debug("subscriber connected", "session_id", id)

	if err := writeState(ctx, conn, initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("subscriber disconnected", "session_id", id)
			return
		case st, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := writeState(ctx, conn, st); err != nil {
				h.log.Debug("websocket write failed", "session_id", id, "err", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return
			}
			// A live subscriber keeps its session from expiring.
			if _, err := h.service.State(ctx, id); errors.Is(err, application.ErrSessionNotFound) {
				_ = conn.Close(websocket.StatusGoingAway, "session closed")
				return
			} else if err != nil {
				h.log.Warn("session touch failed", "session_id", id, "err", err)
			}
		}
	}
}

func writeState(ctx context.Context, conn *websocket.Conn, st domain.OrderState) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(writeCtx, conn, st)
}
