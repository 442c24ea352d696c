package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
)

type ResultsHandler struct {
	service        ports.TabulationService
	interval       time.Duration
	originPatterns []string
	l              *zap.Logger
}

func NewResultsHandler(service ports.TabulationService, interval time.Duration, originPatterns []string, l *zap.Logger) *ResultsHandler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ResultsHandler{
		service:        service,
		interval:       interval,
		originPatterns: originPatterns,
		l:              l,
	}
}

// GetResults godoc
// @Summary      Tabulates a poll
// @Description  Open polls give live counts, closed polls final ones. The voter roster is only sent to signed-in callers.
// @Tags         results
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200
// @Failure      400,404,409
// @Router       /polls/{id}/results [get]
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}

	results, err := h.service.Tabulate(r.Context(), CallerFrom(r.Context()), pollID)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

// LiveResults upgrades to a websocket and pushes a fresh tabulation every
// interval. The stream ends after the first final result.
func (h *ResultsHandler) LiveResults(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}
	caller := CallerFrom(r.Context())

	first, err := h.service.Tabulate(r.Context(), caller, pollID)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.l.Warn("failed to accept websocket", zap.Stringer("poll_id", pollID), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	if err := h.stream(ctx, conn, caller, pollID, first); err != nil {
		if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) != -1 {
			return
		}
		h.l.Warn("live results stream ended", zap.Stringer("poll_id", pollID), zap.Error(err))
		conn.Close(websocket.StatusInternalError, "tabulation failed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "poll closed")
}

func (h *ResultsHandler) stream(ctx context.Context, conn *websocket.Conn, caller domain.Caller, pollID uuid.UUID, results *domain.Results) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		if err := wsjson.Write(ctx, conn, results); err != nil {
			return err
		}
		if results.Final {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var err error
		results, err = h.service.Tabulate(ctx, caller, pollID)
		if err != nil {
			return err
		}
	}
}
