package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
)

type PollHandler struct {
	service     ports.PollService
	eligibility ports.EligibilityService
	l           *zap.Logger
}

func NewPollHandler(service ports.PollService, eligibility ports.EligibilityService, l *zap.Logger) *PollHandler {
	return &PollHandler{
		service:     service,
		eligibility: eligibility,
		l:           l,
	}
}

// GetPoll godoc
// @Summary      Gets a poll
// @Tags         polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200
// @Failure      400,404
// @Router       /polls/{id} [get]
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.service.GetPoll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

// Eligibility godoc
// @Summary      Tells the caller whether they may vote on a poll
// @Description  Always answers 200 with a verdict; the reason explains a negative one.
// @Tags         polls
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      200
// @Failure      400,404
// @Router       /polls/{id}/eligibility [get]
func (h *PollHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}

	verdict, err := h.eligibility.Evaluate(r.Context(), CallerFrom(r.Context()), pollID)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}
	if verdict.Reason == domain.ReasonNotFound {
		writeError(w, http.StatusNotFound, errorResponse{Error: "not_found"})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

func (h *PollHandler) OpenPoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}

	poll, err := h.service.Open(r.Context(), pollID)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

func (h *PollHandler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}

	poll, err := h.service.Close(r.Context(), pollID)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	writeJSON(w, http.StatusOK, poll)
}

func pollIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	pollID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid_poll_id"})
		return uuid.Nil, false
	}
	return pollID, true
}
