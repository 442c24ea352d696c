package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"github.com/vncsmyrnk/ballot/internal/core/ports"
	"go.uber.org/zap"
)

type BallotHandler struct {
	service ports.BallotService
	l       *zap.Logger
}

func NewBallotHandler(service ports.BallotService, l *zap.Logger) *BallotHandler {
	return &BallotHandler{
		service: service,
		l:       l,
	}
}

type castBallotRequest struct {
	Answers    map[string]string `json:"answers"`
	Disclosure domain.Disclosure `json:"disclosure"`
}

// CastBallot godoc
// @Summary      Casts the caller's ballot
// @Description  Takes one answer per question. A member can cast a single ballot per poll.
// @Tags         ballots
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Poll ID"
// @Success      201
// @Failure      400,403,404,409,422
// @Router       /polls/{id}/ballots [post]
func (h *BallotHandler) CastBallot(w http.ResponseWriter, r *http.Request) {
	pollID, ok := pollIDParam(w, r)
	if !ok {
		return
	}

	var req castBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	answers, err := parseAnswers(req.Answers)
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	receipt, err := h.service.Cast(r.Context(), ports.CastInput{
		Caller:     CallerFrom(r.Context()),
		PollID:     pollID,
		Answers:    answers,
		Disclosure: req.Disclosure,
	})
	if err != nil {
		writeDomainError(w, h.l, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func parseAnswers(raw map[string]string) (map[uuid.UUID]uuid.UUID, error) {
	answers := make(map[uuid.UUID]uuid.UUID, len(raw))
	for q, a := range raw {
		questionID, err := uuid.Parse(q)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid question id %q", domain.ErrMalformedBallot, q)
		}
		answerID, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid answer id %q", domain.ErrMalformedBallot, a)
		}
		if _, ok := answers[questionID]; ok {
			return nil, fmt.Errorf("%w: question %s answered twice", domain.ErrMalformedBallot, questionID)
		}
		answers[questionID] = answerID
	}
	return answers, nil
}
