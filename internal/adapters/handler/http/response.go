package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vncsmyrnk/ballot/internal/core/domain"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

// writeDomainError maps an error returned by the core to its HTTP response.
// Anything unrecognised is logged and reported as a 500.
func writeDomainError(w http.ResponseWriter, l *zap.Logger, err error) {
	var eligibilityErr *domain.EligibilityError

	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		writeError(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case errors.Is(err, domain.ErrInvalidPollID):
		writeError(w, http.StatusBadRequest, errorResponse{Error: "invalid_poll_id"})
	case errors.As(err, &eligibilityErr):
		status := http.StatusForbidden
		if eligibilityErr.Reason == domain.ReasonAlreadyVoted {
			status = http.StatusConflict
		}
		writeError(w, status, errorResponse{
			Error:  "not_eligible",
			Reason: string(eligibilityErr.Reason),
			Field:  eligibilityErr.Field,
		})
	case errors.Is(err, domain.ErrAlreadyVoted):
		writeError(w, http.StatusConflict, errorResponse{Error: "already_voted"})
	case errors.Is(err, domain.ErrMalformedBallot):
		writeError(w, http.StatusUnprocessableEntity, errorResponse{Error: "malformed_ballot", Message: err.Error()})
	case errors.Is(err, domain.ErrPollNotOpen):
		writeError(w, http.StatusForbidden, errorResponse{Error: "poll_not_open"})
	case errors.Is(err, domain.ErrResultsUnavailable):
		writeError(w, http.StatusConflict, errorResponse{Error: "results_unavailable"})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, errorResponse{Error: "invalid_transition", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidPoll):
		writeError(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid_poll", Message: err.Error()})
	default:
		l.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
	}
}
