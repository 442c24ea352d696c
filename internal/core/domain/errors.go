package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPollNotFound       = errors.New("poll not found")
	ErrInvalidPollID      = errors.New("invalid poll id")
	ErrInvalidPoll        = errors.New("invalid poll")
	ErrNotEligible        = errors.New("member is not eligible to vote")
	ErrAlreadyVoted       = errors.New("member has already voted")
	ErrMalformedBallot    = errors.New("malformed ballot")
	ErrPollNotOpen        = errors.New("poll is not open for voting")
	ErrInvalidTransition  = errors.New("invalid poll status transition")
	ErrResultsUnavailable = errors.New("results are not available for a draft poll")
	ErrMemberNotFound     = errors.New("member not found")
)

// EligibilityError reports why a member may not cast a ballot right now.
type EligibilityError struct {
	Reason ReasonCode
	Field  string
}

func (e *EligibilityError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", ErrNotEligible, e.Reason, e.Field)
	}
	return fmt.Sprintf("%s: %s", ErrNotEligible, e.Reason)
}

func (e *EligibilityError) Unwrap() error {
	return ErrNotEligible
}

// ReasonOf extracts the eligibility reason carried by err, if any.
func ReasonOf(err error) (ReasonCode, bool) {
	var eligibilityErr *EligibilityError
	if errors.As(err, &eligibilityErr) {
		return eligibilityErr.Reason, true
	}
	return "", false
}

// HasBallot reports whether err means a ballot already exists for the member,
// either seen by the eligibility pre-check or lost at write time.
func HasBallot(err error) bool {
	if errors.Is(err, ErrAlreadyVoted) {
		return true
	}
	reason, ok := ReasonOf(err)
	return ok && reason == ReasonAlreadyVoted
}
