package domain

type ReasonCode string

const (
	ReasonNotFound          ReasonCode = "not_found"
	ReasonNotYetOpen        ReasonCode = "not_yet_open"
	ReasonAlreadyClosed     ReasonCode = "already_closed"
	ReasonBeforeStart       ReasonCode = "before_start"
	ReasonAfterEnd          ReasonCode = "after_end"
	ReasonNotAuthenticated  ReasonCode = "not_authenticated"
	ReasonIncompleteProfile ReasonCode = "incomplete_profile"
	ReasonNotInTargetGroup  ReasonCode = "not_in_target_group"
	ReasonAlreadyVoted      ReasonCode = "already_voted"
)

type Verdict struct {
	Eligible bool       `json:"eligible"`
	Reason   ReasonCode `json:"reason,omitempty"`
	Field    string     `json:"field,omitempty"`
}

func Eligible() Verdict {
	return Verdict{Eligible: true}
}

func Ineligible(reason ReasonCode) Verdict {
	return Verdict{Reason: reason}
}

// Err converts a negative verdict into an *EligibilityError.
func (v Verdict) Err() error {
	if v.Eligible {
		return nil
	}
	return &EligibilityError{Reason: v.Reason, Field: v.Field}
}
