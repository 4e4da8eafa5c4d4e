package resolver

import "time"

// Outcome is the result class of resolving a token.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeDisabled
	OutcomeNotYetAvailable
	OutcomePasswordRequired
	OutcomeExpired
	OutcomeExhausted
	OutcomeRedirect
	// OutcomeGateFailed means the atomic resolve rejected a link the snapshot considered usable.
	OutcomeGateFailed
	// OutcomeUnavailable means the store could not be reached in time.
	OutcomeUnavailable
)

var outcomeNames = map[Outcome]string{
	OutcomeNotFound:         "not_found",
	OutcomeDisabled:         "disabled",
	OutcomeNotYetAvailable:  "not_yet_available",
	OutcomePasswordRequired: "password_required",
	OutcomeExpired:          "expired",
	OutcomeExhausted:        "exhausted",
	OutcomeRedirect:         "redirect",
	OutcomeGateFailed:       "gate_failed",
	OutcomeUnavailable:      "unavailable",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Resolution is the decision for a single request.
type Resolution struct {
	Outcome Outcome
	// TargetURL is set for OutcomeRedirect.
	TargetURL string
	// Until is set for OutcomeNotYetAvailable.
	Until time.Time
	// WrongAttempt is set for OutcomePasswordRequired when a password was supplied and rejected.
	WrongAttempt bool
}

// Request carries the per-request inputs of the decision.
type Request struct {
	Now time.Time
	// Password is the plaintext attempt; empty means none was supplied.
	Password string
	// Prefetch marks speculative requests that must not count as visits.
	Prefetch bool
}

func redirect(target string) Resolution {
	return Resolution{Outcome: OutcomeRedirect, TargetURL: target}
}

func outcome(o Outcome) Resolution {
	return Resolution{Outcome: o}
}
