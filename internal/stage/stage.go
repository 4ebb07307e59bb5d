// Package stage holds the requisition lifecycle and its transition guards.
package stage

import "fmt"

const (
	Requested   = "requested"
	Registered  = "registered"
	Announced   = "announced"
	InSelection = "in_selection"
	Archived    = "archived"
)

// Order is the happy-path stage sequence, used for board rendering.
var Order = []string{Requested, Registered, Announced, InSelection, Archived}

// GuardViolationError rejects an illegal manual move. Recoverable; the caller
// surfaces it inline and nothing is persisted.
type GuardViolationError struct {
	From   string
	To     string
	Reason string
}

func (e GuardViolationError) Error() string {
	return fmt.Sprintf("manual move %s -> %s refused: %s", e.From, e.To, e.Reason)
}

func Valid(s string) bool {
	switch s {
	case Requested, Registered, Announced, InSelection, Archived:
		return true
	}
	return false
}

func Terminal(s string) bool { return s == Archived }

// protected stages may only be entered through task-triggered transitions.
func protected(s string) bool {
	return s == Requested || s == Registered || s == Announced
}

// EnsureManualMove validates a user-driven drag between stages. Reordering
// within a stage (from == to) is always allowed. Task-triggered moves do not
// go through this check.
func EnsureManualMove(from, to string) error {
	if !Valid(from) {
		return GuardViolationError{From: from, To: to, Reason: "unknown origin stage"}
	}
	if !Valid(to) {
		return GuardViolationError{From: from, To: to, Reason: "unknown target stage"}
	}
	if from == to {
		return nil
	}
	if to == Registered {
		return GuardViolationError{From: from, To: to, Reason: "registration happens through the register-requisition task"}
	}
	if to == Announced {
		return GuardViolationError{From: from, To: to, Reason: "announcement happens through the publish-campaign task"}
	}
	if protected(from) && protected(to) {
		return GuardViolationError{From: from, To: to, Reason: "stage is task-gated"}
	}
	return nil
}

// Escalatable reports whether an overdue requisition in stage s may be pulled
// into the delay overlay. Requisitions already in selection or archived are
// past their deadline's relevance.
func Escalatable(s string) bool {
	return s != InSelection && s != Archived
}

// Candidate sub-pipeline stages. Interview depth is configurable; stages are
// materialized as interview_1..interview_n.

const (
	CandidateApplied  = "applied"
	CandidateApproved = "approved"
	CandidateHired    = "hired"
	CandidateRejected = "rejected"
)

// CandidateStages returns the ordered stage list for n interview rounds.
func CandidateStages(n int) []string {
	if n < 0 {
		n = 0
	}
	stages := []string{CandidateApplied}
	for i := 1; i <= n; i++ {
		stages = append(stages, fmt.Sprintf("interview_%d", i))
	}
	return append(stages, CandidateApproved, CandidateHired, CandidateRejected)
}

// ValidCandidateStage checks s against the stage list for n interview rounds.
func ValidCandidateStage(s string, n int) bool {
	for _, st := range CandidateStages(n) {
		if st == s {
			return true
		}
	}
	return false
}
