// Package gate models the hire-confirmation dialog as an explicit finite
// state machine, decoupled from rendering. A candidate move into the hired
// stage stays provisional until the dialog completes with a yes answer.
package gate

import "errors"

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseQuestion Phase = "question"
	PhaseSuccess  Phase = "success"
	PhaseBlocked  Phase = "blocked"
)

var ErrNotOpen = errors.New("hire gate not open")

// Dialog tracks one pending hire confirmation for a candidate. The zero
// value is an idle dialog.
type Dialog struct {
	Phase       Phase
	CandidateID string
	FromStage   string
	Position    int
}

// Open starts the question phase for a provisional move into hired.
func Open(candidateID, fromStage string, position int) Dialog {
	return Dialog{
		Phase:       PhaseQuestion,
		CandidateID: candidateID,
		FromStage:   fromStage,
		Position:    position,
	}
}

// Answer resolves the question phase. A yes answer is the only transition
// that commits the move; the caller applies it when commit is true. A no
// answer moves to the blocked phase without applying anything.
func Answer(d Dialog, confirmed bool) (next Dialog, commit bool, err error) {
	if d.Phase != PhaseQuestion {
		return d, false, ErrNotOpen
	}
	if confirmed {
		d.Phase = PhaseSuccess
		return d, true, nil
	}
	d.Phase = PhaseBlocked
	return d, false, nil
}

// Close dismisses the dialog from any phase. Closing never applies the move;
// if the yes branch already committed, the candidate is hired regardless.
func Close(d Dialog) Dialog {
	return Dialog{Phase: PhaseIdle}
}
