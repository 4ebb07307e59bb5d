package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/gate"
	"hireline/internal/repo"
	"hireline/internal/stage"
)

// CandidateCreateOptions are parameters for AddCandidate.
type CandidateCreateOptions struct {
	ID            string
	RequisitionID string
	Name          string
	Position      int
	ActorID       string
}

// AddCandidate attaches a new candidate to a requisition, starting in the
// applied stage.
func (e Engine) AddCandidate(ctx context.Context, opts CandidateCreateOptions) (domain.Candidate, error) {
	if opts.Name == "" {
		return domain.Candidate{}, ValidationError{Field: "name", Reason: "required"}
	}
	r, err := e.Repo.GetRequisition(ctx, opts.RequisitionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Candidate{}, DanglingReferenceError{Kind: "requisition", ID: opts.RequisitionID}
		}
		return domain.Candidate{}, err
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("candidate|"+r.ID+"|"+opts.Name+"|"+nowStr)).String()
	}
	c := domain.Candidate{
		ID:            id,
		RequisitionID: r.ID,
		Name:          opts.Name,
		Stage:         stage.CandidateApplied,
		Position:      opts.Position,
		CreatedAt:     nowStr,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCandidate(ctx, tx, c); err != nil {
		return domain.Candidate{}, err
	}
	if err := e.Events.Append(ctx, tx, "candidate.created", r.ID, "candidate", c.ID, opts.ActorID, events.Payload{
		"name": c.Name,
	}); err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// CandidateMoveOptions are parameters for AttemptCandidateMove.
type CandidateMoveOptions struct {
	CandidateID string
	To          string
	Position    int
	ActorID     string
}

// CandidateMoveResult reports what a candidate move attempt did. When the
// target is the hired stage the move is held behind a confirmation dialog
// and Gate carries its state; Applied stays false until ConfirmHire.
type CandidateMoveResult struct {
	Applied   bool
	Gate      *gate.Dialog
	Candidate domain.Candidate
}

// AttemptCandidateMove moves a candidate between stages of its requisition's
// selection pipeline. Moving into hired opens a confirmation dialog instead
// of writing anything; every other target stage is applied directly.
func (e Engine) AttemptCandidateMove(ctx context.Context, opts CandidateMoveOptions) (CandidateMoveResult, error) {
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CandidateMoveResult{}, DanglingReferenceError{Kind: "candidate", ID: opts.CandidateID}
		}
		return CandidateMoveResult{}, err
	}
	if !stage.ValidCandidateStage(opts.To, e.interviewStages()) {
		return CandidateMoveResult{}, ValidationError{Field: "to", Reason: "unknown candidate stage"}
	}
	if opts.To == stage.CandidateHired {
		d := gate.Open(c.ID, c.Stage, opts.Position)
		e.gates.put(d)
		return CandidateMoveResult{Applied: false, Gate: &d, Candidate: c}, nil
	}
	from := c.Stage
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CandidateMoveResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCandidateStage(ctx, tx, c.ID, opts.To, opts.Position); err != nil {
		return CandidateMoveResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "candidate.moved", c.RequisitionID, "candidate", c.ID, opts.ActorID, events.Payload{
		"from": from,
		"to":   opts.To,
	}); err != nil {
		return CandidateMoveResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CandidateMoveResult{}, err
	}
	c.Stage = opts.To
	c.Position = opts.Position
	return CandidateMoveResult{Applied: true, Candidate: c}, nil
}

// ConfirmHire answers the open hire dialog for a candidate. A yes commits
// the move to hired inside a transaction; the dialog only advances to its
// success phase once that commit lands, so a storage failure leaves the
// question open. A no blocks the dialog with the candidate unmoved.
func (e Engine) ConfirmHire(ctx context.Context, candidateID string, confirmed bool, actorID string) (gate.Dialog, error) {
	d, ok := e.gates.get(candidateID)
	if !ok {
		return gate.Dialog{}, gate.ErrNotOpen
	}
	next, commit, err := gate.Answer(d, confirmed)
	if err != nil {
		return d, err
	}
	if !commit {
		e.gates.put(next)
		return next, nil
	}
	c, err := e.Repo.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return d, DanglingReferenceError{Kind: "candidate", ID: candidateID}
		}
		return d, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCandidateStage(ctx, tx, c.ID, stage.CandidateHired, d.Position); err != nil {
		return d, err
	}
	if err := e.Events.Append(ctx, tx, "candidate.hired", c.RequisitionID, "candidate", c.ID, actorID, events.Payload{
		"from": d.FromStage,
	}); err != nil {
		return d, err
	}
	if err := tx.Commit(); err != nil {
		return d, err
	}
	e.gates.put(next)
	return next, nil
}

// CloseHireGate dismisses whatever dialog is open for the candidate.
func (e Engine) CloseHireGate(candidateID string) {
	e.gates.drop(candidateID)
}

// HireGatePhase reports the dialog phase for a candidate, or idle when none
// is open.
func (e Engine) HireGatePhase(candidateID string) gate.Phase {
	d, ok := e.gates.get(candidateID)
	if !ok {
		return gate.PhaseIdle
	}
	return d.Phase
}
