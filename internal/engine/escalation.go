package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/escalate"
	"hireline/internal/events"
	"hireline/internal/repo"
)

// CurrentEscalation returns the single requisition whose delay notification
// is outstanding, surfacing the next overdue one when nothing is shown.
// Surfacing flags the requisition delayed (an overlay; its stage is kept) so
// it leaves the overdue set and later scans advance past it.
func (e Engine) CurrentEscalation(ctx context.Context) (*domain.Requisition, error) {
	if id := e.Escalations.Current(); id != "" {
		r, err := e.Repo.GetRequisition(ctx, id)
		if err == nil && r.Delayed {
			return &r, nil
		}
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		// vanished or already justified; fall through to the next one
		e.Escalations.Clear(id)
	}
	reqs, err := e.Repo.ListRequisitions(ctx, repo.RequisitionFilters{})
	if err != nil {
		return nil, err
	}
	now := e.now().UTC()
	q := escalate.Build(reqs, now)
	head, ok := q.Head()
	if !ok {
		return nil, nil
	}
	flagged, err := e.flagDelayed(ctx, head, now)
	if err != nil {
		return nil, err
	}
	e.Escalations.Show(flagged.ID)
	return &flagged, nil
}

func (e Engine) flagDelayed(ctx context.Context, r domain.Requisition, now time.Time) (domain.Requisition, error) {
	r.Delayed = true
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateRequisition(ctx, tx, r); err != nil {
		return r, err
	}
	if err := e.Events.Append(ctx, tx, "delay_flagged", r.ID, "requisition", r.ID, "system", events.Payload{
		"stage":        r.Stage,
		"days_overdue": escalate.DaysOverdue(r.DueDate, now),
	}); err != nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// PendingEscalationCount counts overdue requisitions not yet surfaced. The
// one currently shown is excluded, since surfacing flagged it delayed.
func (e Engine) PendingEscalationCount(ctx context.Context) (int, error) {
	reqs, err := e.Repo.ListRequisitions(ctx, repo.RequisitionFilters{})
	if err != nil {
		return 0, err
	}
	return escalate.Build(reqs, e.now().UTC()).Len(), nil
}

// DismissEscalation closes the current notification without justifying. The
// requisition stays in the awaiting-justification bucket; the next overdue
// one may be surfaced afterwards.
func (e Engine) DismissEscalation(ctx context.Context, actorID string) error {
	id := e.Escalations.Current()
	if id == "" {
		return nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "escalation.dismissed", id, "requisition", id, actorID, events.Payload{}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Escalations.Clear(id)
	return nil
}

// JustificationOptions are parameters for clearing a delayed requisition.
type JustificationOptions struct {
	RequisitionID string
	Reason        string
	NewDueDate    string
	ActorID       string
}

// SubmitJustification records the reason and new deadline for an overdue
// requisition, re-anchors its due date and lifts the delay overlay. Field
// validation failures reject the intent before anything is written.
func (e Engine) SubmitJustification(ctx context.Context, opts JustificationOptions) (domain.Justification, error) {
	if opts.Reason == "" {
		return domain.Justification{}, ValidationError{Field: "reason", Reason: "required"}
	}
	if opts.NewDueDate == "" {
		return domain.Justification{}, ValidationError{Field: "new_due_date", Reason: "required"}
	}
	now := e.now().UTC()
	newDue, err := time.Parse(dateLayout, opts.NewDueDate)
	if err != nil {
		return domain.Justification{}, ValidationError{Field: "new_due_date", Reason: "must be YYYY-MM-DD"}
	}
	if newDue.Before(now.Truncate(24 * time.Hour)) {
		return domain.Justification{}, ValidationError{Field: "new_due_date", Reason: "must not be in the past"}
	}
	r, err := e.Repo.GetRequisition(ctx, opts.RequisitionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Justification{}, DanglingReferenceError{Kind: "requisition", ID: opts.RequisitionID}
		}
		return domain.Justification{}, err
	}
	if !r.Delayed {
		return domain.Justification{}, ValidationError{Field: "requisition_id", Reason: "requisition is not awaiting justification"}
	}
	nowStr := now.Format(time.RFC3339)
	j := domain.Justification{
		ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte("justification|"+r.ID+"|"+nowStr)).String(),
		RequisitionID: r.ID,
		Reason:        opts.Reason,
		NewDueDate:    opts.NewDueDate,
		DaysOverdue:   escalate.DaysOverdue(r.DueDate, now),
		Author:        opts.ActorID,
		CreatedAt:     nowStr,
	}
	due := opts.NewDueDate
	r.DueDate = &due
	r.Delayed = false

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Justification{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertJustification(ctx, tx, j); err != nil {
		return domain.Justification{}, err
	}
	if err := e.Repo.UpdateRequisition(ctx, tx, r); err != nil {
		return domain.Justification{}, err
	}
	if err := e.Events.Append(ctx, tx, "justified_delay", r.ID, "requisition", r.ID, opts.ActorID, events.Payload{
		"reason":       j.Reason,
		"new_due_date": j.NewDueDate,
		"days_overdue": j.DaysOverdue,
	}); err != nil {
		return domain.Justification{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Justification{}, err
	}
	e.Escalations.Clear(r.ID)
	return j, nil
}
