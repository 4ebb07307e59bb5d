package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hireline/internal/domain"
	"hireline/internal/events"
	"hireline/internal/repo"
	"hireline/internal/tasklink"
)

// TaskCreateOptions are parameters for adding a checklist task.
type TaskCreateOptions struct {
	ID            string
	RequisitionID string
	Kind          string
	Title         string
	ActorID       string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "required"}
	}
	if tasklink.Triggers(opts.Kind) && opts.RequisitionID == "" {
		return domain.Task{}, ValidationError{Field: "requisition_id", Reason: "required for kind " + opts.Kind}
	}
	if opts.RequisitionID != "" {
		if _, err := e.Repo.GetRequisition(ctx, opts.RequisitionID); err != nil {
			return domain.Task{}, err
		}
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("task|"+opts.RequisitionID+"|"+opts.Title+"|"+nowStr)).String()
	}
	t := domain.Task{
		ID:        id,
		Kind:      opts.Kind,
		Title:     opts.Title,
		Status:    "todo",
		CreatedAt: nowStr,
	}
	if opts.RequisitionID != "" {
		t.RequisitionID = &opts.RequisitionID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", opts.RequisitionID, "task", t.ID, opts.ActorID, events.Payload{
		"title": t.Title,
		"kind":  t.Kind,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// SetTaskStatus moves a task between the non-terminal checklist columns.
// Completion goes through CompleteTask so linked requisition effects apply.
func (e Engine) SetTaskStatus(ctx context.Context, taskID, status, actorID string) (domain.Task, error) {
	switch status {
	case "todo", "doing", "archived":
	case "done":
		res, err := e.CompleteTask(ctx, CompleteTaskOptions{TaskID: taskID, ActorID: actorID})
		return res.Task, err
	default:
		return domain.Task{}, ValidationError{Field: "status", Reason: "must be one of todo, doing, done, archived"}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	if t.Status == status {
		return t, nil
	}
	from := t.Status
	t.Status = status
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	reqID := ""
	if t.RequisitionID != nil {
		reqID = *t.RequisitionID
	}
	if err := e.Events.Append(ctx, tx, "task.status", reqID, "task", t.ID, actorID, events.Payload{
		"from": from,
		"to":   status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// BriefingSpec carries the hiring brief captured inline while completing a
// registration task.
type BriefingSpec struct {
	Role         string
	Compensation string
	Requirements string
	Headcount    int
}

// CompleteTaskOptions are parameters for finishing a task. Briefing and
// Platforms are honored only by the register-requisition kind.
type CompleteTaskOptions struct {
	TaskID    string
	ActorID   string
	Briefing  *BriefingSpec
	Platforms []string
}

// TaskResult reports whether completing a task triggered a requisition
// transition.
type TaskResult struct {
	Task                     domain.Task
	RequisitionEffectApplied bool
}

// CompleteTask marks a task done and applies its linked requisition effect,
// if any, as a single unit. The requisition mutation is attempted before the
// task status flips so a failed write never leaves a done-but-unlinked task.
// Completing an already-done task is a no-op.
func (e Engine) CompleteTask(ctx context.Context, opts CompleteTaskOptions) (TaskResult, error) {
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return TaskResult{}, err
	}
	if t.Status == "done" {
		return TaskResult{Task: t}, nil
	}
	link, triggers := tasklink.Resolve(tasklink.ParseKind(t.Kind))

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return TaskResult{}, err
	}
	defer tx.Rollback()

	nowStr := e.now().UTC().Format(time.RFC3339)
	effectApplied := false
	if triggers {
		if t.RequisitionID == nil {
			return TaskResult{}, DanglingReferenceError{Kind: "requisition", ID: ""}
		}
		r, err := e.Repo.GetRequisitionTx(ctx, tx, *t.RequisitionID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return TaskResult{}, DanglingReferenceError{Kind: "requisition", ID: *t.RequisitionID}
			}
			return TaskResult{}, err
		}
		from := r.Stage
		r.Stage = link.TargetStage
		if err := e.Repo.UpdateRequisition(ctx, tx, r); err != nil {
			return TaskResult{}, fmt.Errorf("apply requisition effect: %w", err)
		}
		if err := e.Events.Append(ctx, tx, "requisition.moved", r.ID, "requisition", r.ID, opts.ActorID, events.Payload{
			"from":    from,
			"to":      r.Stage,
			"trigger": t.Kind,
		}); err != nil {
			return TaskResult{}, err
		}
		if link.Kind == tasklink.KindRegisterRequisition {
			if err := e.registerRequisition(ctx, tx, r, t, opts, nowStr); err != nil {
				return TaskResult{}, err
			}
		}
		if link.FollowUpKind != tasklink.KindNone {
			follow := domain.Task{
				ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte("task|"+t.ID+"|"+link.FollowUpKind.Tag())).String(),
				RequisitionID: t.RequisitionID,
				Kind:          link.FollowUpKind.Tag(),
				Title:         link.FollowUpTitle,
				Status:        "todo",
				CreatedAt:     nowStr,
			}
			if err := e.Repo.InsertTask(ctx, tx, follow); err != nil {
				return TaskResult{}, fmt.Errorf("create follow-up task: %w", err)
			}
			if err := e.Events.Append(ctx, tx, "task.created", r.ID, "task", follow.ID, opts.ActorID, events.Payload{
				"title": follow.Title,
				"kind":  follow.Kind,
			}); err != nil {
				return TaskResult{}, err
			}
		}
		effectApplied = true
	}

	t.Status = "done"
	t.CompletedAt = &nowStr
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return TaskResult{}, err
	}
	reqID := ""
	if t.RequisitionID != nil {
		reqID = *t.RequisitionID
	}
	if err := e.Events.Append(ctx, tx, "task.completed", reqID, "task", t.ID, opts.ActorID, events.Payload{
		"kind":           t.Kind,
		"effect_applied": effectApplied,
	}); err != nil {
		return TaskResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return TaskResult{}, err
	}
	return TaskResult{Task: t, RequisitionEffectApplied: effectApplied}, nil
}

// registerRequisition persists the briefing captured inline and one campaign
// allocation per platform.
func (e Engine) registerRequisition(ctx context.Context, tx *sql.Tx, r domain.Requisition, t domain.Task, opts CompleteTaskOptions, nowStr string) error {
	spec := opts.Briefing
	if spec == nil {
		spec = &BriefingSpec{Role: r.Title}
	}
	if spec.Role == "" {
		spec.Role = r.Title
	}
	if spec.Headcount <= 0 {
		spec.Headcount = 1
	}
	b := domain.Briefing{
		RequisitionID: r.ID,
		Role:          spec.Role,
		Compensation:  spec.Compensation,
		Requirements:  spec.Requirements,
		Headcount:     spec.Headcount,
		CreatedAt:     nowStr,
		UpdatedAt:     nowStr,
	}
	if err := e.Repo.UpsertBriefing(ctx, tx, b); err != nil {
		return fmt.Errorf("persist briefing: %w", err)
	}
	platforms := opts.Platforms
	if len(platforms) == 0 && e.Config != nil {
		platforms = e.Config.DefaultPlatforms()
	}
	for _, p := range platforms {
		if e.Config != nil && len(e.Config.Platforms) > 0 && !e.Config.HasPlatform(p) {
			return ValidationError{Field: "platforms", Reason: "unknown platform " + p}
		}
		alloc := domain.CampaignAllocation{
			ID:            uuid.NewSHA1(uuid.NameSpaceOID, []byte("allocation|"+r.ID+"|"+p)).String(),
			RequisitionID: r.ID,
			Platform:      p,
			CreatedAt:     nowStr,
		}
		if err := e.Repo.InsertAllocation(ctx, tx, alloc); err != nil {
			return fmt.Errorf("allocate platform %s: %w", p, err)
		}
	}
	return nil
}
