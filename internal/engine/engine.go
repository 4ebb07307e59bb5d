package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"hireline/internal/config"
	"hireline/internal/domain"
	"hireline/internal/escalate"
	"hireline/internal/events"
	"hireline/internal/gate"
	"hireline/internal/repo"
	"hireline/internal/stage"
)

const (
	dateLayout = "2006-01-02"
)

// Engine processes pipeline intents sequentially: validate, mutate, record.
// Every accepted transition is written together with its activity entry in
// one transaction.
type Engine struct {
	DB          *sql.DB
	Repo        repo.Repo
	Events      events.Writer
	Config      *config.Config
	Now         func() time.Time
	Escalations *escalate.Session
	gates       *gateTable
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:          db,
		Repo:        repo.Repo{DB: db},
		Events:      events.Writer{DB: db},
		Config:      cfg,
		Now:         time.Now,
		Escalations: &escalate.Session{},
		gates:       newGateTable(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) interviewStages() int {
	if e.Config == nil {
		return 3
	}
	return e.Config.Pipeline.InterviewStages
}

// RequisitionCreateOptions are parameters for opening a requisition.
type RequisitionCreateOptions struct {
	ID      string
	Title   string
	DueDate string
	ActorID string
}

// CreateRequisition opens a hiring request in the requested stage. When no
// due date is given the configured default horizon applies.
func (e Engine) CreateRequisition(ctx context.Context, opts RequisitionCreateOptions) (domain.Requisition, error) {
	if opts.Title == "" {
		return domain.Requisition{}, ValidationError{Field: "title", Reason: "required"}
	}
	now := e.now().UTC()
	due := opts.DueDate
	if due == "" && e.Config != nil && e.Config.Pipeline.DefaultDueDays > 0 {
		due = now.AddDate(0, 0, e.Config.Pipeline.DefaultDueDays).Format(dateLayout)
	}
	if due != "" {
		if _, err := time.Parse(dateLayout, due); err != nil {
			return domain.Requisition{}, ValidationError{Field: "due_date", Reason: "must be YYYY-MM-DD"}
		}
	}
	id := opts.ID
	nowStr := now.Format(time.RFC3339)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("requisition|"+opts.Title+"|"+nowStr)).String()
	}
	r := domain.Requisition{
		ID:        id,
		Title:     opts.Title,
		Stage:     stage.Requested,
		CreatedAt: nowStr,
	}
	if due != "" {
		r.DueDate = &due
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Requisition{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRequisition(ctx, tx, r); err != nil {
		return domain.Requisition{}, fmt.Errorf("insert requisition: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "requisition.created", r.ID, "requisition", r.ID, opts.ActorID, events.Payload{
		"title":    r.Title,
		"stage":    r.Stage,
		"due_date": due,
	}); err != nil {
		return domain.Requisition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Requisition{}, err
	}
	return r, nil
}

// MoveOptions describe a user-driven drag between board columns.
type MoveOptions struct {
	RequisitionID string
	From          string
	To            string
	Position      int
	ActorID       string
}

// MoveResult is the discriminated outcome of a manual move attempt. A guard
// violation is reported in Violation with Accepted false; failures of the
// persistence layer surface as errors instead.
type MoveResult struct {
	Accepted    bool
	Violation   *stage.GuardViolationError
	Requisition domain.Requisition
}

// AttemptMove validates and applies a manual stage move. Task-gated stages
// are refused here; see CompleteTask for the task-triggered path.
func (e Engine) AttemptMove(ctx context.Context, opts MoveOptions) (MoveResult, error) {
	r, err := e.Repo.GetRequisition(ctx, opts.RequisitionID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return MoveResult{}, DanglingReferenceError{Kind: "requisition", ID: opts.RequisitionID}
		}
		return MoveResult{}, err
	}
	from := opts.From
	if from == "" {
		from = r.Stage
	}
	if from != r.Stage {
		v := stage.GuardViolationError{From: from, To: opts.To, Reason: "origin stage is stale"}
		return MoveResult{Violation: &v, Requisition: r}, nil
	}
	if err := stage.EnsureManualMove(from, opts.To); err != nil {
		var v stage.GuardViolationError
		if errors.As(err, &v) {
			return MoveResult{Violation: &v, Requisition: r}, nil
		}
		return MoveResult{}, err
	}
	moved, err := e.applyMove(ctx, r, opts.To, opts.Position, opts.ActorID, "")
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Accepted: true, Requisition: moved}, nil
}

// applyMove mutates stage and position and records the transition. trigger
// is empty for manual drags and holds the task kind for automatic moves.
func (e Engine) applyMove(ctx context.Context, r domain.Requisition, to string, position int, actorID, trigger string) (domain.Requisition, error) {
	from := r.Stage
	nowStr := e.now().UTC().Format(time.RFC3339)
	r.Stage = to
	r.Position = position
	if to == stage.Archived {
		r.ArchivedAt = &nowStr
	} else {
		r.ArchivedAt = nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequisition(ctx, tx, r); err != nil {
		return r, fmt.Errorf("persist stage move: %w", err)
	}
	payload := events.Payload{"from": from, "to": to}
	if trigger != "" {
		payload["trigger"] = trigger
	}
	if err := e.Events.Append(ctx, tx, "requisition.moved", r.ID, "requisition", r.ID, actorID, payload); err != nil {
		return r, err
	}
	if err := tx.Commit(); err != nil {
		return r, err
	}
	return r, nil
}

// DeleteRequisition removes a requisition unless open tasks still reference
// it.
func (e Engine) DeleteRequisition(ctx context.Context, id, actorID string) error {
	if _, err := e.Repo.GetRequisition(ctx, id); err != nil {
		return err
	}
	open, err := e.Repo.CountOpenTasks(ctx, id)
	if err != nil {
		return err
	}
	if open > 0 {
		return ValidationError{Field: "id", Reason: fmt.Sprintf("%d open tasks still reference this requisition", open)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteRequisition(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "requisition.deleted", "", "requisition", id, actorID, events.Payload{}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.Escalations.Clear(id)
	return nil
}

// gateTable holds open hire-confirmation dialogs keyed by candidate.
type gateTable struct {
	mu   sync.Mutex
	open map[string]gate.Dialog
}

func newGateTable() *gateTable {
	return &gateTable{open: map[string]gate.Dialog{}}
}

func (g *gateTable) get(candidateID string) (gate.Dialog, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.open[candidateID]
	return d, ok
}

func (g *gateTable) put(d gate.Dialog) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open[d.CandidateID] = d
}

func (g *gateTable) drop(candidateID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.open, candidateID)
}
