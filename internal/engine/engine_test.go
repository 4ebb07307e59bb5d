package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/gate"
	"hireline/internal/migrate"
	"hireline/internal/repo"
	"hireline/internal/stage"
	"hireline/internal/tasklink"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func TestCreateRequisitionDefaults(t *testing.T) {
	env := newTestEnv(t)
	r, err := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Backend engineer", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Stage != stage.Requested {
		t.Fatalf("new requisitions start requested, got %s", r.Stage)
	}
	if r.DueDate == nil || *r.DueDate != "2024-03-29" {
		t.Fatalf("expected default due horizon, got %v", r.DueDate)
	}
	if r.Delayed {
		t.Fatalf("new requisitions are not delayed")
	}
	_, err = env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{ActorID: "tester"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for empty title, got %v", err)
	}
}

func TestManualMoveGuards(t *testing.T) {
	env := newTestEnv(t)
	r, err := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Designer", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	// dragging into a task-gated stage is refused, not an error
	res, err := env.Engine.AttemptMove(env.Ctx, engine.MoveOptions{RequisitionID: r.ID, To: stage.Registered, ActorID: "tester"})
	if err != nil {
		t.Fatalf("guard violations are results, not errors: %v", err)
	}
	if res.Accepted || res.Violation == nil {
		t.Fatalf("expected rejected move, got %+v", res)
	}
	got, err := env.Engine.Repo.GetRequisition(env.Ctx, r.ID)
	if err != nil || got.Stage != stage.Requested {
		t.Fatalf("rejected move must not persist, stage=%s err=%v", got.Stage, err)
	}
	// archiving from any stage is allowed
	res, err = env.Engine.AttemptMove(env.Ctx, engine.MoveOptions{RequisitionID: r.ID, To: stage.Archived, ActorID: "tester"})
	if err != nil || !res.Accepted {
		t.Fatalf("archive: %v %+v", err, res)
	}
	if res.Requisition.ArchivedAt == nil {
		t.Fatalf("expected archived_at stamp")
	}
	// and back out again
	res, err = env.Engine.AttemptMove(env.Ctx, engine.MoveOptions{RequisitionID: r.ID, To: stage.InSelection, ActorID: "tester"})
	if err != nil || !res.Accepted {
		t.Fatalf("unarchive: %v %+v", err, res)
	}
	if res.Requisition.ArchivedAt != nil {
		t.Fatalf("leaving archived clears the stamp")
	}
}

func TestMoveUnknownRequisition(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AttemptMove(env.Ctx, engine.MoveOptions{RequisitionID: "ghost", To: stage.Archived, ActorID: "tester"})
	var dr engine.DanglingReferenceError
	if !errors.As(err, &dr) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
}

func TestRegisterTaskDrivesRequisition(t *testing.T) {
	env := newTestEnv(t)
	r, err := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Data analyst", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		RequisitionID: r.ID,
		Kind:          tasklink.TagRegisterRequisition,
		Title:         "Register requisition",
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.CompleteTask(env.Ctx, engine.CompleteTaskOptions{
		TaskID:  task.ID,
		ActorID: "tester",
		Briefing: &engine.BriefingSpec{
			Role:         "Data analyst",
			Compensation: "55-65k",
			Requirements: "SQL, dbt",
			Headcount:    2,
		},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !res.RequisitionEffectApplied || res.Task.Status != "done" {
		t.Fatalf("unexpected result %+v", res)
	}
	got, _ := env.Engine.Repo.GetRequisition(env.Ctx, r.ID)
	if got.Stage != stage.Registered {
		t.Fatalf("expected registered, got %s", got.Stage)
	}
	b, err := env.Engine.Repo.GetBriefing(env.Ctx, r.ID)
	if err != nil || b.Headcount != 2 {
		t.Fatalf("briefing: %+v %v", b, err)
	}
	allocs, err := env.Engine.Repo.ListAllocations(env.Ctx, r.ID)
	if err != nil || len(allocs) == 0 {
		t.Fatalf("expected default platform allocations, got %d %v", len(allocs), err)
	}
	// registration chains a publish-campaign follow-up
	followUps, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{RequisitionID: r.ID, Kind: tasklink.TagPublishCampaign})
	if err != nil || len(followUps) != 1 {
		t.Fatalf("expected one publish follow-up, got %d %v", len(followUps), err)
	}
	// completing the follow-up moves the board forward again
	res, err = env.Engine.CompleteTask(env.Ctx, engine.CompleteTaskOptions{TaskID: followUps[0].ID, ActorID: "tester"})
	if err != nil || !res.RequisitionEffectApplied {
		t.Fatalf("publish: %v %+v", err, res)
	}
	got, _ = env.Engine.Repo.GetRequisition(env.Ctx, r.ID)
	if got.Stage != stage.InSelection {
		t.Fatalf("expected in_selection, got %s", got.Stage)
	}
}

func TestCompleteTaskIdempotent(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "QA", ActorID: "tester"})
	task, _ := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		RequisitionID: r.ID, Kind: tasklink.TagRegisterRequisition, Title: "Register", ActorID: "tester",
	})
	if _, err := env.Engine.CompleteTask(env.Ctx, engine.CompleteTaskOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.CompleteTask(env.Ctx, engine.CompleteTaskOptions{TaskID: task.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if res.RequisitionEffectApplied {
		t.Fatalf("completing a done task must not re-apply the effect")
	}
	followUps, _ := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{RequisitionID: r.ID, Kind: tasklink.TagPublishCampaign})
	if len(followUps) != 1 {
		t.Fatalf("follow-up duplicated: %d", len(followUps))
	}
}

func TestTriggerTaskRequiresRequisition(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Kind: tasklink.TagRegisterRequisition, Title: "Register", ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	// plain tasks can float free of any requisition
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Weekly sync", ActorID: "tester"}); err != nil {
		t.Fatalf("free task: %v", err)
	}
}

func TestDeleteRequisitionGuardedByOpenTasks(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Ops", ActorID: "tester"})
	task, _ := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{RequisitionID: r.ID, Title: "Call manager", ActorID: "tester"})
	if err := env.Engine.DeleteRequisition(env.Ctx, r.ID, "tester"); err == nil {
		t.Fatalf("expected open-task guard")
	}
	if _, err := env.Engine.SetTaskStatus(env.Ctx, task.ID, "archived", "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteRequisition(env.Ctx, r.ID, "tester"); err != nil {
		t.Fatalf("delete after archive: %v", err)
	}
}

func TestEscalationSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	older, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Old", DueDate: "2024-03-01", ActorID: "tester"})
	newer, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "New", DueDate: "2024-03-10", ActorID: "tester"})
	_ = newer

	cur, err := env.Engine.CurrentEscalation(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cur == nil || cur.ID != older.ID {
		t.Fatalf("oldest due date surfaces first, got %+v", cur)
	}
	if !cur.Delayed {
		t.Fatalf("surfacing flags the requisition delayed")
	}
	// the shown one blocks the queue
	again, err := env.Engine.CurrentEscalation(env.Ctx)
	if err != nil || again == nil || again.ID != older.ID {
		t.Fatalf("expected same notification while unresolved, got %+v %v", again, err)
	}
	count, err := env.Engine.PendingEscalationCount(env.Ctx)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 pending behind the shown one, got %d %v", count, err)
	}
	// dismissing keeps it delayed and lets the next surface
	if err := env.Engine.DismissEscalation(env.Ctx, "tester"); err != nil {
		t.Fatal(err)
	}
	got, _ := env.Engine.Repo.GetRequisition(env.Ctx, older.ID)
	if !got.Delayed {
		t.Fatalf("dismissal must not lift the delay overlay")
	}
	next, err := env.Engine.CurrentEscalation(env.Ctx)
	if err != nil || next == nil || next.ID != newer.ID {
		t.Fatalf("expected next overdue requisition, got %+v %v", next, err)
	}
}

func TestJustificationClearsDelay(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Late", DueDate: "2024-03-10", ActorID: "tester"})
	if _, err := env.Engine.CurrentEscalation(env.Ctx); err != nil {
		t.Fatal(err)
	}
	j, err := env.Engine.SubmitJustification(env.Ctx, engine.JustificationOptions{
		RequisitionID: r.ID,
		Reason:        "budget approval slipped",
		NewDueDate:    "2024-04-01",
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("justify: %v", err)
	}
	if j.DaysOverdue != 5 {
		t.Fatalf("expected 5 days overdue, got %d", j.DaysOverdue)
	}
	got, _ := env.Engine.Repo.GetRequisition(env.Ctx, r.ID)
	if got.Delayed || got.DueDate == nil || *got.DueDate != "2024-04-01" {
		t.Fatalf("justification must lift the delay and re-anchor: %+v", got)
	}
	cur, err := env.Engine.CurrentEscalation(env.Ctx)
	if err != nil || cur != nil {
		t.Fatalf("nothing left to escalate, got %+v %v", cur, err)
	}
}

func TestJustificationValidation(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Late", DueDate: "2024-03-10", ActorID: "tester"})
	if _, err := env.Engine.CurrentEscalation(env.Ctx); err != nil {
		t.Fatal(err)
	}
	cases := []engine.JustificationOptions{
		{RequisitionID: r.ID, NewDueDate: "2024-04-01"}, // no reason
		{RequisitionID: r.ID, Reason: "x"}, // no date
		{RequisitionID: r.ID, Reason: "x", NewDueDate: "2024-01-01"}, // past
		{RequisitionID: r.ID, Reason: "x", NewDueDate: "not-a-date"}, // malformed
	}
	for i, opts := range cases {
		opts.ActorID = "tester"
		_, err := env.Engine.SubmitJustification(env.Ctx, opts)
		var ve engine.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
	got, _ := env.Engine.Repo.GetRequisition(env.Ctx, r.ID)
	if !got.Delayed {
		t.Fatalf("rejected justifications must leave the delay in place")
	}
}

func TestJustificationRequiresDelay(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Fine", ActorID: "tester"})
	_, err := env.Engine.SubmitJustification(env.Ctx, engine.JustificationOptions{
		RequisitionID: r.ID, Reason: "x", NewDueDate: "2024-04-01", ActorID: "tester",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHireGate(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Team lead", ActorID: "tester"})
	c, err := env.Engine.AddCandidate(env.Ctx, engine.CandidateCreateOptions{RequisitionID: r.ID, Name: "Alex Kim", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Stage != stage.CandidateApplied {
		t.Fatalf("candidates start applied, got %s", c.Stage)
	}
	// ordinary moves apply directly
	res, err := env.Engine.AttemptCandidateMove(env.Ctx, engine.CandidateMoveOptions{CandidateID: c.ID, To: "interview_1", ActorID: "tester"})
	if err != nil || !res.Applied {
		t.Fatalf("interview move: %v %+v", err, res)
	}
	// hired opens the confirmation dialog instead of moving
	res, err = env.Engine.AttemptCandidateMove(env.Ctx, engine.CandidateMoveOptions{CandidateID: c.ID, To: stage.CandidateHired, ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || res.Gate == nil || res.Gate.Phase != gate.PhaseQuestion {
		t.Fatalf("expected held move with open question, got %+v", res)
	}
	got, _ := env.Engine.Repo.GetCandidate(env.Ctx, c.ID)
	if got.Stage != "interview_1" {
		t.Fatalf("candidate must not move before confirmation, got %s", got.Stage)
	}
	// declining blocks without moving
	d, err := env.Engine.ConfirmHire(env.Ctx, c.ID, false, "tester")
	if err != nil || d.Phase != gate.PhaseBlocked {
		t.Fatalf("decline: %v %+v", err, d)
	}
	got, _ = env.Engine.Repo.GetCandidate(env.Ctx, c.ID)
	if got.Stage != "interview_1" {
		t.Fatalf("declined hire must not move the candidate")
	}
	// a blocked dialog no longer answers
	if _, err := env.Engine.ConfirmHire(env.Ctx, c.ID, true, "tester"); !errors.Is(err, gate.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	env.Engine.CloseHireGate(c.ID)
	if p := env.Engine.HireGatePhase(c.ID); p != gate.PhaseIdle {
		t.Fatalf("expected idle after close, got %s", p)
	}
	// second attempt, confirmed
	if _, err := env.Engine.AttemptCandidateMove(env.Ctx, engine.CandidateMoveOptions{CandidateID: c.ID, To: stage.CandidateHired, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	d, err = env.Engine.ConfirmHire(env.Ctx, c.ID, true, "tester")
	if err != nil || d.Phase != gate.PhaseSuccess {
		t.Fatalf("confirm: %v %+v", err, d)
	}
	got, _ = env.Engine.Repo.GetCandidate(env.Ctx, c.ID)
	if got.Stage != stage.CandidateHired {
		t.Fatalf("expected hired, got %s", got.Stage)
	}
}

func TestCandidateStageValidation(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "PM", ActorID: "tester"})
	c, _ := env.Engine.AddCandidate(env.Ctx, engine.CandidateCreateOptions{RequisitionID: r.ID, Name: "Sam", ActorID: "tester"})
	_, err := env.Engine.AttemptCandidateMove(env.Ctx, engine.CandidateMoveOptions{CandidateID: c.ID, To: "interview_9", ActorID: "tester"})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = env.Engine.AddCandidate(env.Ctx, engine.CandidateCreateOptions{RequisitionID: "ghost", Name: "Sam", ActorID: "tester"})
	var dr engine.DanglingReferenceError
	if !errors.As(err, &dr) {
		t.Fatalf("expected dangling reference, got %v", err)
	}
}

func TestActivityLogAppendOnly(t *testing.T) {
	env := newTestEnv(t)
	r, _ := env.Engine.CreateRequisition(env.Ctx, engine.RequisitionCreateOptions{Title: "Logged", ActorID: "tester"})
	task, _ := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		RequisitionID: r.ID, Kind: tasklink.TagRegisterRequisition, Title: "Register", ActorID: "tester",
	})
	_, _ = env.Engine.CompleteTask(env.Ctx, engine.CompleteTaskOptions{TaskID: task.ID, ActorID: "tester"})
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT action FROM activity WHERE requisition_id=? ORDER BY id`, r.ID)
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	defer rows.Close()
	var actions []string
	for rows.Next() {
		var a string
		rows.Scan(&a)
		actions = append(actions, a)
	}
	want := map[string]bool{"requisition.created": false, "task.created": false, "requisition.moved": false, "task.completed": false}
	for _, a := range actions {
		if _, ok := want[a]; ok {
			want[a] = true
		}
	}
	for a, seen := range want {
		if !seen {
			t.Errorf("missing %s in %v", a, actions)
		}
	}
}
