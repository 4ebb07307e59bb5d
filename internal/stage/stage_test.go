package stage_test

import (
	"errors"
	"testing"

	"hireline/internal/stage"
)

func TestManualMoveGuards(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{stage.Requested, stage.Requested, true},
		{stage.InSelection, stage.Archived, true},
		{stage.Archived, stage.InSelection, true},
		{stage.Requested, stage.Archived, true},
		{stage.Announced, stage.InSelection, true},
		{stage.Requested, stage.Registered, false},
		{stage.InSelection, stage.Registered, false},
		{stage.Registered, stage.Announced, false},
		{stage.InSelection, stage.Announced, false},
		{stage.Requested, stage.Announced, false},
		{stage.Registered, stage.Requested, false},
		{stage.Announced, stage.Requested, false},
		{stage.Requested, "bogus", false},
		{"bogus", stage.Requested, false},
	}
	for _, c := range cases {
		err := stage.EnsureManualMove(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s -> %s: unexpected %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s -> %s: expected guard violation", c.from, c.to)
		}
	}
}

func TestGuardViolationCarriesStages(t *testing.T) {
	err := stage.EnsureManualMove(stage.Requested, stage.Registered)
	var gv stage.GuardViolationError
	if !errors.As(err, &gv) {
		t.Fatalf("expected GuardViolationError, got %v", err)
	}
	if gv.From != stage.Requested || gv.To != stage.Registered || gv.Reason == "" {
		t.Fatalf("incomplete violation: %+v", gv)
	}
}

func TestEscalatable(t *testing.T) {
	for _, s := range []string{stage.Requested, stage.Registered, stage.Announced} {
		if !stage.Escalatable(s) {
			t.Errorf("%s should be escalatable", s)
		}
	}
	for _, s := range []string{stage.InSelection, stage.Archived} {
		if stage.Escalatable(s) {
			t.Errorf("%s should not be escalatable", s)
		}
	}
}

func TestCandidateStages(t *testing.T) {
	got := stage.CandidateStages(2)
	want := []string{"applied", "interview_1", "interview_2", "approved", "hired", "rejected"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage %d: got %s want %s", i, got[i], want[i])
		}
	}
	if !stage.ValidCandidateStage("interview_3", 3) {
		t.Fatalf("interview_3 should be valid with 3 rounds")
	}
	if stage.ValidCandidateStage("interview_3", 2) {
		t.Fatalf("interview_3 should be invalid with 2 rounds")
	}
}
