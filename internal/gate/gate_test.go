package gate_test

import (
	"testing"

	"hireline/internal/gate"
)

func TestConfirmAdvancesToSuccess(t *testing.T) {
	d := gate.Open("cand-1", "approved", 0)
	if d.Phase != gate.PhaseQuestion {
		t.Fatalf("expected question, got %s", d.Phase)
	}
	next, commit, err := gate.Answer(d, true)
	if err != nil {
		t.Fatal(err)
	}
	if !commit || next.Phase != gate.PhaseSuccess {
		t.Fatalf("expected committed success, got commit=%v phase=%s", commit, next.Phase)
	}
}

func TestDeclineBlocks(t *testing.T) {
	d := gate.Open("cand-1", "approved", 0)
	next, commit, err := gate.Answer(d, false)
	if err != nil {
		t.Fatal(err)
	}
	if commit || next.Phase != gate.PhaseBlocked {
		t.Fatalf("expected blocked without commit, got commit=%v phase=%s", commit, next.Phase)
	}
}

func TestAnswerRequiresOpenQuestion(t *testing.T) {
	d := gate.Open("cand-1", "approved", 0)
	d, _, _ = gate.Answer(d, false)
	if _, _, err := gate.Answer(d, true); err != gate.ErrNotOpen {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestCloseResetsToIdle(t *testing.T) {
	d := gate.Open("cand-1", "approved", 0)
	d, _, _ = gate.Answer(d, true)
	if got := gate.Close(d); got.Phase != gate.PhaseIdle {
		t.Fatalf("expected idle, got %s", got.Phase)
	}
}
