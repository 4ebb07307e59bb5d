package escalate_test

import (
	"testing"
	"time"

	"hireline/internal/domain"
	"hireline/internal/escalate"
	"hireline/internal/stage"
)

var now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func req(id, st, due string, delayed bool) domain.Requisition {
	r := domain.Requisition{ID: id, Stage: st, Delayed: delayed}
	if due != "" {
		r.DueDate = &due
	}
	return r
}

func TestOverdue(t *testing.T) {
	past := "2024-03-14"
	today := "2024-03-15"
	future := "2024-03-20"
	if !escalate.Overdue(&past, now) {
		t.Fatal("yesterday is overdue")
	}
	if escalate.Overdue(&today, now) {
		t.Fatal("due today is not overdue")
	}
	if escalate.Overdue(&future, now) || escalate.Overdue(nil, now) {
		t.Fatal("future and absent dates are not overdue")
	}
}

func TestDaysOverdueClamped(t *testing.T) {
	past := "2024-03-10"
	if d := escalate.DaysOverdue(&past, now); d != 5 {
		t.Fatalf("got %d", d)
	}
	future := "2024-03-20"
	if d := escalate.DaysOverdue(&future, now); d != 0 {
		t.Fatalf("future dates clamp to zero, got %d", d)
	}
	if d := escalate.DaysOverdue(nil, now); d != 0 {
		t.Fatalf("absent dates clamp to zero, got %d", d)
	}
}

func TestEligible(t *testing.T) {
	if !escalate.Eligible(req("a", stage.Requested, "2024-03-01", false), now) {
		t.Fatal("overdue requested requisition is eligible")
	}
	if escalate.Eligible(req("a", stage.Requested, "2024-03-01", true), now) {
		t.Fatal("delayed requisitions are already flagged")
	}
	if escalate.Eligible(req("a", stage.InSelection, "2024-03-01", false), now) {
		t.Fatal("in_selection never escalates")
	}
	if escalate.Eligible(req("a", stage.Archived, "2024-03-01", false), now) {
		t.Fatal("archived never escalates")
	}
	if escalate.Eligible(req("a", stage.Requested, "2024-04-01", false), now) {
		t.Fatal("not yet due")
	}
}

func TestQueueOrder(t *testing.T) {
	q := escalate.Build([]domain.Requisition{
		req("b", stage.Requested, "2024-03-10", false),
		req("a", stage.Registered, "2024-03-01", false),
		req("c", stage.Announced, "2024-03-10", false),
		req("d", stage.InSelection, "2024-03-01", false),
		req("e", stage.Requested, "2024-03-01", true),
	}, now)
	if q.Len() != 3 {
		t.Fatalf("expected 3 eligible, got %d", q.Len())
	}
	head, ok := q.Head()
	if !ok || head.ID != "a" {
		t.Fatalf("oldest due date first, got %+v", head)
	}
}

func TestSessionSingleFlight(t *testing.T) {
	var s escalate.Session
	if s.Current() != "" {
		t.Fatal("fresh session shows nothing")
	}
	s.Show("r1")
	if s.Current() != "r1" {
		t.Fatal("expected r1 shown")
	}
	s.Clear("other")
	if s.Current() != "r1" {
		t.Fatal("clearing a different id is a no-op")
	}
	s.Clear("r1")
	if s.Current() != "" {
		t.Fatal("expected cleared")
	}
}
