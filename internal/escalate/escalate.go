// Package escalate detects overdue requisitions and serializes their
// resolution: at most one blocking delay notification is outstanding at any
// time, the rest stay pending behind a counter.
package escalate

import (
	"sort"
	"sync"
	"time"

	"hireline/internal/domain"
	"hireline/internal/stage"
)

const dateLayout = "2006-01-02"

// Overdue reports whether a due date has passed at now. A nil or malformed
// due date is never overdue.
func Overdue(due *string, now time.Time) bool {
	if due == nil || *due == "" {
		return false
	}
	d, err := time.Parse(dateLayout, *due)
	if err != nil {
		return false
	}
	return d.Before(now.Truncate(24 * time.Hour))
}

// DaysOverdue returns floor((now - due) / 1 day), clamped at zero.
func DaysOverdue(due *string, now time.Time) int {
	if due == nil || *due == "" {
		return 0
	}
	d, err := time.Parse(dateLayout, *due)
	if err != nil {
		return 0
	}
	days := int(now.Truncate(24*time.Hour).Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Eligible applies the full overdue predicate: past due, in an escalatable
// stage, and not already pulled into the delay overlay.
func Eligible(r domain.Requisition, now time.Time) bool {
	return !r.Delayed && stage.Escalatable(r.Stage) && Overdue(r.DueDate, now)
}

// Queue is a value snapshot of the escalation backlog built from the full
// requisition set. The head is the one notification shown; everything else
// is counted but hidden.
type Queue struct {
	items []domain.Requisition
}

// Build filters and orders the overdue requisitions, oldest due date first.
func Build(reqs []domain.Requisition, now time.Time) Queue {
	var q Queue
	for _, r := range reqs {
		if Eligible(r, now) {
			q.items = append(q.items, r)
		}
	}
	sort.SliceStable(q.items, func(i, j int) bool { return less(q.items[i], q.items[j]) })
	return q
}

func less(a, b domain.Requisition) bool {
	ad, bd := "", ""
	if a.DueDate != nil {
		ad = *a.DueDate
	}
	if b.DueDate != nil {
		bd = *b.DueDate
	}
	if ad != bd {
		return ad < bd
	}
	return a.ID < b.ID
}

// Head returns the requisition to surface next, if any.
func (q Queue) Head() (domain.Requisition, bool) {
	if len(q.items) == 0 {
		return domain.Requisition{}, false
	}
	return q.items[0], true
}

// Len is the total overdue count in the snapshot.
func (q Queue) Len() int { return len(q.items) }

// Session tracks the single outstanding notification across intents. The
// engine owns one session; guarding it with a mutex keeps the single-flight
// invariant when intents arrive over HTTP.
type Session struct {
	mu      sync.Mutex
	current string
}

// Current returns the requisition id currently shown, or empty.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Show records the requisition now being surfaced.
func (s *Session) Show(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
}

// Clear drops the outstanding notification if it matches id, or
// unconditionally when id is empty.
func (s *Session) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" || s.current == id {
		s.current = ""
	}
}
