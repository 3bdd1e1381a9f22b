package task

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kazz187/agileboard/pkg/cerr"
)

// Task is the only entity of the board. The JSON names match the remote
// table columns; YAML is used by the file backed repository and snapshots.
type Task struct {
	ID               string           `json:"id" yaml:"id"`
	OwnerID          string           `json:"ownerId" yaml:"owner_id"`
	Title            string           `json:"title" yaml:"title"`
	Description      string           `json:"description,omitempty" yaml:"description,omitempty"`
	Status           Status           `json:"status" yaml:"status"`
	Label            string           `json:"label,omitempty" yaml:"label,omitempty"`
	Priority         Priority         `json:"priority,omitempty" yaml:"priority,omitempty"`
	DueDate          *time.Time       `json:"dueDate,omitempty" yaml:"due_date,omitempty"`
	ImageURL         string           `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	Order            float64          `json:"order" yaml:"order"`
	Completed        bool             `json:"completed" yaml:"completed"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	CompletionReason CompletionReason `json:"completionReason,omitempty" yaml:"completion_reason,omitempty"`
	Selected         bool             `json:"selected" yaml:"selected"`
	Archived         bool             `json:"isArchived" yaml:"is_archived"`
	CreatedAt        time.Time        `json:"createdAt" yaml:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" yaml:"updated_at"`
}

type Status string

const (
	StatusPlanning Status = "PLANNING"
	StatusStaged   Status = "STAGED"
	StatusActive   Status = "ACTIVE"
	StatusDone     Status = "DONE"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusPlanning, StatusStaged, StatusActive, StatusDone}

var statusAliases = map[string]Status{
	"BACKLOG":     StatusPlanning,
	"SELECTED":    StatusStaged,
	"IN_PROGRESS": StatusActive,
	"TODO":        StatusActive,
}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ParseStatus accepts the canonical names case-insensitively, as well as the
// older BACKLOG / SELECTED / IN_PROGRESS names.
func ParseStatus(s string) (Status, error) {
	up := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "-", "_")))
	if st := Status(up); st.Valid() {
		return st, nil
	}
	if st, ok := statusAliases[up]; ok {
		return st, nil
	}
	return "", cerr.NewError(cerr.InvalidArgument, "invalid status", nil).
		AddViolation("status", fmt.Sprintf("unknown status %q", s))
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority. The empty priority is valid
// and means "not set".
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", cerr.NewError(cerr.InvalidArgument, "invalid priority", nil).
			AddViolation("priority", fmt.Sprintf("unknown priority %q", s))
	}
	return p, nil
}

type CompletionReason string

const (
	ReasonDone      CompletionReason = "Done"
	ReasonWontDo    CompletionReason = "Won't do"
	ReasonCantDo    CompletionReason = "Can't do"
	ReasonDuplicate CompletionReason = "Duplicate"
	ReasonInvalid   CompletionReason = "Invalid"
)

var CompletionReasons = []CompletionReason{ReasonDone, ReasonWontDo, ReasonCantDo, ReasonDuplicate, ReasonInvalid}

// Valid reports whether r is one of the fixed reasons. The empty reason is
// valid and means "not completed".
func (r CompletionReason) Valid() bool {
	return r == "" || slices.Contains(CompletionReasons, r)
}

func normalizeReason(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("'", "", "’", "", "_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseCompletionReason matches loosely so that "wont-do" and "Won't do"
// both select ReasonWontDo.
func ParseCompletionReason(s string) (CompletionReason, error) {
	n := normalizeReason(s)
	for _, r := range CompletionReasons {
		if normalizeReason(string(r)) == n {
			return r, nil
		}
	}
	return "", cerr.NewError(cerr.InvalidArgument, "invalid completion reason", nil).
		AddViolation("completionReason", fmt.Sprintf("unknown completion reason %q", s))
}

// Validate checks field values and the cross-field invariants of a task.
func (t *Task) Validate() error {
	e := cerr.NewError(cerr.InvalidArgument, "invalid task", nil)
	if strings.TrimSpace(t.Title) == "" {
		e.AddViolation("title", "title must not be empty")
	}
	if !t.Status.Valid() {
		e.AddViolation("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if !t.Priority.Valid() {
		e.AddViolation("priority", fmt.Sprintf("unknown priority %q", t.Priority))
	}
	if !t.CompletionReason.Valid() {
		e.AddViolation("completionReason", fmt.Sprintf("unknown completion reason %q", t.CompletionReason))
	}
	if t.Completed != (t.Status == StatusDone) {
		e.AddViolation("completed", "completed must be true exactly when status is DONE")
	}
	if t.Selected && t.Status != StatusPlanning {
		e.AddViolation("selected", "only PLANNING tasks can be staged")
	}
	if len(e.Details) > 0 {
		return e
	}
	return nil
}

func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// StripLocal clears the attributes that only exist on the client.
func (t *Task) StripLocal() {
	t.CompletedAt = nil
}

// CarryLocal copies the client-only attributes of from onto t.
func (t *Task) CarryLocal(from *Task) {
	if from == nil || t.Status != StatusDone {
		return
	}
	if t.CompletedAt == nil {
		t.CompletedAt = cloneTime(from.CompletedAt)
	}
}

// IsOverdue reports whether an unfinished task is past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusDone && t.DueDate.Before(now)
}

// Compare orders tasks by Order, then creation time, then id.
func Compare(a, b *Task) int {
	return cmp.Or(
		cmp.Compare(a.Order, b.Order),
		a.CreatedAt.Compare(b.CreatedAt),
		strings.Compare(a.ID, b.ID),
	)
}

func SortByOrder(tasks []*Task) {
	slices.SortStableFunc(tasks, Compare)
}

// CloneAll deep copies a slice of tasks.
func CloneAll(tasks []*Task) []*Task {
	out := make([]*Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
