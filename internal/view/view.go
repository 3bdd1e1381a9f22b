// Package view derives the backlog, board and dashboard from the cached
// tasks. Every function works on copies and never changes its input.
package view

import (
	"slices"
	"strings"
	"time"

	"github.com/kazz187/agileboard/internal/task"
)

// Counts summarizes a list of tasks.
type Counts struct {
	Staged int
	Active int
	Done   int
	Total  int
}

func count(tasks []*task.Task) Counts {
	var c Counts
	for _, t := range tasks {
		c.Total++
		switch {
		case t.Status == task.StatusDone:
			c.Done++
		case t.Status == task.StatusActive:
			c.Active++
		case t.Status == task.StatusStaged || t.Selected:
			c.Staged++
		}
	}
	return c
}

// Matches reports whether query occurs in the title, label or description
// of t, ignoring case. An empty query matches everything.
func Matches(t *task.Task, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, s := range []string{t.Title, t.Label, t.Description} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func sorted(tasks []*task.Task, keep func(*task.Task) bool) []*task.Task {
	out := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	task.SortByOrder(out)
	return out
}

type Backlog struct {
	Query string
	// Open holds the matching tasks that are not DONE.
	Open []*task.Task
	// Done holds the matching DONE tasks.
	Done []*task.Task
	// Counts covers every task, not only the matching ones.
	Counts Counts
}

func NewBacklog(tasks []*task.Task, query string) *Backlog {
	return &Backlog{
		Query: query,
		Open: sorted(tasks, func(t *task.Task) bool {
			return t.Status != task.StatusDone && Matches(t, query)
		}),
		Done: sorted(tasks, func(t *task.Task) bool {
			return t.Status == task.StatusDone && Matches(t, query)
		}),
		Counts: count(tasks),
	}
}

type Column struct {
	Status task.Status
	Title  string
	Tasks  []*task.Task
}

// BoardColumns are the board's statuses, left to right.
var BoardColumns = []Column{
	{Status: task.StatusStaged, Title: "Staged"},
	{Status: task.StatusActive, Title: "Active"},
	{Status: task.StatusDone, Title: "Done"},
}

// Board groups every task that left PLANNING into its column.
func Board(tasks []*task.Task) []Column {
	cols := make([]Column, len(BoardColumns))
	for i, c := range BoardColumns {
		cols[i] = Column{
			Status: c.Status,
			Title:  c.Title,
			Tasks:  sorted(tasks, func(t *task.Task) bool { return t.Status == c.Status }),
		}
	}
	return cols
}

type ReasonCount struct {
	Reason task.CompletionReason
	Count  int
}

type Dashboard struct {
	Counts   Counts
	ByStatus map[task.Status]int
	// Reasons lists every completion reason in its fixed order.
	Reasons []ReasonCount
	Overdue int
	// CompletedThisWeek counts tasks completed in the 7 days before now.
	// Only tasks completed in this client carry a completion time.
	CompletedThisWeek int
}

func NewDashboard(tasks []*task.Task, now time.Time) *Dashboard {
	d := &Dashboard{Counts: count(tasks), ByStatus: make(map[task.Status]int, len(task.Statuses))}
	reasons := make(map[task.CompletionReason]int)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	for _, t := range tasks {
		d.ByStatus[t.Status]++
		if t.IsOverdue(now) {
			d.Overdue++
		}
		if t.Status != task.StatusDone {
			continue
		}
		if t.CompletionReason != "" {
			reasons[t.CompletionReason]++
		}
		if t.CompletedAt != nil && t.CompletedAt.After(weekAgo) && !t.CompletedAt.After(now) {
			d.CompletedThisWeek++
		}
	}
	for _, r := range task.CompletionReasons {
		d.Reasons = append(d.Reasons, ReasonCount{Reason: r, Count: reasons[r]})
	}
	return d
}

// OrderAt returns the order value that puts a task at index of column,
// where column is sorted by order and does not contain the moved task.
func OrderAt(column []*task.Task, index int, now time.Time) float64 {
	index = max(0, min(index, len(column)))
	switch {
	case len(column) == 0:
		return float64(now.UnixMilli())
	case index == 0:
		return column[0].Order - 1
	case index == len(column):
		return column[len(column)-1].Order + 1
	}
	return (column[index-1].Order + column[index].Order) / 2
}

// Without returns tasks minus the one with id.
func Without(tasks []*task.Task, id string) []*task.Task {
	return slices.DeleteFunc(slices.Clone(tasks), func(t *task.Task) bool { return t.ID == id })
}
