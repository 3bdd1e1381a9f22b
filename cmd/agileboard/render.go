package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/internal/view"
)

const shortIDLen = 8

var (
	heading = color.New(color.Bold, color.Underline)
	faint   = color.New(color.Faint)
)

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}

func statusColor(st task.Status) *color.Color {
	switch st {
	case task.StatusStaged:
		return color.New(color.FgYellow)
	case task.StatusActive:
		return color.New(color.FgBlue)
	case task.StatusDone:
		return color.New(color.FgGreen)
	}
	return color.New(color.FgWhite)
}

func priorityMark(p task.Priority) string {
	switch p {
	case task.PriorityHigh:
		return color.RedString("!!")
	case task.PriorityMedium:
		return color.YellowString("! ")
	}
	return "  "
}

func (c *cli) renderRow(t *task.Task, now time.Time) {
	mark := " "
	if t.Selected {
		mark = color.YellowString("*")
	}
	line := fmt.Sprintf("%s %s %s %-9s %s", mark, color.CyanString(shortID(t.ID)), priorityMark(t.Priority), statusColor(t.Status).Sprint(t.Status), t.Title)
	if t.Label != "" {
		line += " " + color.MagentaString("[%s]", t.Label)
	}
	if t.DueDate != nil {
		due := "due " + t.DueDate.Local().Format(time.DateOnly)
		if t.IsOverdue(now) {
			due = color.RedString("%s (overdue)", due)
		}
		line += " " + due
	}
	if t.Status == task.StatusDone && t.CompletionReason != "" {
		line += " " + faint.Sprintf("(%s)", t.CompletionReason)
	}
	fmt.Fprintln(c.out, line)
}

func (c *cli) renderBacklog(b *view.Backlog) {
	now := time.Now()
	title := "Backlog"
	if b.Query != "" {
		title = fmt.Sprintf("Search results for %q", b.Query)
	}
	heading.Fprintf(c.out, "%s (%d)\n", title, len(b.Open))
	if len(b.Open) == 0 {
		if b.Query != "" {
			faint.Fprintln(c.out, "  No tasks match your search")
		} else {
			faint.Fprintln(c.out, "  No tasks in backlog. Create one with: agileboard add <title>")
		}
	}
	for _, t := range b.Open {
		c.renderRow(t, now)
	}
	if len(b.Done) > 0 {
		fmt.Fprintln(c.out)
		heading.Fprintf(c.out, "Done (%d)\n", len(b.Done))
		for _, t := range b.Done {
			c.renderRow(t, now)
		}
	}
	fmt.Fprintln(c.out)
	faint.Fprintf(c.out, "%d staged, %d active, %d done, %d total\n", b.Counts.Staged, b.Counts.Active, b.Counts.Done, b.Counts.Total)
}

func (c *cli) renderBoard(cols []view.Column) {
	now := time.Now()
	for i, col := range cols {
		if i > 0 {
			fmt.Fprintln(c.out)
		}
		statusColor(col.Status).Add(color.Bold).Fprintf(c.out, "%s (%d)\n", col.Title, len(col.Tasks))
		if len(col.Tasks) == 0 {
			faint.Fprintln(c.out, "  empty")
		}
		for _, t := range col.Tasks {
			c.renderRow(t, now)
		}
	}
}

func (c *cli) renderDashboard(d *view.Dashboard) {
	heading.Fprintln(c.out, "Dashboard")
	fmt.Fprintf(c.out, "  Total      %d\n", d.Counts.Total)
	for _, st := range task.Statuses {
		fmt.Fprintf(c.out, "  %-10s %d\n", statusColor(st).Sprint(st), d.ByStatus[st])
	}
	overdue := fmt.Sprint(d.Overdue)
	if d.Overdue > 0 {
		overdue = color.RedString("%d", d.Overdue)
	}
	fmt.Fprintf(c.out, "  Overdue    %s\n", overdue)
	fmt.Fprintf(c.out, "  Completed in the last 7 days: %d\n", d.CompletedThisWeek)

	fmt.Fprintln(c.out)
	heading.Fprintln(c.out, "Completion reasons")
	for _, r := range d.Reasons {
		bar := strings.Repeat("#", r.Count)
		fmt.Fprintf(c.out, "  %-10s %3d %s\n", r.Reason, r.Count, color.GreenString(bar))
	}
}
