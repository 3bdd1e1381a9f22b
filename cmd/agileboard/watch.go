package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/internal/taskstore"
)

// watch prints every change of the cached rows until interrupted. Updated
// rows are shown as a unified diff of their YAML form.
func (c *cli) watch(ctx context.Context) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	if err := c.provider.Watch(); err != nil {
		return err
	}
	// A sign-in or sign-out elsewhere ends the watch; the cache is replaced.
	sessionChanged := make(chan struct{}, 1)
	removeSession := c.provider.OnSessionChange(func(*remote.Session) {
		select {
		case sessionChanged <- struct{}{}:
		default:
		}
	})
	defer removeSession()
	fmt.Fprintf(c.out, "Watching %d tasks, press Ctrl-C to stop\n", len(s.Tasks()))

	changed := make(chan struct{}, 1)
	remove := s.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	prev := byID(s.Tasks())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sessionChanged:
			if c.provider.CurrentSession() == nil {
				return &taskstore.Error{Kind: taskstore.KindAuthRequired, Op: "watch"}
			}
			fmt.Fprintln(c.out, "Signed in as another user, stopping")
			return nil
		case <-changed:
		}
		if err := s.Err(); err != nil && !s.Subscribed() {
			return err
		}
		next := byID(s.Tasks())
		c.printChanges(prev, next)
		prev = next
	}
}

func byID(tasks []*task.Task) map[string]*task.Task {
	m := make(map[string]*task.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

func (c *cli) printChanges(prev, next map[string]*task.Task) {
	stamp := faint.Sprint(time.Now().Format(time.TimeOnly))
	for id, t := range next {
		old, ok := prev[id]
		if !ok {
			fmt.Fprintf(c.out, "%s %s %s %s\n", stamp, color.GreenString("+"), color.CyanString(shortID(id)), t.Title)
			continue
		}
		diff := rowDiff(old, t)
		if diff == "" {
			continue
		}
		fmt.Fprintf(c.out, "%s %s %s %s\n", stamp, color.YellowString("~"), color.CyanString(shortID(id)), t.Title)
		fmt.Fprint(c.out, colorDiff(diff))
	}
	for id, t := range prev {
		if _, ok := next[id]; !ok {
			fmt.Fprintf(c.out, "%s %s %s %s\n", stamp, color.RedString("-"), color.CyanString(shortID(id)), t.Title)
		}
	}
}

func rowDiff(a, b *task.Task) string {
	before, err := yaml.Marshal(a)
	if err != nil {
		return ""
	}
	after, err := yaml.Marshal(b)
	if err != nil {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       difflib.SplitLines(string(before)),
		B:       difflib.SplitLines(string(after)),
		Context: 0,
	})
	if err != nil {
		return ""
	}
	return diff
}

func colorDiff(diff string) string {
	var b strings.Builder
	for _, line := range difflib.SplitLines(diff) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			// file and hunk headers say nothing for a single row
		case strings.HasPrefix(line, "+"):
			b.WriteString(color.GreenString("  %s", line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(color.RedString("  %s", line))
		default:
			b.WriteString("  " + line)
		}
	}
	return b.String()
}
