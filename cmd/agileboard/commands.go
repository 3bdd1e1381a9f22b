package main

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/internal/taskstore"
	"github.com/kazz187/agileboard/internal/view"
	"github.com/kazz187/agileboard/pkg/cerr"
)

func (c *cli) signUp(ctx context.Context, email, name, password string) error {
	if password == "" {
		var err error
		if password, err = c.prompt("Password"); err != nil {
			return err
		}
	}
	s, err := c.provider.SignUp(ctx, email, password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed up as %s\n", s.Email)
	return nil
}

func (c *cli) signIn(ctx context.Context, email, password string) error {
	if password == "" {
		var err error
		if password, err = c.prompt("Password"); err != nil {
			return err
		}
	}
	s, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as %s (session valid until %s)\n", s.Email, s.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func (c *cli) signOut(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Signed out")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	if c.provider.CurrentSession() == nil {
		return &taskstore.Error{Kind: taskstore.KindAuthRequired, Op: "whoami"}
	}
	me, err := c.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s <%s>\n", me.Name, me.Email)
	fmt.Fprintf(c.out, "user id: %s\n", me.UserID)
	return nil
}

func (c *cli) backlog(ctx context.Context, search string) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	c.renderBacklog(view.NewBacklog(s.Tasks(), search))
	return nil
}

func (c *cli) board(ctx context.Context) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	c.renderBoard(view.Board(s.Tasks()))
	return nil
}

func (c *cli) dashboard(ctx context.Context) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	c.renderDashboard(view.NewDashboard(s.Tasks(), time.Now()))
	return nil
}

func (c *cli) show(ctx context.Context, ref string) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, ref)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	_, err = c.out.Write(data)
	return err
}

func (c *cli) add(ctx context.Context) error {
	draft := task.Patch{Title: task.Set(*addTitle)}
	if err := c.fillPatch(&draft, *addDescription, *addLabel, *addPriority, *addDue, *addImage); err != nil {
		return err
	}
	if *addStatus != "" {
		st, err := task.ParseStatus(*addStatus)
		if err != nil {
			return err
		}
		draft.Status = task.Set(st)
	}
	if *addStage {
		draft.Selected = task.Set(true)
	}

	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := s.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %s %s\n", color.CyanString(shortID(t.ID)), t.Title)
	return nil
}

func (c *cli) edit(ctx context.Context) error {
	var p task.Patch
	if *editTitle != "" {
		p.Title = task.Set(*editTitle)
	}
	if err := c.fillPatch(&p, *editDescription, *editLabel, *editPriority, *editDue, *editImage); err != nil {
		return err
	}
	if p.IsZero() {
		return cerr.NewError(cerr.InvalidArgument, "nothing to change; pass at least one field flag", nil)
	}

	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, *editID)
	if err != nil {
		return err
	}
	if err := s.Update(ctx, t.ID, p); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated %s (%s)\n", shortID(t.ID), strings.Join(p.Fields(), ", "))
	return nil
}

func (c *cli) fillPatch(p *task.Patch, description, label, priority, due, image string) error {
	if description != "" {
		p.Description = task.Set(description)
	}
	if label != "" {
		p.Label = task.Set(label)
	}
	if image != "" {
		p.ImageURL = task.Set(image)
	}
	if priority != "" {
		pr, err := task.ParsePriority(priority)
		if err != nil {
			return err
		}
		p.Priority = task.Set(pr)
	}
	if due != "" {
		d, err := parseDue(due)
		if err != nil {
			return err
		}
		p.DueDate = task.Set(d)
	}
	return nil
}

// parseDue accepts a date, an RFC 3339 time, or "none".
func parseDue(s string) (*time.Time, error) {
	if strings.EqualFold(s, "none") {
		return nil, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "invalid due date", err).
			AddViolation("dueDate", fmt.Sprintf("%q is neither YYYY-MM-DD nor RFC 3339", s))
	}
	return &t, nil
}

func (c *cli) remove(ctx context.Context, ref string, yes bool) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, ref)
	if err != nil {
		return err
	}
	if !yes && !c.confirm(fmt.Sprintf("Delete %q?", t.Title)) {
		fmt.Fprintln(c.out, "Cancelled")
		return nil
	}
	if err := s.Delete(ctx, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted %s\n", shortID(t.ID))
	return nil
}

func (c *cli) stage(ctx context.Context, refs []string, on bool) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		t, err := resolve(s, ref)
		if err != nil {
			return err
		}
		if on {
			err = s.Stage(ctx, t.ID)
		} else {
			err = s.Unstage(ctx, t.ID)
		}
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "%d staged\n", len(s.Staged()))
	return nil
}

func (c *cli) promote(ctx context.Context) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	staged := s.Staged()
	if len(staged) == 0 {
		fmt.Fprintln(c.out, "Nothing is staged")
		return nil
	}
	if err := s.PromoteStaged(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Promoted %d tasks to ACTIVE\n", len(staged))
	return nil
}

func (c *cli) move(ctx context.Context, ref, status string, position int) error {
	st, err := task.ParseStatus(status)
	if err != nil {
		return err
	}
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, ref)
	if err != nil {
		return err
	}
	column := view.Without(tasksWithStatus(s.Tasks(), st), t.ID)
	if position < 0 {
		position = len(column)
	}
	move := taskstore.OrderUpdate{ID: t.ID, Order: view.OrderAt(column, position, time.Now())}
	if st != t.Status {
		move.Status = st
	}
	if err := s.Reorder(ctx, []taskstore.OrderUpdate{move}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Moved %s to %s\n", shortID(t.ID), st)
	return nil
}

func (c *cli) reorder(ctx context.Context, refs []string) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	var picked []*task.Task
	for _, ref := range refs {
		t, err := resolve(s, ref)
		if err != nil {
			return err
		}
		if len(picked) > 0 && t.Status != picked[0].Status {
			return cerr.NewError(cerr.InvalidArgument, "reorder works within one status", nil)
		}
		picked = append(picked, t)
	}
	// Reuse the existing order values of the picked tasks, smallest first.
	orders := make([]float64, len(picked))
	for i, t := range picked {
		orders[i] = t.Order
	}
	slices.Sort(orders)
	moves := make([]taskstore.OrderUpdate, len(picked))
	for i, t := range picked {
		moves[i] = taskstore.OrderUpdate{ID: t.ID, Order: orders[i]}
	}
	if err := s.Reorder(ctx, moves); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Reordered %d tasks\n", len(moves))
	return nil
}

func (c *cli) complete(ctx context.Context, ref, reason, note string, yes bool) error {
	r, err := task.ParseCompletionReason(reason)
	if err != nil {
		return err
	}
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, ref)
	if err != nil {
		return err
	}
	if !yes && !c.confirm(fmt.Sprintf("Complete %q as %q?", t.Title, r)) {
		fmt.Fprintln(c.out, "Cancelled")
		return nil
	}
	if err := s.Complete(ctx, t.ID, r, note); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s (%s)\n", color.GreenString("Done"), t.Title, r)
	return nil
}

func (c *cli) undo(ctx context.Context, ref string, yes bool) error {
	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	t, err := resolve(s, ref)
	if err != nil {
		return err
	}
	if !yes && !c.confirm(fmt.Sprintf("Reopen %q? Its completion reason will be cleared.", t.Title)) {
		fmt.Fprintln(c.out, "Cancelled")
		return nil
	}
	if err := s.UndoComplete(ctx, t.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Reopened %s\n", t.Title)
	return nil
}

// resolve finds a cached task by id or by a unique id prefix.
func resolve(s *taskstore.Store, ref string) (*task.Task, error) {
	if t, ok := s.Get(ref); ok {
		return t, nil
	}
	var found *task.Task
	for _, t := range s.Tasks() {
		if !strings.HasPrefix(strings.ToLower(t.ID), strings.ToLower(ref)) {
			continue
		}
		if found != nil {
			return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%q matches more than one task", ref), nil)
		}
		found = t
	}
	if found == nil {
		return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("no task matches %q", ref), nil)
	}
	return found, nil
}

func tasksWithStatus(tasks []*task.Task, st task.Status) []*task.Task {
	var out []*task.Task
	for _, t := range tasks {
		if t.Status == st {
			out = append(out, t)
		}
	}
	task.SortByOrder(out)
	return out
}
