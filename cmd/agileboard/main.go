package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app = kingpin.New("agileboard", "Backlog, board and dashboard for your tasks")

	// Account commands
	signupCmd      = app.Command("signup", "Create an account and sign in")
	signupEmail    = signupCmd.Flag("email", "Email address").Required().String()
	signupName     = signupCmd.Flag("name", "Display name").String()
	signupPassword = signupCmd.Flag("password", "Password (prompted when omitted)").String()

	loginCmd      = app.Command("login", "Sign in")
	loginEmail    = loginCmd.Flag("email", "Email address").Required().String()
	loginPassword = loginCmd.Flag("password", "Password (prompted when omitted)").String()

	logoutCmd = app.Command("logout", "Sign out")
	whoamiCmd = app.Command("whoami", "Show the signed-in user")

	// Views
	backlogCmd    = app.Command("backlog", "List open tasks and the done section").Default()
	backlogSearch = backlogCmd.Flag("search", "Case-insensitive match on title, label and description").Short('s').String()

	boardCmd     = app.Command("board", "Show the staged, active and done columns")
	dashboardCmd = app.Command("dashboard", "Show task statistics")

	showCmd = app.Command("show", "Show one task")
	showID  = showCmd.Arg("id", "Task ID or unique prefix").Required().String()

	// Mutations
	addCmd         = app.Command("add", "Create a task")
	addTitle       = addCmd.Arg("title", "Task title").Required().String()
	addDescription = addCmd.Flag("description", "Description").Short('d').String()
	addLabel       = addCmd.Flag("label", "Label").Short('l').String()
	addPriority    = addCmd.Flag("priority", "LOW, MEDIUM or HIGH").Short('p').String()
	addDue         = addCmd.Flag("due", "Due date (YYYY-MM-DD or RFC 3339)").String()
	addImage       = addCmd.Flag("image", "Image URL").String()
	addStatus      = addCmd.Flag("status", "PLANNING, STAGED or ACTIVE").String()
	addStage       = addCmd.Flag("stage", "Stage the task for the next promotion").Bool()

	editCmd         = app.Command("edit", "Change fields of a task")
	editID          = editCmd.Arg("id", "Task ID or unique prefix").Required().String()
	editTitle       = editCmd.Flag("title", "Title").String()
	editDescription = editCmd.Flag("description", "Description").Short('d').String()
	editLabel       = editCmd.Flag("label", "Label").Short('l').String()
	editPriority    = editCmd.Flag("priority", "LOW, MEDIUM or HIGH").Short('p').String()
	editDue         = editCmd.Flag("due", "Due date (YYYY-MM-DD or RFC 3339), \"none\" clears it").String()
	editImage       = editCmd.Flag("image", "Image URL").String()

	rmCmd = app.Command("rm", "Delete a task")
	rmID  = rmCmd.Arg("id", "Task ID or unique prefix").Required().String()
	rmYes = rmCmd.Flag("yes", "Do not ask for confirmation").Short('y').Bool()

	stageCmd   = app.Command("stage", "Stage a PLANNING task for promotion")
	stageIDs   = stageCmd.Arg("ids", "Task IDs or unique prefixes").Required().Strings()
	unstageCmd = app.Command("unstage", "Remove a task from the staged set")
	unstageIDs = unstageCmd.Arg("ids", "Task IDs or unique prefixes").Required().Strings()
	promoteCmd = app.Command("promote", "Move every staged task to ACTIVE")

	moveCmd      = app.Command("move", "Move a task to another status")
	moveID       = moveCmd.Arg("id", "Task ID or unique prefix").Required().String()
	moveStatus   = moveCmd.Arg("status", "PLANNING, STAGED or ACTIVE").Required().String()
	movePosition = moveCmd.Flag("position", "Position in the target column, 0 is the top").Default("-1").Int()

	completeCmd    = app.Command("complete", "Mark a task as done")
	completeID     = completeCmd.Arg("id", "Task ID or unique prefix").Required().String()
	completeReason = completeCmd.Flag("reason", "Done, Won't do, Can't do, Duplicate or Invalid").Default("Done").String()
	completeNote   = completeCmd.Flag("note", "Replaces the description").String()
	completeYes    = completeCmd.Flag("yes", "Do not ask for confirmation").Short('y').Bool()

	undoCmd = app.Command("undo", "Reopen a done task")
	undoID  = undoCmd.Arg("id", "Task ID or unique prefix").Required().String()
	undoYes = undoCmd.Flag("yes", "Do not ask for confirmation").Short('y').Bool()

	reorderCmd = app.Command("reorder", "Put tasks of one status in the given order")
	reorderIDs = reorderCmd.Arg("ids", "Task IDs or unique prefixes, top first").Required().Strings()

	watchCmd = app.Command("watch", "Print changes to your tasks as they happen")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newCLI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = c.run(ctx, command)
	c.close()
	if err != nil {
		c.printError(err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, command string) error {
	switch command {
	case signupCmd.FullCommand():
		return c.signUp(ctx, *signupEmail, *signupName, *signupPassword)
	case loginCmd.FullCommand():
		return c.signIn(ctx, *loginEmail, *loginPassword)
	case logoutCmd.FullCommand():
		return c.signOut(ctx)
	case whoamiCmd.FullCommand():
		return c.whoami(ctx)
	case backlogCmd.FullCommand():
		return c.backlog(ctx, *backlogSearch)
	case boardCmd.FullCommand():
		return c.board(ctx)
	case dashboardCmd.FullCommand():
		return c.dashboard(ctx)
	case showCmd.FullCommand():
		return c.show(ctx, *showID)
	case addCmd.FullCommand():
		return c.add(ctx)
	case editCmd.FullCommand():
		return c.edit(ctx)
	case rmCmd.FullCommand():
		return c.remove(ctx, *rmID, *rmYes)
	case stageCmd.FullCommand():
		return c.stage(ctx, *stageIDs, true)
	case unstageCmd.FullCommand():
		return c.stage(ctx, *unstageIDs, false)
	case promoteCmd.FullCommand():
		return c.promote(ctx)
	case moveCmd.FullCommand():
		return c.move(ctx, *moveID, *moveStatus, *movePosition)
	case completeCmd.FullCommand():
		return c.complete(ctx, *completeID, *completeReason, *completeNote, *completeYes)
	case undoCmd.FullCommand():
		return c.undo(ctx, *undoID, *undoYes)
	case reorderCmd.FullCommand():
		return c.reorder(ctx, *reorderIDs)
	case watchCmd.FullCommand():
		return c.watch(ctx)
	}
	return fmt.Errorf("unknown command %q", command)
}
