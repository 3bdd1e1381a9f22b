package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kazz187/agileboard/internal/config"
	"github.com/kazz187/agileboard/internal/remote"
	"github.com/kazz187/agileboard/internal/session"
	"github.com/kazz187/agileboard/internal/stagedcache"
	"github.com/kazz187/agileboard/internal/taskstore"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/clog"
	"github.com/kazz187/agileboard/pkg/storage"
)

type cli struct {
	env      *config.ClientEnv
	state    *storage.LocalStorage
	logger   *slog.Logger
	logFile  *lumberjack.Logger
	client   *remote.Client
	provider *session.FileProvider
	coord    *session.Coordinator

	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

func newCLI() (*cli, error) {
	env, err := config.LoadClientEnv()
	if err != nil {
		return nil, err
	}
	state, err := storage.NewLocalStorage(env.StateDir)
	if err != nil {
		return nil, err
	}

	// Logs go to a rotating file so they never mix with command output.
	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(state.Root(), "logs", "agileboard.log"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
	logger := slog.New(clog.NewAttributesHandler(
		slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: env.SlogLevel()}),
	))
	slog.SetDefault(logger)

	c := &cli{
		env:     env,
		state:   state,
		logger:  logger,
		logFile: logFile,
		in:      bufio.NewReader(os.Stdin),
		out:     color.Output,
		err:     color.Error,
	}
	var provider *session.FileProvider
	c.client = remote.NewClient(http.DefaultClient, env.ServerURL, func() string { return provider.AccessToken() })
	provider, err = session.NewFileProvider(state, c.client, logger)
	if err != nil {
		return nil, err
	}
	c.provider = provider
	c.coord = session.NewCoordinator(provider, c.newStore, logger)
	return c, nil
}

func (c *cli) newStore(ownerID string) *taskstore.Store {
	return taskstore.New(c.client, ownerID, taskstore.Options{
		Timeout:  c.env.RequestTimeout,
		Snapshot: stagedcache.New(c.state, ownerID),
		Logger:   c.logger,
	})
}

// openStore starts the cache of the signed-in user and loads it.
func (c *cli) openStore(ctx context.Context) (*taskstore.Store, error) {
	if err := c.coord.Start(ctx); err != nil {
		return nil, err
	}
	return c.coord.Store()
}

func (c *cli) close() {
	c.coord.Close()
	_ = c.provider.Close()
	_ = c.logFile.Close()
}

func (c *cli) printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprint(c.err, "Error: ")
	fmt.Fprintln(c.err, err)

	var cErr *cerr.Error
	if errors.As(err, &cErr) {
		for _, v := range cErr.Violations() {
			fmt.Fprintf(c.err, "  - %s\n", v)
		}
	}
	switch {
	case taskstore.IsKind(err, taskstore.KindAuthRequired):
		fmt.Fprintln(c.err, "Sign in with: agileboard login --email <email>")
	case cerr.CodeOf(err).Retryable():
		fmt.Fprintf(c.err, "The server at %s may be unreachable; try again.\n", c.env.ServerURL)
	}
}

// confirm asks a yes/no question on stdin. Anything but y/yes is a no.
func (c *cli) confirm(question string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}
