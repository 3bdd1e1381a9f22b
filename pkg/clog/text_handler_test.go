package clog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextHandler_ContextAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewAttributesHandler(NewTextHandler(buf, WithColor(false), WithLevel(slog.LevelDebug))))

	ctx := ContextWithSlog(context.Background())
	AddAttributes(ctx, map[string]any{"procedure": "/agileboard.v1.TaskService/QueryTasks", "code": "ok"})
	AddOwner(ctx, "u1")
	AddError(ctx, errors.New("boom"))

	logger.InfoContext(ctx, "Finished", "task_id", "t1")

	out := buf.String()
	assert.Contains(t, out, "/agileboard.v1.TaskService/QueryTasks u1 [ok] \"Finished\" \"boom\"")
	assert.Contains(t, out, "    task_id=t1\n")
}

func TestTextHandler_Level(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewTextHandler(buf, WithColor(false)))
	logger.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestGetAttribute(t *testing.T) {
	ctx := ContextWithSlog(context.Background())
	AddAttributes(ctx, map[string]any{"nested": map[string]any{"a": 1}})
	AddAttributes(ctx, map[string]any{"nested": map[string]any{"b": 2}})

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, GetAttribute[map[string]any](ctx, "nested"))
	assert.Zero(t, GetAttribute[int](context.Background(), "missing"))
}
