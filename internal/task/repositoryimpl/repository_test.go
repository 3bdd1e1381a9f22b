package repositoryimpl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/storage"
)

func repositories(t *testing.T) map[string]task.Repository {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	sqlite, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]task.Repository{
		"yaml":   NewYAMLRepository(local),
		"sqlite": sqlite,
	}
}

func newRow(id, owner string, order float64) *task.Task {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &task.Task{
		ID:        id,
		OwnerID:   owner,
		Title:     "task " + id,
		Status:    task.StatusPlanning,
		Priority:  task.PriorityMedium,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_CRUD(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := newRow("t1", "u1", 1)
			due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
			row.DueDate = &due
			row.Label = "Feature"

			require.NoError(t, repo.Create(ctx, row))
			err := repo.Create(ctx, row)
			assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))

			got, err := repo.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, "task t1", got.Title)
			assert.Equal(t, "Feature", got.Label)
			require.NotNil(t, got.DueDate)
			assert.True(t, due.Equal(*got.DueDate))
			assert.True(t, row.CreatedAt.Equal(got.CreatedAt))

			got.Status = task.StatusDone
			got.Completed = true
			got.CompletionReason = task.ReasonDone
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Equal(t, task.StatusDone, got.Status)
			assert.True(t, got.Completed)
			assert.Equal(t, task.ReasonDone, got.CompletionReason)

			require.NoError(t, repo.Delete(ctx, "t1"))
			_, err = repo.Get(ctx, "t1")
			assert.True(t, cerr.IsCode(err, cerr.NotFound))
			assert.True(t, cerr.IsCode(repo.Delete(ctx, "t1"), cerr.NotFound))
			assert.True(t, cerr.IsCode(repo.Update(ctx, row), cerr.NotFound))
		})
	}
}

func TestRepository_ListByOwner(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, newRow("b", "u1", 2)))
			require.NoError(t, repo.Create(ctx, newRow("a", "u1", 3)))
			require.NoError(t, repo.Create(ctx, newRow("c", "u1", 1)))
			require.NoError(t, repo.Create(ctx, newRow("x", "u2", 0)))

			tasks, err := repo.ListByOwner(ctx, "u1")
			require.NoError(t, err)
			var ids []string
			for _, tk := range tasks {
				ids = append(ids, tk.ID)
			}
			assert.Equal(t, []string{"c", "b", "a"}, ids)

			tasks, err = repo.ListByOwner(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, tasks)
		})
	}
}

func TestRepository_DropsClientOnlyFields(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := newRow("t1", "u1", 1)
			row.Status = task.StatusDone
			row.Completed = true
			at := time.Now()
			row.CompletedAt = &at

			require.NoError(t, repo.Create(ctx, row))
			got, err := repo.Get(ctx, "t1")
			require.NoError(t, err)
			assert.Nil(t, got.CompletedAt)
		})
	}
}
