package repositoryimpl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agileboard/internal/user"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/storage"
)

func TestYAMLRepository(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewYAMLRepository(s)

	u := &user.User{ID: "u1", Email: "ada@example.com", Name: "Ada", PasswordHash: "h"}
	require.NoError(t, repo.Create(ctx, u))

	err = repo.Create(ctx, &user.User{ID: "u2", Email: "ada@example.com"})
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))

	got, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "Ada", got.Name)

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	_, err = repo.Get(ctx, "u2")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
