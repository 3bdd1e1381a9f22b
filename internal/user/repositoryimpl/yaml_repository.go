package repositoryimpl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agileboard/internal/user"
	"github.com/kazz187/agileboard/pkg/cerr"
	"github.com/kazz187/agileboard/pkg/storage"
)

const (
	usersPrefix = "users"
	emailPrefix = "user_emails"
)

// YAMLRepository stores one file per user plus an email index file that
// holds the user id.
type YAMLRepository struct {
	storage storage.Storage
	// serializes the email uniqueness check with the write
	mu sync.Mutex
}

var _ user.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", usersPrefix, id)
}

func emailPath(email string) string {
	sum := sha256.Sum256([]byte(email))
	return fmt.Sprintf("%s/%s", emailPrefix, hex.EncodeToString(sum[:]))
}

func (r *YAMLRepository) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.storage.Exists(ctx, emailPath(u.Email))
	if err != nil {
		return cerr.WrapStorageWriteError("user", err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, "email already registered", nil)
	}
	data, err := yaml.Marshal(u)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal user: %w", err))
	}
	if err := r.storage.Write(ctx, path(u.ID), data); err != nil {
		return cerr.WrapStorageWriteError("user", err)
	}
	if err := r.storage.Write(ctx, emailPath(u.Email), []byte(u.ID)); err != nil {
		return cerr.WrapStorageWriteError("user", err)
	}
	return nil
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*user.User, error) {
	data, err := r.storage.Read(ctx, path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("user", err)
	}
	var u user.User
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal user: %w", err))
	}
	return &u, nil
}

func (r *YAMLRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	id, err := r.storage.Read(ctx, emailPath(email))
	if err != nil {
		return nil, cerr.WrapStorageReadError("user", err)
	}
	return r.Get(ctx, string(id))
}
