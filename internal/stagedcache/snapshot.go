// Package stagedcache keeps the staged tasks of one owner on disk so the
// staged set survives a restart of the client.
package stagedcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agileboard/internal/task"
	"github.com/kazz187/agileboard/pkg/storage"
)

const ioTimeout = 5 * time.Second

type document struct {
	OwnerID string       `yaml:"owner_id"`
	SavedAt time.Time    `yaml:"saved_at"`
	Staged  []*task.Task `yaml:"staged"`
}

// Snapshot stores the staged rows of one owner in staged/<owner>.yaml.
type Snapshot struct {
	storage storage.Storage
	ownerID string
	now     func() time.Time
}

func New(s storage.Storage, ownerID string) *Snapshot {
	return &Snapshot{storage: s, ownerID: ownerID, now: time.Now}
}

func (s *Snapshot) path() string {
	return fmt.Sprintf("staged/%s.yaml", s.ownerID)
}

// Load returns the saved rows, or nothing when no snapshot exists yet.
func (s *Snapshot) Load() ([]*task.Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	data, err := s.storage.Read(ctx, s.path())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse staged snapshot: %w", err)
	}
	if doc.OwnerID != s.ownerID {
		return nil, nil
	}
	return doc.Staged, nil
}

// Save replaces the snapshot. An empty set removes the file.
func (s *Snapshot) Save(staged []*task.Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()

	if len(staged) == 0 {
		err := s.storage.Delete(ctx, s.path())
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	data, err := yaml.Marshal(document{OwnerID: s.ownerID, SavedAt: s.now().UTC(), Staged: staged})
	if err != nil {
		return fmt.Errorf("failed to marshal staged snapshot: %w", err)
	}
	return s.storage.Write(ctx, s.path(), data)
}
