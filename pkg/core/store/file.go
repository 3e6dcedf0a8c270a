package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"statement_stitch/pkg/core/synthesis"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// FileRepository keeps one JSON snapshot per entity in a directory.
type FileRepository struct {
	dir string
}

// NewFileRepository creates dir if needed.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, eris.Wrapf(err, "failed to create store dir %s", dir)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(entity string) string {
	return filepath.Join(r.dir, entityKey(entity)+".json")
}

// Save replaces the entity's snapshot. The file is written next to the target
// and renamed so readers never see a partial snapshot.
func (r *FileRepository) Save(ctx context.Context, entity string, runID uuid.UUID, statements []synthesis.ConsolidatedStatement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := Snapshot{
		Entity:     entity,
		RunID:      runID,
		SavedAt:    time.Now().UTC(),
		Statements: statements,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to marshal snapshot")
	}

	target := r.path(entity)
	tmp, err := os.CreateTemp(r.dir, ".snapshot-*")
	if err != nil {
		return eris.Wrapf(err, "failed to save %s", entity)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "failed to save %s", entity)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "failed to save %s", entity)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return eris.Wrapf(err, "failed to save %s", entity)
	}
	return nil
}

// Load reads the entity's snapshot.
func (r *FileRepository) Load(ctx context.Context, entity string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.path(entity))
	if errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "entity %s", entity)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load %s", entity)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "failed to unmarshal snapshot %s", entity)
	}
	return &snap, nil
}

// Close is a no-op.
func (r *FileRepository) Close() {}
