// Package store persists consolidated statements per entity, in Postgres when
// a database is configured and as JSON files otherwise.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"statement_stitch/pkg/core/synthesis"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Load when nothing was saved for the entity.
var ErrNotFound = errors.New("no consolidated statements stored")

// DefaultDir is used by the file repository when no directory is configured.
var DefaultDir = filepath.Join(".cache", "stitch", "statements")

// Snapshot is the latest saved run for one entity.
type Snapshot struct {
	Entity     string                            `json:"entity"`
	RunID      uuid.UUID                         `json:"run_id"`
	SavedAt    time.Time                         `json:"saved_at"`
	Statements []synthesis.ConsolidatedStatement `json:"statements"`
}

// Repository saves and loads consolidated statements.
type Repository interface {
	Save(ctx context.Context, entity string, runID uuid.UUID, statements []synthesis.ConsolidatedStatement) error
	Load(ctx context.Context, entity string) (*Snapshot, error)
	Close()
}

// Config selects the backend. DatabaseURL wins over Dir.
type Config struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
}

// NewRepository opens Postgres when cfg.DatabaseURL is set (and migrates the
// schema), the file repository otherwise.
func NewRepository(ctx context.Context, cfg Config, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DatabaseURL != "" {
		repo, err := NewPGRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return repo, nil
	}
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultDir
	}
	logger.Info("using file store", zap.String("dir", dir))
	return NewFileRepository(dir)
}

// entityKey normalizes an entity name for lookups and file names.
func entityKey(entity string) string {
	entity = strings.ToLower(strings.TrimSpace(entity))
	if entity == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, entity)
}
