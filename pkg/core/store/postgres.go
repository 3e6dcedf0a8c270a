package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"statement_stitch/pkg/core/synthesis"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

const schema = `
CREATE TABLE IF NOT EXISTS consolidated_statements (
	entity         TEXT NOT NULL,
	statement_type TEXT NOT NULL,
	position       INT NOT NULL,
	run_id         TEXT NOT NULL,
	statement_json JSONB NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity, statement_type)
);
CREATE TABLE IF NOT EXISTS restatement_events (
	id             BIGSERIAL PRIMARY KEY,
	entity         TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	statement_type TEXT NOT NULL,
	metric         TEXT NOT NULL,
	period         TEXT NOT NULL,
	old_value      DOUBLE PRECISION NOT NULL,
	new_value      DOUBLE PRECISION NOT NULL,
	abs_delta      DOUBLE PRECISION NOT NULL,
	rel_delta      DOUBLE PRECISION NOT NULL,
	old_filing     TEXT NOT NULL,
	new_filing     TEXT NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS restatement_events_entity_idx ON restatement_events (entity, run_id);
`

// PGRepository stores each statement as a JSONB row keyed by entity and type.
// Restatement events are appended per run so revisions stay queryable.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository connects to databaseURL.
func NewPGRepository(ctx context.Context, databaseURL string) (*PGRepository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse database config")
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}
	return &PGRepository{pool: pool}, nil
}

// Migrate creates the tables if they do not exist.
func (r *PGRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return eris.Wrap(err, "failed to migrate schema")
	}
	return nil
}

// Save upserts every statement of the run, drops statement types the run no
// longer produced and appends the run's restatement events, all in one
// transaction.
func (r *PGRepository) Save(ctx context.Context, entity string, runID uuid.UUID, statements []synthesis.ConsolidatedStatement) error {
	key := entityKey(entity)
	run := runID.String()
	now := time.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, st := range statements {
		data, err := json.Marshal(st)
		if err != nil {
			return eris.Wrapf(err, "failed to marshal %s", st.Type)
		}
		batch.Queue(`
			INSERT INTO consolidated_statements (entity, statement_type, position, run_id, statement_json, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (entity, statement_type)
			DO UPDATE SET
				position = EXCLUDED.position,
				run_id = EXCLUDED.run_id,
				statement_json = EXCLUDED.statement_json,
				updated_at = EXCLUDED.updated_at`,
			key, string(st.Type), i, run, data, now)
		for _, ev := range st.Restatements {
			batch.Queue(`
				INSERT INTO restatement_events
					(entity, run_id, statement_type, metric, period, old_value, new_value,
					 abs_delta, rel_delta, old_filing, new_filing, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				key, run, string(st.Type), ev.Metric, ev.Period, ev.OldValue, ev.NewValue,
				ev.AbsDelta, ev.RelDelta, ev.OldFiling, ev.NewFiling, now)
		}
	}
	batch.Queue(`DELETE FROM consolidated_statements WHERE entity = $1 AND run_id <> $2`, key, run)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return eris.Wrapf(err, "failed to save statements for %s", entity)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "failed to commit")
	}
	return nil
}

// Load returns the latest snapshot of the entity.
func (r *PGRepository) Load(ctx context.Context, entity string) (*Snapshot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, statement_json, updated_at
		FROM consolidated_statements
		WHERE entity = $1
		ORDER BY position`, entityKey(entity))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load %s", entity)
	}
	defer rows.Close()

	snap := &Snapshot{Entity: entity}
	for rows.Next() {
		var (
			run     string
			data    []byte
			updated time.Time
		)
		if err := rows.Scan(&run, &data, &updated); err != nil {
			return nil, eris.Wrap(err, "failed to scan statement")
		}
		var st synthesis.ConsolidatedStatement
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, eris.Wrap(err, "failed to unmarshal statement")
		}
		if id, err := uuid.Parse(run); err == nil {
			snap.RunID = id
		}
		if updated.After(snap.SavedAt) {
			snap.SavedAt = updated
		}
		snap.Statements = append(snap.Statements, st)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "failed to load %s", entity)
	}
	if len(snap.Statements) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "entity %s", entity)
	}
	return snap, nil
}

// Restatements lists every recorded restatement event of the entity, oldest
// first.
func (r *PGRepository) Restatements(ctx context.Context, entity string) ([]synthesis.RestatementEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT metric, period, old_value, new_value, abs_delta, rel_delta, old_filing, new_filing
		FROM restatement_events
		WHERE entity = $1
		ORDER BY id`, entityKey(entity))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query restatements for %s", entity)
	}
	defer rows.Close()

	var events []synthesis.RestatementEvent
	for rows.Next() {
		var ev synthesis.RestatementEvent
		if err := rows.Scan(&ev.Metric, &ev.Period, &ev.OldValue, &ev.NewValue,
			&ev.AbsDelta, &ev.RelDelta, &ev.OldFiling, &ev.NewFiling); err != nil {
			return nil, eris.Wrap(err, "failed to scan restatement")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "failed to read restatements")
}

// Close releases the pool.
func (r *PGRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
