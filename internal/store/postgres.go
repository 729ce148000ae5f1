// File: internal/store/postgres.go
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against
// pgxmock in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// PgStore is the durable Postgres implementation of schemas.BatchStore.
// Batch state is stored as one JSONB blob per batch; save is an upsert so
// per-row progress writes stay a single round trip.
type PgStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPgStore creates a store instance and verifies the connection.
func NewPgStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PgStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PgStore{pool: pool, log: logger.Named("store")}, nil
}

const upsertBatchSQL = `
    INSERT INTO form_batches (id, profile, status, state, updated_at)
    VALUES ($1, $2, $3, $4, NOW())
    ON CONFLICT (id) DO UPDATE SET
        profile = EXCLUDED.profile,
        status = EXCLUDED.status,
        state = EXCLUDED.state,
        updated_at = EXCLUDED.updated_at;
`

// Save implements schemas.BatchStore.
func (s *PgStore) Save(ctx context.Context, batchID string, batch *schemas.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch %s: %w", batchID, err)
	}
	if _, err := s.pool.Exec(ctx, upsertBatchSQL, batchID, batch.Profile, string(batch.Status), payload); err != nil {
		return fmt.Errorf("failed to upsert batch %s: %w", batchID, err)
	}
	return nil
}

// LoadAll implements schemas.BatchStore.
func (s *PgStore) LoadAll(ctx context.Context) (map[string]*schemas.Batch, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, state FROM form_batches ORDER BY updated_at ASC;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*schemas.Batch)
	for rows.Next() {
		var id string
		var state []byte
		if err := rows.Scan(&id, &state); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		var batch schemas.Batch
		if err := json.Unmarshal(state, &batch); err != nil {
			// One corrupt row must not hide every other batch.
			s.log.Error("Skipping undecodable batch state", zap.String("batch_id", id), zap.Error(err))
			continue
		}
		out[id] = &batch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
