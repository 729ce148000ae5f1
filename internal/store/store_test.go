package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for
// more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func sampleBatch(id string) *schemas.Batch {
	return &schemas.Batch{
		ID:        id,
		Profile:   "p1",
		Status:    schemas.BatchScheduled,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// -- MemoryStore --

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	batch := sampleBatch("b1")
	require.NoError(t, s.Save(ctx, "b1", batch))

	// Mutating the original after save must not leak into the store.
	batch.Status = schemas.BatchFailed

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "b1")
	assert.Equal(t, schemas.BatchScheduled, loaded["b1"].Status)
	assert.Equal(t, "p1", loaded["b1"].Profile)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	assert.Error(t, NewMemoryStore().Save(context.Background(), "", sampleBatch("x")))
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "b1", sampleBatch("b1")))
	updated := sampleBatch("b1")
	updated.Status = schemas.BatchCompleted
	require.NoError(t, s.Save(ctx, "b1", updated))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, schemas.BatchCompleted, loaded["b1"].Status)
}

// -- SerialStore --

func TestSerialStoreOrdersConcurrentWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	inner := NewMemoryStore()
	s := NewSerialStore(inner, zap.NewNop())
	defer s.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b := sampleBatch("shared")
			b.Progress.Processed = n
			assert.NoError(t, s.Save(ctx, "shared", b))
		}(i)
	}
	wg.Wait()

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "shared")
	// Whichever write landed last, state decodes cleanly: no torn writes.
	assert.Equal(t, "p1", loaded["shared"].Profile)
}

func TestSerialStoreSaveAfterClose(t *testing.T) {
	s := NewSerialStore(NewMemoryStore(), zap.NewNop())
	s.Close()
	s.Close() // idempotent

	err := s.Save(context.Background(), "b1", sampleBatch("b1"))
	assert.Error(t, err)
}

func TestSerialStorePropagatesInnerError(t *testing.T) {
	s := NewSerialStore(failingStore{}, zap.NewNop())
	defer s.Close()

	err := s.Save(context.Background(), "b1", sampleBatch("b1"))
	assert.ErrorContains(t, err, "disk full")
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, batchID string, batch *schemas.Batch) error {
	return errors.New("disk full")
}

func (failingStore) LoadAll(ctx context.Context) (map[string]*schemas.Batch, error) {
	return nil, nil
}

// -- PgStore --

func TestNewPgStorePingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = NewPgStore(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgStoreSave(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	s, err := NewPgStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	batch := sampleBatch("b1")
	mockPool.ExpectExec(flexibleSQLMatcher(upsertBatchSQL)).
		WithArgs("b1", "p1", "scheduled", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), "b1", batch))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPgStoreSaveSurfacesExecError(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	s, err := NewPgStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	execErr := errors.New("connection reset")
	mockPool.ExpectExec(flexibleSQLMatcher(upsertBatchSQL)).
		WithArgs("b1", "p1", "scheduled", pgxmock.AnyArg()).
		WillReturnError(execErr)

	err = s.Save(context.Background(), "b1", sampleBatch("b1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, execErr)
}

func TestPgStoreLoadAll(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	s, err := NewPgStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	state, err := json.Marshal(sampleBatch("b1"))
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "state"}).
		AddRow("b1", state).
		AddRow("broken", []byte(`{not json`))
	mockPool.ExpectQuery(`SELECT id, state FROM form_batches`).WillReturnRows(rows)

	loaded, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1, "corrupt rows are skipped, not fatal")
	assert.Equal(t, "p1", loaded["b1"].Profile)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
