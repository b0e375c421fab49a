package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return NewDBWithConn(sqlx.NewDb(mockDB, "postgres"), DefaultDBConfig()), mock
}

var requestColumnNames = []string{
	"id", "model", "task_type", "prompt", "system_prompt", "response", "status",
	"input_tokens", "output_tokens", "cost_cents", "latency_ms", "cached", "cache_key",
	"error_message", "metadata", "user_id", "attempts",
	"created_at", "updated_at", "started_at", "completed_at",
}

func TestRequestRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()
	rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "sys", "grade", nil, models.JSONB{"k": "v"})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()
	rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "", "grade", nil, nil)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), rec)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestRequestRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	rows := sqlmock.NewRows(requestColumnNames).AddRow(
		id.String(), "gpt-5.2", "deep_grading", "grade", "", "A", "completed",
		120, 40, 2, int64(900), false, nil,
		nil, []byte(`{"source":"api"}`), "alice", 1,
		now, now, now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(rows)

	rec, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, models.StatusCompleted, rec.Status)
	assert.Equal(t, "A", *rec.Response)
	assert.Equal(t, int64(900), *rec.LatencyMS)
	assert.Equal(t, "api", rec.Metadata["source"])
	assert.Equal(t, "alice", *rec.UserID)
	assert.Nil(t, rec.CacheKey)
}

func TestRequestRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()

	mock.ExpectQuery(regexp.QuoteMeta("FROM requests WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(requestColumnNames))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestRequestRepository_Update(t *testing.T) {
	updateSQL := regexp.QuoteMeta("WHERE id = $1 AND status IN ('pending', 'processing')")
	statusSQL := regexp.QuoteMeta("SELECT status FROM requests WHERE id = $1")

	t.Run("applied", func(t *testing.T) {
		db, mock := newMockDB(t)
		rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "", "grade", nil, nil)
		require.NoError(t, rec.MarkProcessing(time.Now()))

		mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, db.NewRequestRepository().Update(context.Background(), rec))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already terminal", func(t *testing.T) {
		db, mock := newMockDB(t)
		rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "", "grade", nil, nil)

		mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(statusSQL).WithArgs(rec.ID).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

		err := db.NewRequestRepository().Update(context.Background(), rec)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "", "grade", nil, nil)

		mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(statusSQL).WillReturnRows(sqlmock.NewRows([]string{"status"}))

		err := db.NewRequestRepository().Update(context.Background(), rec)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		db, mock := newMockDB(t)
		rec := models.NewRequestRecord("deep_grading", "gpt-5.2", "", "grade", nil, nil)

		mock.ExpectExec(updateSQL).WillReturnError(errors.New("connection reset"))
		err := db.NewRequestRepository().Update(context.Background(), rec)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestRequestRepository_SumCost(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT COALESCE(SUM(cost_cents), 0) FROM requests WHERE created_at >= $1 AND created_at < $2 AND user_id = $3",
	)).
		WithArgs(from, to, "alice").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(42)))

	total, err := repo.SumCost(context.Background(), models.CostFilter{From: from, To: to, UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_SumCostGrouped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := db.NewRequestRepository()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT model AS key, COALESCE(SUM(cost_cents), 0) AS total FROM requests WHERE created_at >= $1 AND created_at < $2 AND model IS NOT NULL GROUP BY model",
	)).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"key", "total"}).
			AddRow("gpt-5.2", int64(300)).
			AddRow("nanobanana-pro", int64(50)))

	byModel, err := repo.SumCostByModel(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gpt-5.2": 300, "nanobanana-pro": 50}, byModel)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id AS key")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"key", "total"}).AddRow("alice", int64(12)))

	byUser, err := repo.SumCostByUser(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 12}, byUser)
}

func TestBuildCostWhere(t *testing.T) {
	where, args := buildCostWhere(models.CostFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildCostWhere(models.CostFilter{Model: "gpt-5.2", UserID: "bob"})
	assert.Equal(t, " WHERE model = $1 AND user_id = $2", where)
	assert.Equal(t, []any{"gpt-5.2", "bob"}, args)
}
