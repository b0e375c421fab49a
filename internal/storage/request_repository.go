package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ai_orchestrator/internal/models"
)

const requestColumns = `
	id, model, task_type, prompt, system_prompt, response, status,
	input_tokens, output_tokens, cost_cents, latency_ms, cached, cache_key,
	error_message, metadata, user_id, attempts,
	created_at, updated_at, started_at, completed_at`

// RequestRepository persists request records and answers cost aggregations
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new request record repository
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new record
func (r *RequestRepository) Create(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		rec.ID, rec.Model, rec.TaskType, rec.Prompt, rec.SystemPrompt, rec.Response, rec.Status,
		rec.InputTokens, rec.OutputTokens, rec.CostCents, rec.LatencyMS, rec.Cached, rec.CacheKey,
		rec.ErrorMessage, rec.Metadata, rec.UserID, rec.Attempts,
		rec.CreatedAt, rec.UpdatedAt, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("failed to create request record: %w", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	var rec models.RequestRecord
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &rec, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get request record: %w", err)
	}

	return &rec, nil
}

// Update writes the mutable fields of rec. The write only applies while the
// stored row is still pending or processing, so a terminal state is written once.
func (r *RequestRepository) Update(ctx context.Context, rec *models.RequestRecord) error {
	query := `
		UPDATE requests
		SET model = $2, status = $3, response = $4, input_tokens = $5, output_tokens = $6,
		    cost_cents = $7, latency_ms = $8, cached = $9, cache_key = $10, error_message = $11,
		    metadata = $12, attempts = $13, updated_at = $14, started_at = $15, completed_at = $16
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.conn.ExecContext(ctx, query,
		rec.ID, rec.Model, rec.Status, rec.Response, rec.InputTokens, rec.OutputTokens,
		rec.CostCents, rec.LatencyMS, rec.Cached, rec.CacheKey, rec.ErrorMessage,
		rec.Metadata, rec.Attempts, rec.UpdatedAt, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update request record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status models.Status
	err = r.db.conn.GetContext(ctx, &status, `SELECT status FROM requests WHERE id = $1`, rec.ID)
	if err == sql.ErrNoRows {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check request status: %w", err)
	}
	return fmt.Errorf("%w: status is %s", ErrInvalidTransition, status)
}

// ListByUser returns the most recent records of a user
func (r *RequestRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + requestColumns + ` FROM requests WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	var records []*models.RequestRecord
	if err := r.db.conn.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list request records: %w", err)
	}
	return records, nil
}

func buildCostWhere(filter models.CostFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	if filter.Model != "" {
		add("model = $%d", filter.Model)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// SumCost returns total cost_cents of the records matching filter
func (r *RequestRepository) SumCost(ctx context.Context, filter models.CostFilter) (int64, error) {
	where, args := buildCostWhere(filter)
	query := `SELECT COALESCE(SUM(cost_cents), 0) FROM requests` + where

	var total int64
	if err := r.db.conn.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to sum cost: %w", err)
	}
	return total, nil
}

type costGroup struct {
	Key   string `db:"key"`
	Total int64  `db:"total"`
}

func (r *RequestRepository) sumGrouped(ctx context.Context, column string, from, to time.Time) (map[string]int64, error) {
	where, args := buildCostWhere(models.CostFilter{From: from, To: to})
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}
	query := fmt.Sprintf(
		`SELECT %[1]s AS key, COALESCE(SUM(cost_cents), 0) AS total FROM requests%[2]s%[1]s IS NOT NULL GROUP BY %[1]s`,
		column, where,
	)

	var groups []costGroup
	if err := r.db.conn.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("failed to sum cost by %s: %w", column, err)
	}

	totals := make(map[string]int64, len(groups))
	for _, g := range groups {
		totals[g.Key] = g.Total
	}
	return totals, nil
}

// SumCostByModel returns cost per model for records created in [from, to)
func (r *RequestRepository) SumCostByModel(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	return r.sumGrouped(ctx, "model", from, to)
}

// SumCostByUser returns cost per user for records created in [from, to)
func (r *RequestRepository) SumCostByUser(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	return r.sumGrouped(ctx, "user_id", from, to)
}
