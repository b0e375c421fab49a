package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
)

func seedRecord(t *testing.T, s *MemoryRequestStore, model, user string, cost int64, createdAt time.Time) *models.RequestRecord {
	t.Helper()
	var userID *string
	if user != "" {
		userID = &user
	}
	rec := models.NewRequestRecord("content_generation", model, "", "prompt", userID, nil)
	rec.CostCents = cost
	rec.CreatedAt = createdAt
	require.NoError(t, s.Create(context.Background(), rec))
	return rec
}

func TestMemoryRequestStore_CreateGet(t *testing.T) {
	s := NewMemoryRequestStore()
	ctx := context.Background()

	rec := models.NewRequestRecord("summarization", "gemini-2.5-flash", "", "text", nil, nil)
	require.NoError(t, s.Create(ctx, rec))
	assert.ErrorIs(t, s.Create(ctx, rec), ErrDuplicateRequest)

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	// returned records are copies
	got.Model = "changed"
	again, _ := s.GetByID(ctx, rec.ID)
	assert.Equal(t, "gemini-2.5-flash", again.Model)

	_, err = s.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestMemoryRequestStore_UpdateIsConditional(t *testing.T) {
	s := NewMemoryRequestStore()
	ctx := context.Background()

	rec := models.NewRequestRecord("summarization", "gemini-2.5-flash", "", "text", nil, nil)
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, rec.MarkProcessing(time.Now()))
	require.NoError(t, s.Update(ctx, rec))

	first := rec.Clone()
	require.NoError(t, first.MarkCompleted("gemini-2.5-flash", "summary", 10, 5, 1, 20, time.Now()))
	require.NoError(t, s.Update(ctx, first))

	second := rec.Clone()
	require.NoError(t, second.MarkFailed("late", time.Now()))
	assert.ErrorIs(t, s.Update(ctx, second), ErrInvalidTransition)

	stored, _ := s.GetByID(ctx, rec.ID)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	assert.ErrorIs(t, s.Update(ctx, models.NewRequestRecord("x", "y", "", "z", nil, nil)), ErrRequestNotFound)
}

func TestMemoryRequestStore_CostAggregates(t *testing.T) {
	s := NewMemoryRequestStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedRecord(t, s, "gpt-5.2", "alice", 40, day.Add(time.Hour))
	seedRecord(t, s, "gpt-5.2", "bob", 10, day.Add(2*time.Hour))
	seedRecord(t, s, "claude-sonnet-4.5", "alice", 25, day.Add(3*time.Hour))
	seedRecord(t, s, "gpt-5.2", "", 7, day.Add(4*time.Hour))
	seedRecord(t, s, "gpt-5.2", "alice", 100, day.AddDate(0, 0, 1))

	total, err := s.SumCost(ctx, models.CostFilter{From: day, To: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(82), total)

	aliceDay, err := s.SumCost(ctx, models.CostFilter{From: day, To: day.AddDate(0, 0, 1), UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(65), aliceDay)

	byModel, err := s.SumCostByModel(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gpt-5.2": 57, "claude-sonnet-4.5": 25}, byModel)

	byUser, err := s.SumCostByUser(ctx, day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"alice": 165, "bob": 10}, byUser)
}

func TestMemoryRequestStore_ListByUser(t *testing.T) {
	s := NewMemoryRequestStore()
	base := time.Now()
	seedRecord(t, s, "gpt-5.2", "alice", 1, base)
	newest := seedRecord(t, s, "gpt-5.2", "alice", 1, base.Add(time.Minute))
	seedRecord(t, s, "gpt-5.2", "bob", 1, base)

	list, err := s.ListByUser(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, newest.ID, list[0].ID)
}
