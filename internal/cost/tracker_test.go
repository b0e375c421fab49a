package cost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/catalog"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/storage"
)

func addRecord(t *testing.T, store *storage.MemoryRequestStore, model, user string, cost int64, at time.Time) {
	t.Helper()
	var userID *string
	if user != "" {
		userID = &user
	}
	rec := models.NewRequestRecord("content_generation", model, "", "p", userID, nil)
	rec.CostCents = cost
	rec.CreatedAt = at
	require.NoError(t, store.Create(context.Background(), rec))
}

func TestEstimateCost(t *testing.T) {
	tracker := NewTracker(catalog.MustDefault(), storage.NewMemoryRequestStore())

	tests := []struct {
		name    string
		model   string
		in, out int
		want    int64
	}{
		{name: "flat image", model: "nanobanana-pro", in: 0, out: 0, want: 10},
		{name: "flat image ignores tokens", model: "nanobanana-pro", in: 900_000, out: 12_345, want: 10},
		{name: "flat audio", model: "gpt-4o-mini-tts", in: 50, out: 50, want: 2},
		{name: "token rounds up", model: "gpt-5.1-codex-mini", in: 1000, out: 1000, want: 1},
		{name: "token exact", model: "claude-sonnet-4.5", in: 1_000_000, out: 1_000_000, want: 1800},
		{name: "zero tokens", model: "gpt-5.2", in: 0, out: 0, want: 0},
		{name: "unknown model", model: "mystery", in: 1000, out: 1000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tracker.EstimateCost(tt.model, tt.in, tt.out))
		})
	}
}

func TestEstimateCost_DeterministicForAllPricedModels(t *testing.T) {
	cat := catalog.MustDefault()
	tracker := NewTracker(cat, storage.NewMemoryRequestStore())

	for model, pricing := range cat.Snapshot().Pricing {
		first := tracker.EstimateCost(model, 0, 0)
		assert.GreaterOrEqual(t, first, int64(0), model)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, tracker.EstimateCost(model, 0, 0), model)
		}
		if pricing.IsFlat() {
			assert.Equal(t, first, tracker.EstimateCost(model, 123, 456), model)
		}
	}
}

func TestTracker_Aggregates(t *testing.T) {
	store := storage.NewMemoryRequestStore()
	tracker := NewTracker(catalog.MustDefault(), store)
	ctx := context.Background()

	day := time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)
	addRecord(t, store, "gpt-5.2", "alice", 30, day.Add(time.Hour))
	addRecord(t, store, "nanobanana-pro", "alice", 10, day.Add(2*time.Hour))
	addRecord(t, store, "gpt-5.2", "bob", 5, day.Add(23*time.Hour))
	addRecord(t, store, "gpt-5.2", "bob", 100, day.AddDate(0, 0, -1))
	addRecord(t, store, "gpt-5.2", "bob", 1000, day.AddDate(0, 1, 0))

	daily, err := tracker.DailyCost(ctx, day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(45), daily)

	monthly, err := tracker.MonthlyCost(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int64(145), monthly)

	byModel, err := tracker.CostByModel(ctx, DayPeriod(day))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gpt-5.2": 35, "nanobanana-pro": 10}, byModel)

	alice, err := tracker.CostByUser(ctx, "alice", MonthPeriod(day))
	require.NoError(t, err)
	assert.Equal(t, int64(40), alice)

	bobToday, err := tracker.UserDailyCost(ctx, "bob", day)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bobToday)
}

func TestTracker_InvalidPeriod(t *testing.T) {
	tracker := NewTracker(catalog.MustDefault(), storage.NewMemoryRequestStore())
	now := time.Now()

	_, err := tracker.CostByModel(context.Background(), Period{From: now, To: now})
	assert.Error(t, err)
	_, err = tracker.CostByUser(context.Background(), "alice", Period{})
	assert.Error(t, err)
}

type brokenLedger struct{}

func (brokenLedger) SumCost(context.Context, models.CostFilter) (int64, error) {
	return 0, errors.New("ledger down")
}
func (brokenLedger) SumCostByModel(context.Context, time.Time, time.Time) (map[string]int64, error) {
	return nil, errors.New("ledger down")
}
func (brokenLedger) SumCostByUser(context.Context, time.Time, time.Time) (map[string]int64, error) {
	return nil, errors.New("ledger down")
}

func TestTracker_LedgerErrors(t *testing.T) {
	tracker := NewTracker(catalog.MustDefault(), brokenLedger{})
	_, err := tracker.DailyCost(context.Background(), time.Now())
	assert.ErrorContains(t, err, "ledger down")
}

func TestPeriods(t *testing.T) {
	at := time.Date(2026, 2, 28, 23, 30, 0, 0, time.UTC)

	day := DayPeriod(at)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), day.From)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), day.To)

	month := MonthPeriod(at)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), month.From)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), month.To)
}
