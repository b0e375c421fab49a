package cost

import (
	"context"
	"fmt"
	"time"

	"ai_orchestrator/internal/models"
)

// Ledger answers cost aggregations over persisted request records
type Ledger interface {
	SumCost(ctx context.Context, filter models.CostFilter) (int64, error)
	SumCostByModel(ctx context.Context, from, to time.Time) (map[string]int64, error)
	SumCostByUser(ctx context.Context, from, to time.Time) (map[string]int64, error)
}

// PricingSource resolves model pricing. *catalog.Catalog implements it.
type PricingSource interface {
	Pricing(model string) (models.ModelPricing, bool)
}

// Period is a half-open time range [From, To)
type Period struct {
	From time.Time
	To   time.Time
}

// DayPeriod returns the UTC calendar day containing date
func DayPeriod(date time.Time) Period {
	y, m, d := date.UTC().Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Period{From: from, To: from.AddDate(0, 0, 1)}
}

// MonthPeriod returns the UTC calendar month containing month
func MonthPeriod(month time.Time) Period {
	y, m, _ := month.UTC().Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}

// Validate rejects empty or inverted periods
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("period bounds are required")
	}
	if !p.From.Before(p.To) {
		return fmt.Errorf("period start must be before its end")
	}
	return nil
}

// Tracker converts usage into cents and aggregates spend
type Tracker struct {
	pricing PricingSource
	ledger  Ledger
	now     func() time.Time
}

// NewTracker creates a cost tracker
func NewTracker(pricing PricingSource, ledger Ledger) *Tracker {
	return &Tracker{
		pricing: pricing,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Now returns the tracker clock
func (t *Tracker) Now() time.Time {
	return t.now()
}

// EstimateCost returns the cost of one call in whole cents. Token-priced
// models round up; flat-priced models ignore token counts; unknown models cost 0.
func (t *Tracker) EstimateCost(model string, inputTokens, outputTokens int) int64 {
	p, ok := t.pricing.Pricing(model)
	if !ok {
		return 0
	}
	return p.CostCents(inputTokens, outputTokens)
}

// DailyCost returns total spend on the UTC day containing date
func (t *Tracker) DailyCost(ctx context.Context, date time.Time) (int64, error) {
	day := DayPeriod(date)
	return t.sum(ctx, models.CostFilter{From: day.From, To: day.To})
}

// MonthlyCost returns total spend in the UTC month containing month
func (t *Tracker) MonthlyCost(ctx context.Context, month time.Time) (int64, error) {
	p := MonthPeriod(month)
	return t.sum(ctx, models.CostFilter{From: p.From, To: p.To})
}

// CostByModel returns spend per model within p
func (t *Tracker) CostByModel(ctx context.Context, p Period) (map[string]int64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	totals, err := t.ledger.SumCostByModel(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cost by model: %w", err)
	}
	return totals, nil
}

// CostByUser returns the spend of one user within p
func (t *Tracker) CostByUser(ctx context.Context, userID string, p Period) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	return t.sum(ctx, models.CostFilter{From: p.From, To: p.To, UserID: userID})
}

// UserDailyCost returns the spend of one user on the UTC day containing date
func (t *Tracker) UserDailyCost(ctx context.Context, userID string, date time.Time) (int64, error) {
	return t.CostByUser(ctx, userID, DayPeriod(date))
}

// CostPerUser returns spend per user within p
func (t *Tracker) CostPerUser(ctx context.Context, p Period) (map[string]int64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	totals, err := t.ledger.SumCostByUser(ctx, p.From, p.To)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cost by user: %w", err)
	}
	return totals, nil
}

func (t *Tracker) sum(ctx context.Context, filter models.CostFilter) (int64, error) {
	total, err := t.ledger.SumCost(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate cost: %w", err)
	}
	return total, nil
}
