package cost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai_orchestrator/internal/utils"
)

// Alert scopes
const (
	ScopeDaily     = "daily"
	ScopeMonthly   = "monthly"
	ScopeUserDaily = "user_daily"
)

// Thresholds are spend levels in cents that raise an alert. Zero disables.
type Thresholds struct {
	DailyCents     int64
	MonthlyCents   int64
	UserDailyCents int64
}

// Alert reports spend at or above a threshold
type Alert struct {
	Scope          string    `json:"scope"`
	UserID         string    `json:"user_id,omitempty"`
	SpentCents     int64     `json:"spent_cents"`
	ThresholdCents int64     `json:"threshold_cents"`
	PeriodStart    time.Time `json:"period_start"`
	RaisedAt       time.Time `json:"raised_at"`
}

func (a Alert) String() string {
	if a.UserID != "" {
		return fmt.Sprintf("%s spend for user %s is %d cents (threshold %d)", a.Scope, a.UserID, a.SpentCents, a.ThresholdCents)
	}
	return fmt.Sprintf("%s spend is %d cents (threshold %d)", a.Scope, a.SpentCents, a.ThresholdCents)
}

// AlertSink receives alerts in addition to the log
type AlertSink interface {
	SendAlert(ctx context.Context, alert Alert) error
}

// Alerter periodically compares spend with thresholds. Each threshold fires
// at most once per period.
type Alerter struct {
	tracker    *Tracker
	thresholds Thresholds
	interval   time.Duration
	sink       AlertSink
	logger     *utils.Logger

	mu    sync.Mutex
	fired map[string]time.Time

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewAlerter creates an alerter. sink may be nil.
func NewAlerter(tracker *Tracker, thresholds Thresholds, interval time.Duration, sink AlertSink) *Alerter {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Alerter{
		tracker:     tracker,
		thresholds:  thresholds,
		interval:    interval,
		sink:        sink,
		logger:      utils.NewLogger("cost-alerter"),
		fired:       make(map[string]time.Time),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start runs Check on every tick until Stop or ctx cancellation
func (a *Alerter) Start(ctx context.Context) {
	go a.run(ctx)
}

// Stop ends the alert loop
func (a *Alerter) Stop() error {
	close(a.stopChan)
	<-a.stoppedChan
	return nil
}

func (a *Alerter) run(ctx context.Context) {
	defer close(a.stoppedChan)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Check(ctx)
		case <-a.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Check evaluates every threshold once and returns the alerts it raised
func (a *Alerter) Check(ctx context.Context) []Alert {
	now := a.tracker.Now()
	day := DayPeriod(now)
	month := MonthPeriod(now)

	a.prune(month.From)

	var alerts []Alert

	if a.thresholds.DailyCents > 0 {
		spent, err := a.tracker.DailyCost(ctx, now)
		if err != nil {
			a.logger.Error("Failed to read daily cost", "error", err)
		} else if spent >= a.thresholds.DailyCents {
			alerts = a.raise(alerts, Alert{Scope: ScopeDaily, SpentCents: spent, ThresholdCents: a.thresholds.DailyCents, PeriodStart: day.From, RaisedAt: now})
		}
	}

	if a.thresholds.MonthlyCents > 0 {
		spent, err := a.tracker.MonthlyCost(ctx, now)
		if err != nil {
			a.logger.Error("Failed to read monthly cost", "error", err)
		} else if spent >= a.thresholds.MonthlyCents {
			alerts = a.raise(alerts, Alert{Scope: ScopeMonthly, SpentCents: spent, ThresholdCents: a.thresholds.MonthlyCents, PeriodStart: month.From, RaisedAt: now})
		}
	}

	if a.thresholds.UserDailyCents > 0 {
		perUser, err := a.tracker.CostPerUser(ctx, day)
		if err != nil {
			a.logger.Error("Failed to read per-user cost", "error", err)
		} else {
			for userID, spent := range perUser {
				if spent >= a.thresholds.UserDailyCents {
					alerts = a.raise(alerts, Alert{Scope: ScopeUserDaily, UserID: userID, SpentCents: spent, ThresholdCents: a.thresholds.UserDailyCents, PeriodStart: day.From, RaisedAt: now})
				}
			}
		}
	}

	for _, alert := range alerts {
		a.logger.Warn("Cost threshold exceeded", "scope", alert.Scope, "user_id", alert.UserID,
			"spent_cents", alert.SpentCents, "threshold_cents", alert.ThresholdCents)
		if a.sink != nil {
			if err := a.sink.SendAlert(ctx, alert); err != nil {
				a.logger.Error("Failed to deliver cost alert", "scope", alert.Scope, "error", err)
			}
		}
	}

	return alerts
}

func (a *Alerter) raise(alerts []Alert, alert Alert) []Alert {
	key := alert.Scope + ":" + alert.UserID + ":" + alert.PeriodStart.Format(time.RFC3339)

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.fired[key]; done {
		return alerts
	}
	a.fired[key] = alert.PeriodStart
	return append(alerts, alert)
}

// prune forgets alerts of periods that started before cutoff
func (a *Alerter) prune(cutoff time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key, start := range a.fired {
		if start.Before(cutoff) {
			delete(a.fired, key)
		}
	}
}
