package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/models"
)

// MemoryRequestStore keeps request records in process memory.
// It mirrors RequestRepository for standalone deployments and tests.
type MemoryRequestStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.RequestRecord
}

// NewMemoryRequestStore creates an empty store
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{records: make(map[uuid.UUID]*models.RequestRecord)}
}

// Create inserts a new record
func (s *MemoryRequestStore) Create(ctx context.Context, rec *models.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return ErrDuplicateRequest
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// GetByID returns a copy of the stored record
func (s *MemoryRequestStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RequestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return rec.Clone(), nil
}

// Update replaces the stored record while it is still pending or processing
func (s *MemoryRequestStore) Update(ctx context.Context, rec *models.RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return ErrRequestNotFound
	}
	if stored.Status.IsTerminal() {
		return fmt.Errorf("%w: status is %s", ErrInvalidTransition, stored.Status)
	}
	s.records[rec.ID] = rec.Clone()
	return nil
}

// ListByUser returns the most recent records of a user
func (s *MemoryRequestStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.RequestRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	var out []*models.RequestRecord
	for _, rec := range s.records {
		if rec.UserID != nil && *rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SumCost returns total cost_cents of the records matching filter
func (s *MemoryRequestStore) SumCost(ctx context.Context, filter models.CostFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, rec := range s.records {
		if filter.Matches(rec) {
			total += rec.CostCents
		}
	}
	return total, nil
}

// SumCostByModel returns cost per model for records created in [from, to)
func (s *MemoryRequestStore) SumCostByModel(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	return s.sumGrouped(from, to, func(rec *models.RequestRecord) (string, bool) {
		return rec.Model, true
	}), nil
}

// SumCostByUser returns cost per user for records created in [from, to)
func (s *MemoryRequestStore) SumCostByUser(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	return s.sumGrouped(from, to, func(rec *models.RequestRecord) (string, bool) {
		if rec.UserID == nil {
			return "", false
		}
		return *rec.UserID, true
	}), nil
}

func (s *MemoryRequestStore) sumGrouped(from, to time.Time, keyOf func(*models.RequestRecord) (string, bool)) map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := models.CostFilter{From: from, To: to}
	totals := make(map[string]int64)
	for _, rec := range s.records {
		if !filter.Matches(rec) {
			continue
		}
		if key, ok := keyOf(rec); ok {
			totals[key] += rec.CostCents
		}
	}
	return totals
}

// Len returns the number of stored records
func (s *MemoryRequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
