package models

import "time"

// CostFilter narrows a cost aggregation. Zero values match everything.
// From is inclusive and To is exclusive.
type CostFilter struct {
	From   time.Time
	To     time.Time
	Model  string
	UserID string
}

// Matches reports whether r falls inside the filter
func (f CostFilter) Matches(r *RequestRecord) bool {
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !r.CreatedAt.Before(f.To) {
		return false
	}
	if f.Model != "" && r.Model != f.Model {
		return false
	}
	if f.UserID != "" && (r.UserID == nil || *r.UserID != f.UserID) {
		return false
	}
	return true
}
