// Package memory holds map-backed repositories used for local runs
// (database.driver: memory) and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
)

type PrescriptionRepository struct {
	mu    sync.RWMutex
	items map[prescriptions.ID]*prescriptions.Prescription
	now   func() time.Time
}

func NewPrescriptionRepository() *PrescriptionRepository {
	return &PrescriptionRepository{
		items: make(map[prescriptions.ID]*prescriptions.Prescription),
		now:   time.Now,
	}
}

func (r *PrescriptionRepository) Save(_ context.Context, p *prescriptions.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.items[p.ID] = &cp
	return nil
}

func (r *PrescriptionRepository) Get(_ context.Context, userID string, id prescriptions.ID) (*prescriptions.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok || p.UserID != userID {
		return nil, prescriptions.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// byUser returns copies of the user's prescriptions, newest first.
func (r *PrescriptionRepository) byUser(userID string) []*prescriptions.Prescription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*prescriptions.Prescription, 0)
	for _, p := range r.items {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *PrescriptionRepository) Latest(_ context.Context, userID string, limit int) ([]*prescriptions.Prescription, error) {
	if limit <= 0 {
		limit = 20
	}
	list := r.byUser(userID)
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *PrescriptionRepository) Paginate(_ context.Context, userID string, page, pageSize int) ([]*prescriptions.Prescription, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	list := r.byUser(userID)
	start := (page - 1) * pageSize
	if start >= len(list) {
		return []*prescriptions.Prescription{}, nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], nil
}

func (r *PrescriptionRepository) Count(_ context.Context, userID string) (int64, error) {
	return int64(len(r.byUser(userID))), nil
}

func (r *PrescriptionRepository) Summary(_ context.Context, userID string, sinceDays int) (prescriptions.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := r.now().AddDate(0, 0, -sinceDays)
	var s prescriptions.Summary
	for _, p := range r.byUser(userID) {
		if p.CreatedAt.Before(since) {
			continue
		}
		s.Total++
		s.Medications += p.Counts.Medications
		s.HarmfulCombinations += p.Counts.HarmfulCombinations
		s.OverdoseWarnings += p.Counts.OverdoseWarnings
		s.SeriousSideEffects += p.Counts.SeriousSideEffects
		s.FoodInteractions += p.Counts.FoodInteractions
	}
	return s, nil
}
