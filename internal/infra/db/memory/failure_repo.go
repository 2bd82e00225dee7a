package memory

import (
	"context"
	"sync"

	"github.com/bryanwahyu/rxguard/internal/domain/failures"
)

type FailureRepository struct {
	mu     sync.Mutex
	nextID int64
	items  []*failures.Failure
}

func NewFailureRepository() *FailureRepository {
	return &FailureRepository{}
}

func (r *FailureRepository) Save(_ context.Context, f *failures.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	f.ID = r.nextID
	cp := *f
	r.items = append(r.items, &cp)
	return nil
}

// ListByUser returns the user's failures, newest first.
func (r *FailureRepository) ListByUser(_ context.Context, userID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*failures.Failure, 0)
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		if r.items[i].UserID == userID {
			cp := *r.items[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
