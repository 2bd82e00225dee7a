package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bryanwahyu/rxguard/internal/domain/users"
)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*users.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]*users.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, exists := r.byEmail[email]; exists {
		return users.ErrEmailTaken
	}
	// Generate UUID if not already set
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[email] = u.ID
	return nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) Update(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return users.ErrNotFound
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}
