package users

import (
	"context"
	"sync"
	"time"

	"goalsectors-backend/internal/planner"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) Ensure(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[userID]; ok {
		return cloneUser(existing), nil
	}
	now := time.Now().UTC()
	user := User{
		ID:             userID,
		EnabledSectors: DefaultSectors(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.users[userID] = user
	return cloneUser(user), nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryRepo) SetEnabledSectors(ctx context.Context, userID string, sectors []planner.Sector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.EnabledSectors = append([]planner.Sector{}, sectors...)
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user
	return nil
}

func cloneUser(u User) User {
	u.EnabledSectors = append([]planner.Sector{}, u.EnabledSectors...)
	return u
}
