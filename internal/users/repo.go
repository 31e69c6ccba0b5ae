package users

import (
	"context"
	"errors"

	"goalsectors-backend/internal/planner"
)

var ErrNotFound = errors.New("users: not found")

type Repo interface {
	// Ensure creates the user with default sectors if missing and returns it.
	Ensure(ctx context.Context, userID string) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	SetEnabledSectors(ctx context.Context, userID string, sectors []planner.Sector) error
}
