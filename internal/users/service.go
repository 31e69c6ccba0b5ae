package users

import (
	"context"
	"errors"
	"strings"

	"goalsectors-backend/internal/planner"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// EnsureUser returns the user, creating it with every sector enabled on first sight.
func (s *Service) EnsureUser(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.Ensure(ctx, userID)
}

// EnabledSectors returns the stored sector set for the user.
func (s *Service) EnabledSectors(ctx context.Context, userID string) ([]planner.Sector, error) {
	user, err := s.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.EnabledSectors, nil
}

// SetEnabledSectors replaces the user's sector set. This is the only mutation path for it.
func (s *Service) SetEnabledSectors(ctx context.Context, userID string, sectors []planner.Sector) ([]planner.Sector, error) {
	if _, err := s.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.Repo.SetEnabledSectors(ctx, userID, sectors); err != nil {
		return nil, err
	}
	return s.EnabledSectors(ctx, userID)
}
