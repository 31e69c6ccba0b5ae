package users

import (
	"time"

	"goalsectors-backend/internal/planner"
)

type User struct {
	ID             string           `json:"id"`
	EnabledSectors []planner.Sector `json:"enabledSectors"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// DefaultSectors is what a new user starts with.
func DefaultSectors() []planner.Sector {
	return append([]planner.Sector(nil), planner.AllSectors...)
}
