package health

import (
	"context"
	"time"

	"goalsectors-backend/internal/tracing"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports liveness plus the state of the optional dependencies.
type Service struct {
	DB       Pinger
	Provider string
	Sink     *tracing.Sink
}

func NewService(db Pinger, provider string, sink *tracing.Sink) *Service {
	return &Service{DB: db, Provider: provider, Sink: sink}
}

type Status struct {
	OK       bool           `json:"ok"`
	Storage  string         `json:"storage"`
	Provider string         `json:"provider"`
	Trace    tracing.Status `json:"trace"`
}

// Status never fails the liveness flag for a degraded dependency; the turn
// pipeline has a fallback for each of them. Storage is "memory" without a
// database, otherwise "postgres" or "unreachable".
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Storage: "memory", Provider: "fallback"}
	if s == nil {
		return st
	}
	if s.Provider != "" {
		st.Provider = s.Provider
	}
	st.Trace = s.Sink.Status()
	if s.DB != nil {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		st.Storage = "postgres"
		if err := s.DB.PingContext(ctx); err != nil {
			st.Storage = "unreachable"
		}
	}
	return st
}
