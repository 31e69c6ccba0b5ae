package airuns

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"goalsectors-backend/internal/shared/metrics"
	"goalsectors-backend/internal/tracing"
)

const feedbackEvalName = "User Feedback"

var ErrInvalidFeedback = errors.New("invalid feedback")

type Service struct {
	Repo Repo
	Sink *tracing.Sink
}

func NewService(repo Repo, sink *tracing.Sink) *Service {
	return &Service{Repo: repo, Sink: sink}
}

type FeedbackInput struct {
	UserID  string
	RunID   string
	TraceID string
	Score   int
	Reason  string
}

// SubmitFeedback stores a helpfulness vote for a run the user owns and
// forwards it to the trace sink. Score is 1 for helpful, 0 otherwise.
func (s *Service) SubmitFeedback(ctx context.Context, in FeedbackInput) (Feedback, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.RunID) == "" {
		return Feedback{}, ErrInvalidFeedback
	}
	if in.Score != 0 && in.Score != 1 {
		return Feedback{}, ErrInvalidFeedback
	}
	run, err := s.Repo.GetRun(ctx, in.UserID, in.RunID)
	if err != nil {
		return Feedback{}, err
	}

	helpful := in.Score == 1
	fb, err := s.Repo.LogFeedback(ctx, in.UserID, in.RunID, helpful, strings.TrimSpace(in.Reason))
	if err != nil {
		return Feedback{}, err
	}
	metrics.IncFeedback(helpful)

	traceID := strings.TrimSpace(in.TraceID)
	if traceID == "" {
		traceID = run.TraceID
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		if helpful {
			reason = "User liked"
		} else {
			reason = "User disliked"
		}
	}
	s.Sink.LogEval(traceID, feedbackEvalName, float64(in.Score), reason)
	return fb, nil
}

// Overview is the ops view of a user's recent runs.
type Overview struct {
	Runs          []RunWithEval  `json:"runs"`
	FeedbackStats FeedbackStats  `json:"feedbackStats"`
	TraceStatus   tracing.Status `json:"traceStatus"`
}

func (s *Service) Overview(ctx context.Context, userID string, limit int) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runs, err := s.Repo.ListRunsWithEvals(gctx, userID, limit)
		out.Runs = runs
		return err
	})
	g.Go(func() error {
		stats, err := s.Repo.FeedbackStats(gctx, userID)
		out.FeedbackStats = stats
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	out.TraceStatus = s.Sink.Status()
	return out, nil
}
