package airuns

import "context"

// Repo persists coach runs, their evals and user feedback.
type Repo interface {
	LogRun(ctx context.Context, run NewRun) (Run, error)
	LogEval(ctx context.Context, eval Eval) error
	GetRun(ctx context.Context, userID, runID string) (Run, error)
	LogFeedback(ctx context.Context, userID, runID string, helpful bool, comment string) (Feedback, error)
	ListRunsWithEvals(ctx context.Context, userID string, limit int) ([]RunWithEval, error)
	FeedbackStats(ctx context.Context, userID string) (FeedbackStats, error)
}
