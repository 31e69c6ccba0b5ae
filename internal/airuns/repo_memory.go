package airuns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	runs     []Run
	evals    map[string]Eval
	feedback []Feedback
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		evals: make(map[string]Eval),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) LogRun(ctx context.Context, in NewRun) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	run := Run{
		ID:            in.id(),
		UserID:        in.UserID,
		Route:         in.Route,
		Prompt:        in.Prompt,
		Response:      in.Response,
		SchemaValid:   in.SchemaValid,
		LatencyMs:     in.LatencyMs,
		PromptVersion: in.PromptVersion,
		TraceID:       in.TraceID,
		CreatedAt:     r.now(),
	}
	r.mu.Lock()
	r.runs = append(r.runs, run)
	r.mu.Unlock()
	return run, nil
}

func (r *MemoryRepo) LogEval(ctx context.Context, eval Eval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = r.now()
	}
	eval.Reasons = append([]string{}, eval.Reasons...)
	r.evals[eval.RunID] = eval
	return nil
}

func (r *MemoryRepo) GetRun(ctx context.Context, userID, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.runs {
		if run.ID == runID && run.UserID == userID {
			return run, nil
		}
	}
	return Run{}, ErrNotFound
}

func (r *MemoryRepo) LogFeedback(ctx context.Context, userID, runID string, helpful bool, comment string) (Feedback, error) {
	if err := ctx.Err(); err != nil {
		return Feedback{}, err
	}
	fb := Feedback{
		ID:        uuid.NewString(),
		UserID:    userID,
		RunID:     runID,
		Helpful:   helpful,
		Comment:   comment,
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	r.feedback = append(r.feedback, fb)
	r.mu.Unlock()
	return fb, nil
}

func (r *MemoryRepo) ListRunsWithEvals(ctx context.Context, userID string, limit int) ([]RunWithEval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []RunWithEval{}
	for i := len(r.runs) - 1; i >= 0; i-- {
		run := r.runs[i]
		if run.UserID != userID {
			continue
		}
		item := RunWithEval{Run: run}
		if eval, ok := r.evals[run.ID]; ok {
			eval.Reasons = append([]string{}, eval.Reasons...)
			item.Eval = &eval
		}
		for j := len(r.feedback) - 1; j >= 0; j-- {
			if r.feedback[j].RunID == run.ID {
				fb := r.feedback[j]
				item.Feedback = &fb
				break
			}
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) FeedbackStats(ctx context.Context, userID string) (FeedbackStats, error) {
	if err := ctx.Err(); err != nil {
		return FeedbackStats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var helpful, total int
	for _, fb := range r.feedback {
		if fb.UserID != userID {
			continue
		}
		total++
		if fb.Helpful {
			helpful++
		}
	}
	return computeStats(helpful, total), nil
}
