package coach

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goalsectors-backend/internal/airuns"
	"goalsectors-backend/internal/llm"
	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/shared/metrics"
	"goalsectors-backend/internal/tracing"
	"goalsectors-backend/internal/users"
)

const (
	apologyMessage          = "I'm having trouble processing your request correctly. Please try again."
	validationFailedMessage = "Validation failed"
	maxMessageLen           = 4000
)

const (
	outcomeOK           = "ok"
	outcomeSchemaFailed = "schema_failed"
	outcomeError        = "error"
)

// TurnRequest is one user message. A non-nil EnabledSectors overrides the
// stored sector set for this turn.
type TurnRequest struct {
	UserID         string
	Message        string
	Mode           string
	EnabledSectors *[]planner.Sector
	PromptVersion  string
}

type TurnResult struct {
	AssistantMessage string     `json:"assistant_message"`
	ActionsApplied   int        `json:"actions_applied"`
	Actions          []Action   `json:"actions"`
	Eval             EvalResult `json:"eval"`
	LatencyMs        int64      `json:"latency_ms"`
	RunID            string     `json:"runId"`
	TraceID          string     `json:"traceId,omitempty"`
}

// Service coordinates a coach turn: context load, completion, guardrailed
// application, scoring and persistence.
type Service struct {
	Users        *users.Service
	Planner      planner.Repo
	Runs         airuns.Repo
	Orchestrator *Orchestrator
	Applier      *Applier
	Personas     llm.PersonaCatalog
	Sink         *tracing.Sink
	Logger       *zap.Logger
	Now          func() time.Time
	DefaultMode  string

	// DefaultPromptVersion applies when a request names no prompt version.
	DefaultPromptVersion string
}

type turnContext struct {
	today      string
	sectors    []planner.Sector
	tasks      []planner.Task
	habits     []planner.Habit
	streaks    []planner.HabitStreak
	goals      []planner.Goal
	milestones map[string][]planner.Milestone
}

// Turn runs one coach turn. Only request validation and storage failures
// on the context load or run log surface as errors.
func (s *Service) Turn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	start := s.now()
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)
	if req.UserID == "" || req.Message == "" {
		return TurnResult{}, fmt.Errorf("%w: userId and message are required", ErrInvalidRequest)
	}
	if len([]rune(req.Message)) > maxMessageLen {
		return TurnResult{}, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidRequest, maxMessageLen)
	}
	if req.Mode == "" {
		req.Mode = s.DefaultMode
	}
	if req.PromptVersion == "" {
		req.PromptVersion = s.DefaultPromptVersion
	}
	mode := s.Personas.Mode(req.Mode)
	version := s.Personas.Version(req.PromptVersion)
	log := s.logger().With(zap.String("user_id", req.UserID), zap.String("request_id", requestIDFromContext(ctx)))

	traceID := s.Sink.StartTrace(ctx, "coach_turn", map[string]any{
		"user_id":        req.UserID,
		"mode":           mode,
		"prompt_version": version,
	})

	tc, err := s.loadContext(ctx, req, start)
	if err != nil {
		metrics.IncTurn(outcomeError)
		s.Sink.EndTrace(traceID, map[string]any{"success": false, "error": err.Error()})
		return TurnResult{}, fmt.Errorf("load turn context: %w", err)
	}

	pc := NewPromptContext(tc.today, tc.sectors, tc.tasks, tc.habits, tc.streaks, tc.goals, tc.milestones)
	prompt, err := BuildPrompt(s.Personas, mode, version, pc, req.Message)
	if err != nil {
		metrics.IncTurn(outcomeError)
		s.Sink.EndTrace(traceID, map[string]any{"success": false, "error": err.Error()})
		return TurnResult{}, err
	}
	s.Sink.Event(traceID, "prompt_built", map[string]any{"persona": prompt.Persona, "context": prompt.ContextJSON})

	completion, err := s.Orchestrator.Run(ctx, traceID, prompt.Messages)
	if err != nil {
		metrics.IncTurn(outcomeError)
		s.Sink.EndTrace(traceID, map[string]any{"success": false, "error": err.Error()})
		return TurnResult{}, fmt.Errorf("complete turn: %w", err)
	}

	if !completion.Validation.OK {
		return s.finishInvalid(ctx, log, req, version, tc, completion, traceID, start)
	}
	return s.finishValid(ctx, log, req, version, tc, completion, traceID, start)
}

func (s *Service) finishInvalid(ctx context.Context, log *zap.Logger, req TurnRequest, version string, tc turnContext, completion Completion, traceID string, start time.Time) (TurnResult, error) {
	latency := s.since(start)
	eval := Evaluate(EvalInput{
		EnabledSectors:   tc.sectors,
		UserMessage:      req.Message,
		AssistantMessage: validationFailedMessage,
		Actions:          []Action{},
		SchemaValid:      false,
		LatencyMs:        latency,
	})

	runID, err := s.persist(ctx, log, "", req, version, completion, false, latency, traceID, eval)
	if err != nil {
		metrics.IncTurn(outcomeError)
		s.Sink.EndTrace(traceID, map[string]any{"success": false, "error": err.Error()})
		return TurnResult{}, err
	}

	metrics.IncTurn(outcomeSchemaFailed)
	s.observe(eval, latency)
	s.Sink.EndTrace(traceID, map[string]any{
		"success":      false,
		"error":        completion.Validation.Error,
		"raw_response": completion.Raw,
		"score_total":  eval.ScoreTotal,
	})
	s.logScores(traceID, eval)
	log.Warn("coach.turn_schema_failed", zap.String("run_id", runID), zap.String("error", completion.Validation.Error))

	return TurnResult{
		AssistantMessage: apologyMessage,
		ActionsApplied:   0,
		Actions:          []Action{},
		Eval:             eval,
		LatencyMs:        latency,
		RunID:            runID,
		TraceID:          traceID,
	}, nil
}

func (s *Service) finishValid(ctx context.Context, log *zap.Logger, req TurnRequest, version string, tc turnContext, completion Completion, traceID string, start time.Time) (TurnResult, error) {
	data := completion.Validation.Data
	runID := uuid.NewString()
	report := s.Applier.Apply(ctx, ApplyInput{
		UserID:  req.UserID,
		RunID:   runID,
		Today:   tc.today,
		Sectors: tc.sectors,
		Tasks:   tc.tasks,
		Habits:  tc.habits,
		Goals:   tc.goals,
		Actions: data.Actions,
	})
	s.Sink.Event(traceID, "actions_applied", map[string]any{
		"proposed": len(data.Actions),
		"applied":  report.Applied,
		"skipped":  len(report.Skipped()),
	})

	message := data.AssistantMessage
	if len(data.Actions) > 0 && report.Applied == 0 {
		message += BlockedSectorNote(data.Actions, tc.sectors)
	}

	latency := s.since(start)
	eval := Evaluate(EvalInput{
		EnabledSectors:   tc.sectors,
		UserMessage:      req.Message,
		AssistantMessage: message,
		Actions:          data.Actions,
		SchemaValid:      true,
		LatencyMs:        latency,
	})

	runID, err := s.persist(ctx, log, runID, req, version, completion, true, latency, traceID, eval)
	if err != nil {
		metrics.IncTurn(outcomeError)
		s.Sink.EndTrace(traceID, map[string]any{"success": false, "error": err.Error()})
		return TurnResult{}, err
	}

	metrics.IncTurn(outcomeOK)
	s.observe(eval, latency)
	s.Sink.EndTrace(traceID, map[string]any{
		"success":         true,
		"actions_applied": report.Applied,
		"fallback_used":   completion.FallbackUsed,
		"score_total":     eval.ScoreTotal,
	})
	s.logScores(traceID, eval)
	log.Info("coach.turn",
		zap.String("run_id", runID),
		zap.Int("actions_proposed", len(data.Actions)),
		zap.Int("actions_applied", report.Applied),
		zap.Bool("fallback_used", completion.FallbackUsed),
		zap.Int("score_total", eval.ScoreTotal),
		zap.Int64("latency_ms", latency),
	)

	return TurnResult{
		AssistantMessage: message,
		ActionsApplied:   report.Applied,
		Actions:          data.Actions,
		Eval:             eval,
		LatencyMs:        latency,
		RunID:            runID,
		TraceID:          traceID,
	}, nil
}

// persist logs the run and its eval. A failed eval write is logged and absorbed.
func (s *Service) persist(ctx context.Context, log *zap.Logger, runID string, req TurnRequest, version string, completion Completion, valid bool, latency int64, traceID string, eval EvalResult) (string, error) {
	pctx := backgroundWithRequestID(ctx)
	run, err := s.Runs.LogRun(pctx, airuns.NewRun{
		ID:            runID,
		UserID:        req.UserID,
		Route:         airuns.RouteCoach,
		Prompt:        completion.Messages[len(completion.Messages)-1].Content,
		Response:      completion.Raw,
		SchemaValid:   valid,
		LatencyMs:     latency,
		PromptVersion: version,
		TraceID:       traceID,
	})
	if err != nil {
		return "", fmt.Errorf("log run: %w", err)
	}
	if err := s.Runs.LogEval(pctx, airuns.Eval{
		RunID:           run.ID,
		UserID:          req.UserID,
		ScoreTotal:      eval.ScoreTotal,
		SchemaScore:     eval.Scores.Schema,
		SectorScore:     eval.Scores.SectorCompliance,
		UsefulnessScore: eval.Scores.Usefulness,
		EfficiencyScore: eval.Scores.Efficiency,
		ViolatedSector:  eval.ViolatedSector,
		EmptyActions:    eval.EmptyActions,
		Reasons:         eval.Reasons,
	}); err != nil {
		log.Error("coach.eval_persist_failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run.ID, nil
}

func (s *Service) loadContext(ctx context.Context, req TurnRequest, start time.Time) (turnContext, error) {
	if _, err := s.Users.EnsureUser(ctx, req.UserID); err != nil {
		return turnContext{}, fmt.Errorf("ensure user: %w", err)
	}

	tc := turnContext{today: start.Format(planner.DateLayout)}
	g, gctx := errgroup.WithContext(ctx)
	if req.EnabledSectors != nil {
		tc.sectors = append([]planner.Sector{}, (*req.EnabledSectors)...)
	} else {
		g.Go(func() error {
			sectors, err := s.Users.EnabledSectors(gctx, req.UserID)
			tc.sectors = sectors
			return err
		})
	}
	g.Go(func() error {
		tasks, err := s.Planner.ListTasksForDate(gctx, req.UserID, tc.today)
		tc.tasks = tasks
		return err
	})
	g.Go(func() error {
		habits, err := s.Planner.ListHabits(gctx, req.UserID)
		tc.habits = habits
		return err
	})
	g.Go(func() error {
		streaks, err := s.Planner.GetHabitStreaks(gctx, req.UserID, tc.today)
		tc.streaks = streaks
		return err
	})
	g.Go(func() error {
		goals, err := s.Planner.ListGoals(gctx, req.UserID)
		if err != nil {
			return err
		}
		tc.goals = goals
		milestones, err := s.loadMilestones(gctx, req.UserID, goals)
		tc.milestones = milestones
		return err
	})
	if err := g.Wait(); err != nil {
		return turnContext{}, err
	}
	return tc, nil
}

func (s *Service) loadMilestones(ctx context.Context, userID string, goals []planner.Goal) (map[string][]planner.Milestone, error) {
	out := make(map[string][]planner.Milestone, len(goals))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, goal := range goals {
		goalID := goal.ID
		g.Go(func() error {
			ms, err := s.Planner.ListMilestones(gctx, userID, goalID)
			if err != nil {
				return fmt.Errorf("list milestones for goal %s: %w", goalID, err)
			}
			mu.Lock()
			out[goalID] = ms
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) logScores(traceID string, eval EvalResult) {
	reason := strings.Join(eval.Reasons, "; ")
	s.Sink.LogEval(traceID, "Total Score", float64(eval.ScoreTotal), reason)
	s.Sink.LogEval(traceID, "Schema Score", float64(eval.Scores.Schema), "")
	s.Sink.LogEval(traceID, "Sector Score", float64(eval.Scores.SectorCompliance), "")
	s.Sink.LogEval(traceID, "Usefulness", float64(eval.Scores.Usefulness), "")
	s.Sink.LogEval(traceID, "Efficiency", float64(eval.Scores.Efficiency), "")
}

func (s *Service) observe(eval EvalResult, latency int64) {
	metrics.ObserveEvalScore(eval.ScoreTotal)
	metrics.ObserveTurnDurationMs(float64(latency))
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) since(start time.Time) int64 {
	ms := s.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
