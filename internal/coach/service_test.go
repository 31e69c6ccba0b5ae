package coach

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"goalsectors-backend/internal/airuns"
	"goalsectors-backend/internal/llm"
	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/tracing"
	"goalsectors-backend/internal/users"
)

type fixture struct {
	svc     *Service
	planner *planner.MemoryRepo
	runs    *airuns.MemoryRepo
	users   *users.MemoryRepo
}

func newFixture(t *testing.T, provider llm.Completer, sink *tracing.Sink) fixture {
	t.Helper()
	plannerRepo := planner.NewMemoryRepo()
	runRepo := airuns.NewMemoryRepo()
	userRepo := users.NewMemoryRepo()
	return fixture{
		svc:     newTestService(plannerRepo, runRepo, userRepo, provider, sink, zap.NewNop()),
		planner: plannerRepo,
		runs:    runRepo,
		users:   userRepo,
	}
}

func newTestService(p planner.Repo, runs airuns.Repo, u users.Repo, provider llm.Completer, sink *tracing.Sink, logger *zap.Logger) *Service {
	if sink == nil {
		sink = tracing.NewSink(nil)
	}
	return &Service{
		Users:   users.NewService(u),
		Planner: p,
		Runs:    runs,
		Orchestrator: &Orchestrator{
			Provider: provider,
			Fallback: NewFallback(fixedClock),
			Sink:     sink,
			Logger:   logger,
		},
		Applier:  NewApplier(p, logger),
		Personas: llm.MustLoadPersonas(),
		Sink:     sink,
		Logger:   logger,
		Now:      fixedClock,
	}
}

func sectorsPtr(s ...planner.Sector) *[]planner.Sector {
	out := append([]planner.Sector{}, s...)
	return &out
}

func TestTurnScenarioEnabledSectorApplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	res, err := f.svc.Turn(ctx, TurnRequest{
		UserID:         "u1",
		Message:        "Create a task to buy milk tomorrow",
		EnabledSectors: sectorsPtr(planner.SectorProductivity),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.ActionsApplied)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, KindCreateTask, res.Actions[0].Kind())
	assert.Equal(t, 25, res.Eval.Scores.SectorCompliance)
	assert.Equal(t, 100, res.Eval.ScoreTotal)
	assert.Empty(t, res.TraceID)
	assert.NotEmpty(t, res.RunID)

	tasks, err := f.planner.ListTasksForDate(ctx, "u1", "2026-03-11")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.Equal(t, res.RunID, tasks[0].SourceRunID)

	runs, err := f.runs.ListRunsWithEvals(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.True(t, runs[0].SchemaValid)
	assert.Equal(t, "A", runs[0].PromptVersion)
	require.NotNil(t, runs[0].Eval)
	assert.Equal(t, 100, runs[0].Eval.ScoreTotal)
}

func TestTurnScenarioDisabledSectorAddsNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	res, err := f.svc.Turn(ctx, TurnRequest{
		UserID:         "u1",
		Message:        "Create a task to buy milk tomorrow",
		EnabledSectors: sectorsPtr(),
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.ActionsApplied)
	assert.True(t, res.Eval.ViolatedSector)
	assert.Contains(t, res.AssistantMessage, "**Productivity**")
	assert.Contains(t, res.Eval.Reasons, "Action CREATE_TASK attempted in disabled sector: Productivity")

	tasks, err := f.planner.ListTasksForDate(ctx, "u1", "2026-03-11")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTurnUsesStoredSectorsWhenCallerOmitsThem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	_, err := f.users.Ensure(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, f.users.SetEnabledSectors(ctx, "u1", []planner.Sector{planner.SectorHabits}))

	res, err := f.svc.Turn(ctx, TurnRequest{UserID: "u1", Message: "Create a task to buy milk"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ActionsApplied)
	assert.True(t, res.Eval.ViolatedSector)

	res, err = f.svc.Turn(ctx, TurnRequest{UserID: "u1", Message: "start a habit of stretching"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ActionsApplied)
}

func TestTurnNewUserGetsAllSectors(t *testing.T) {
	f := newFixture(t, nil, nil)
	res, err := f.svc.Turn(context.Background(), TurnRequest{UserID: "fresh", Message: "remind me to call mom"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ActionsApplied)

	u, err := f.users.GetByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, planner.AllSectors, u.EnabledSectors)
}

func TestTurnSchemaFailureReturnsApology(t *testing.T) {
	ctx := context.Background()
	p := &scriptedCompleter{replies: []reply{{text: relativeDate}, {text: `{"actions":[]}`}}}
	f := newFixture(t, p, nil)

	res, err := f.svc.Turn(ctx, TurnRequest{UserID: "u1", Message: "Create a task to buy milk tomorrow"})
	require.NoError(t, err)

	assert.Equal(t, "I'm having trouble processing your request correctly. Please try again.", res.AssistantMessage)
	assert.Equal(t, 0, res.ActionsApplied)
	assert.Empty(t, res.Actions)
	assert.Equal(t, 0, res.Eval.Scores.Schema)
	assert.True(t, res.Eval.EmptyActions)
	assert.Equal(t, 10, res.Eval.Scores.Usefulness)

	runs, err := f.runs.ListRunsWithEvals(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].SchemaValid)
	assert.True(t, strings.HasPrefix(runs[0].Prompt, "Your JSON was invalid."))
	require.NotNil(t, runs[0].Eval)
	assert.Contains(t, runs[0].Eval.Reasons, "Schema validation failed")

	tasks, err := f.planner.ListTasksForDate(ctx, "u1", "2026-03-11")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTurnPromptCarriesContextAndPersona(t *testing.T) {
	ctx := context.Background()
	p := &scriptedCompleter{replies: []reply{{text: validReply}}}
	f := newFixture(t, p, nil)
	goal, err := f.planner.CreateGoal(ctx, "u1", "Run a marathon", "")
	require.NoError(t, err)
	_, err = f.planner.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Stretch calves", DueDate: "2026-03-10"})
	require.NoError(t, err)

	_, err = f.svc.Turn(ctx, TurnRequest{UserID: "u1", Message: "plan my week", Mode: "strict", PromptVersion: "B"})
	require.NoError(t, err)

	calls := p.Calls()
	require.Len(t, calls, 1)
	system := calls[0][0].Content
	assert.Contains(t, system, "drill sergeant")
	assert.Contains(t, system, "Be extremely concise.")
	assert.Contains(t, system, `"today": "2026-03-10"`)
	assert.Contains(t, system, goal.ID)
	assert.Contains(t, system, "Stretch calves")
	assert.Contains(t, system, "DELETE_HABIT")
	assert.Equal(t, "plan my week", calls[0][1].Content)
}

type failingRuns struct {
	*airuns.MemoryRepo
	runErr  error
	evalErr error
}

func (f *failingRuns) LogRun(ctx context.Context, in airuns.NewRun) (airuns.Run, error) {
	if f.runErr != nil {
		return airuns.Run{}, f.runErr
	}
	return f.MemoryRepo.LogRun(ctx, in)
}

func (f *failingRuns) LogEval(ctx context.Context, e airuns.Eval) error {
	if f.evalErr != nil {
		return f.evalErr
	}
	return f.MemoryRepo.LogEval(ctx, e)
}

func TestTurnRunLogFailureIsAnError(t *testing.T) {
	runs := &failingRuns{MemoryRepo: airuns.NewMemoryRepo(), runErr: errors.New("db down")}
	svc := newTestService(planner.NewMemoryRepo(), runs, users.NewMemoryRepo(), nil, nil, zap.NewNop())

	_, err := svc.Turn(context.Background(), TurnRequest{UserID: "u1", Message: "create a task to buy milk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTurnEvalLogFailureIsAbsorbed(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	runs := &failingRuns{MemoryRepo: airuns.NewMemoryRepo(), evalErr: errors.New("eval table locked")}
	svc := newTestService(planner.NewMemoryRepo(), runs, users.NewMemoryRepo(), nil, nil, zap.New(core))

	res, err := svc.Turn(context.Background(), TurnRequest{UserID: "u1", Message: "create a task to buy milk"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ActionsApplied)
	assert.Equal(t, 1, logs.FilterMessage("coach.eval_persist_failed").Len())
}

func TestTurnRejectsMissingInput(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, req := range []TurnRequest{
		{UserID: "", Message: "hi"},
		{UserID: "u1", Message: "   "},
		{UserID: "u1", Message: strings.Repeat("a", maxMessageLen+1)},
	} {
		_, err := f.svc.Turn(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
}

// traceRecorder captures sink calls in delivery order.
type traceRecorder struct {
	tracing.NopExporter
	mu    sync.Mutex
	calls []string
}

func (r *traceRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *traceRecorder) Enabled() bool { return true }

func (r *traceRecorder) StartTrace(_ context.Context, name string, _ map[string]any) (string, error) {
	r.record("start:" + name)
	return "trace-1", nil
}

func (r *traceRecorder) Event(_ context.Context, _ string, name string, _ map[string]any) error {
	r.record("event:" + name)
	return nil
}

func (r *traceRecorder) EndTrace(context.Context, string, map[string]any) error {
	r.record("end")
	return nil
}

func (r *traceRecorder) LogEval(_ context.Context, _ string, name string, _ float64, _ string) error {
	r.record("eval:" + name)
	return errors.New("trace backend unavailable")
}

func TestTurnEmitsTrace(t *testing.T) {
	rec := &traceRecorder{}
	sink := tracing.NewSink(rec)
	f := newFixture(t, nil, sink)

	res, err := f.svc.Turn(context.Background(), TurnRequest{UserID: "u1", Message: "create a task to buy milk"})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))

	assert.Equal(t, "trace-1", res.TraceID)
	assert.Equal(t, []string{
		"start:coach_turn",
		"event:prompt_built",
		"event:model_response_received",
		"event:schema_validated",
		"event:actions_applied",
		"end",
		"eval:Total Score",
		"eval:Schema Score",
		"eval:Sector Score",
		"eval:Usefulness",
		"eval:Efficiency",
	}, rec.calls)

	runs, err := f.runs.ListRunsWithEvals(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "trace-1", runs[0].TraceID)
}
