package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"goalsectors-backend/internal/planner"
)

const testToday = "2026-03-10"

// countingStore records storage calls and can fail chosen titles.
type countingStore struct {
	*planner.MemoryRepo
	mu          sync.Mutex
	taskCreates []string
	listDates   []string
	failTitle   string
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryRepo: planner.NewMemoryRepo()}
}

func (s *countingStore) CreateTask(ctx context.Context, in planner.NewTask) (planner.Task, error) {
	s.mu.Lock()
	s.taskCreates = append(s.taskCreates, in.Title)
	s.mu.Unlock()
	if in.Title == s.failTitle {
		return planner.Task{}, errors.New("insert task: connection refused")
	}
	return s.MemoryRepo.CreateTask(ctx, in)
}

func (s *countingStore) ListTasksForDate(ctx context.Context, userID, date string) ([]planner.Task, error) {
	s.mu.Lock()
	s.listDates = append(s.listDates, date)
	s.mu.Unlock()
	return s.MemoryRepo.ListTasksForDate(ctx, userID, date)
}

func applyInput(actions ...Action) ApplyInput {
	return ApplyInput{
		UserID:  "u1",
		RunID:   "run-1",
		Today:   testToday,
		Sectors: planner.AllSectors,
		Actions: actions,
	}
}

func statuses(report ApplyReport) []Status {
	out := make([]Status, len(report.Outcomes))
	for i, o := range report.Outcomes {
		out[i] = o.Status
	}
	return out
}

func TestApplyCapsAtMaxActions(t *testing.T) {
	store := newCountingStore()
	applier := NewApplier(store, nil)

	var actions []Action
	for i := 1; i <= 7; i++ {
		actions = append(actions, taskAction(fmt.Sprintf("Task %d", i), testToday))
	}
	report := applier.Apply(context.Background(), applyInput(actions...))

	assert.Equal(t, MaxActions, report.Applied)
	assert.Equal(t, []string{"Task 1", "Task 2", "Task 3", "Task 4", "Task 5"}, store.taskCreates)
	require.Len(t, report.Outcomes, 7)
	for _, o := range report.Outcomes[5:] {
		assert.Equal(t, StatusSkipped, o.Status)
		assert.Equal(t, "action limit reached", o.Reason)
	}
}

func TestApplySkipsDisabledSector(t *testing.T) {
	store := newCountingStore()
	applier := NewApplier(store, nil)
	in := applyInput(taskAction("Buy milk", testToday), habitAction("Stretch"))
	in.Sectors = []planner.Sector{planner.SectorHabits}

	report := applier.Apply(context.Background(), in)

	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, []Status{StatusSkipped, StatusApplied}, statuses(report))
	assert.Empty(t, store.taskCreates)
}

func TestApplyDeduplicatesCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	existing, err := store.MemoryRepo.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Buy Milk", DueDate: testToday})
	require.NoError(t, err)
	_, err = store.MemoryRepo.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Call mom", DueDate: "2026-03-11"})
	require.NoError(t, err)
	habit, err := store.MemoryRepo.CreateHabit(ctx, planner.NewHabit{UserID: "u1", Title: "Stretch", Frequency: planner.FrequencyDaily})
	require.NoError(t, err)

	in := applyInput(
		taskAction("buy milk", testToday),
		taskAction("CALL MOM", "2026-03-11"),
		taskAction("Pay rent", "2026-03-11"),
		taskAction("pay rent", "2026-03-11"),
		habitAction("stretch"),
		habitAction("Read"),
		habitAction("read"),
		taskAction("Buy milk.", testToday),
	)
	in.Tasks = []planner.Task{existing}
	in.Habits = []planner.Habit{habit}

	report := newTestApplier(store).Apply(ctx, in)

	assert.Equal(t, []Status{
		StatusSkipped, StatusSkipped, StatusApplied, StatusSkipped,
		StatusSkipped, StatusApplied, StatusSkipped, StatusApplied,
	}, statuses(report))
	assert.Equal(t, 3, report.Applied)
	// Other dates are listed once and then served from the batch view.
	assert.Equal(t, []string{"2026-03-11"}, store.listDates)
}

func newTestApplier(store ActionStore) *Applier { return NewApplier(store, zap.NewNop()) }

func TestApplySkipsStaleDueDate(t *testing.T) {
	store := newCountingStore()
	report := newTestApplier(store).Apply(context.Background(), applyInput(taskAction("Yesterday", "2026-03-09"), taskAction("Today", testToday)))

	assert.Equal(t, []Status{StatusSkipped, StatusApplied}, statuses(report))
	assert.Equal(t, "date is in the past", report.Outcomes[0].Reason)
	assert.Equal(t, []string{"Today"}, store.taskCreates)
}

func TestApplyStorageFailureDoesNotAbortBatch(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := newCountingStore()
	store.failTitle = "Broken"

	report := NewApplier(store, zap.New(core)).Apply(context.Background(), applyInput(
		taskAction("Broken", testToday),
		taskAction("Works", testToday),
	))

	assert.Equal(t, []Status{StatusFailed, StatusApplied}, statuses(report))
	assert.Equal(t, 1, report.Applied)
	require.Error(t, report.Outcomes[0].Err)
	assert.Equal(t, 1, logs.FilterMessage("coach.action_failed").Len())
}

func TestApplyGoalPlan(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	goal, err := store.CreateGoal(ctx, "u1", "Run a marathon", "")
	require.NoError(t, err)

	past, future := "2026-03-01", "2026-04-01"
	plan := NewCreateGoalPlan(CreateGoalPlan{
		GoalID: goal.ID,
		Milestones: []Milestone{
			{Title: "Old milestone", TargetDate: &past},
			{Title: "Run 10k", TargetDate: &future},
			{Title: "Someday"},
		},
		WeeklyPlan: []WeekPlan{{WeekStart: "2026-03-16", Focus: "Base miles"}},
	})
	unknown := NewCreateGoalPlan(CreateGoalPlan{GoalID: testGoalID})

	in := applyInput(plan, unknown)
	in.Goals = []planner.Goal{goal}
	report := newTestApplier(store).Apply(ctx, in)

	assert.Equal(t, []Status{StatusApplied, StatusSkipped}, statuses(report))
	assert.Equal(t, "unknown goal", report.Outcomes[1].Reason)

	milestones, err := store.ListMilestones(ctx, "u1", goal.ID)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, "Run 10k", milestones[0].Title)
	assert.Equal(t, planner.CreatedByAI, milestones[0].CreatedBy)
	assert.Equal(t, "run-1", milestones[0].SourceRunID)

	plans, err := store.ListWeeklyPlans(ctx, "u1", goal.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Base miles", plans[0].Focus)
}

func TestApplyDeletesByTitle(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	task, err := store.MemoryRepo.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Buy milk", DueDate: testToday})
	require.NoError(t, err)
	habit, err := store.MemoryRepo.CreateHabit(ctx, planner.NewHabit{UserID: "u1", Title: "Stretch", Frequency: planner.FrequencyDaily})
	require.NoError(t, err)
	goal, err := store.CreateGoal(ctx, "u1", "Learn Spanish", "")
	require.NoError(t, err)

	in := applyInput(
		NewDeleteTask(DeleteTarget{Title: "BUY MILK"}),
		NewDeleteHabit(DeleteTarget{Title: "Stretch"}),
		NewDeleteGoal(DeleteTarget{Title: "learn spanish"}),
		NewDeleteTask(DeleteTarget{Title: "Buy milk"}),
	)
	in.Tasks = []planner.Task{task}
	in.Habits = []planner.Habit{habit}
	in.Goals = []planner.Goal{goal}

	report := newTestApplier(store).Apply(ctx, in)

	assert.Equal(t, []Status{StatusApplied, StatusApplied, StatusApplied, StatusSkipped}, statuses(report))
	assert.Equal(t, 3, report.Applied)
	tasks, err := store.ListTasksForDate(ctx, "u1", testToday)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	goals, err := store.ListGoals(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, goals)
}

func TestApplyDeleteTaskPrefersEarliestLoadedDate(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		store := newCountingStore()
		early, err := store.MemoryRepo.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Call mom", DueDate: "2026-03-11"})
		require.NoError(t, err)
		late, err := store.MemoryRepo.CreateTask(ctx, planner.NewTask{UserID: "u1", Title: "Call mom", DueDate: "2026-03-12"})
		require.NoError(t, err)

		in := applyInput(
			taskAction("Plan trip", "2026-03-12"),
			taskAction("Pack bags", "2026-03-11"),
			NewDeleteTask(DeleteTarget{Title: "call mom"}),
		)
		report := newTestApplier(store).Apply(ctx, in)
		require.Equal(t, 3, report.Applied)

		remaining, err := store.MemoryRepo.ListTasksForDate(ctx, "u1", "2026-03-12")
		require.NoError(t, err)
		assert.Contains(t, taskIDs(remaining), late.ID)
		gone, err := store.MemoryRepo.ListTasksForDate(ctx, "u1", "2026-03-11")
		require.NoError(t, err)
		assert.NotContains(t, taskIDs(gone), early.ID)
	}
}

func taskIDs(tasks []planner.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func TestApplyTagsCreatedEntities(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	newTestApplier(store).Apply(ctx, applyInput(taskAction("Buy milk", "2026-03-11"), habitAction("Stretch")))

	tasks, err := store.MemoryRepo.ListTasksForDate(ctx, "u1", "2026-03-11")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, planner.CreatedByAI, tasks[0].CreatedBy)
	assert.Equal(t, "run-1", tasks[0].SourceRunID)

	habits, err := store.ListHabits(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, planner.FrequencyDaily, habits[0].Frequency)
}

func TestBlockedSectorNote(t *testing.T) {
	actions := []Action{
		taskAction("a", testToday),
		habitAction("b"),
		taskAction("c", testToday),
	}
	assert.Equal(t,
		"\n\n(Note: I couldn't create this item because the **Productivity, Habits** sector is disabled. Please enable it in Settings!)",
		BlockedSectorNote(actions, []planner.Sector{planner.SectorGoals}),
	)
	assert.Equal(t, "", BlockedSectorNote(actions, planner.AllSectors))
	assert.Equal(t, "", BlockedSectorNote(nil, nil))
}

func TestBlockedSectorNoteForDeletes(t *testing.T) {
	actions := []Action{
		taskAction("a", testToday),
		NewDeleteHabit(DeleteTarget{Title: "Meditate"}),
	}
	assert.Equal(t,
		"\n\n(Note: I couldn't change this item because the **Habits** sector is disabled. Please enable it in Settings!)",
		BlockedSectorNote(actions, []planner.Sector{planner.SectorProductivity}),
	)
}
