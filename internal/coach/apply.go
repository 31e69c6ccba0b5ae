package coach

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/shared/metrics"
)

// MaxActions caps how many actions one turn may apply.
const MaxActions = 5

// ActionStore is the storage surface the applier mutates.
type ActionStore interface {
	CreateTask(ctx context.Context, in planner.NewTask) (planner.Task, error)
	ListTasksForDate(ctx context.Context, userID, date string) ([]planner.Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
	CreateHabit(ctx context.Context, in planner.NewHabit) (planner.Habit, error)
	DeleteHabit(ctx context.Context, userID, habitID string) error
	CreateMilestone(ctx context.Context, in planner.NewMilestone) (planner.Milestone, error)
	UpsertWeeklyPlan(ctx context.Context, userID, goalID, weekStart, focus string) error
	DeleteGoal(ctx context.Context, userID, goalID string) error
}

type Status string

const (
	StatusApplied Status = "applied"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

const (
	reasonLimit         = "action limit reached"
	reasonStale         = "date is in the past"
	reasonDuplicate     = "duplicate title"
	reasonUnknownGoal   = "unknown goal"
	reasonTargetMissing = "no matching item"
)

// Outcome records what happened to one proposed action.
type Outcome struct {
	Action Action
	Status Status
	Reason string
	Err    error
}

type ApplyReport struct {
	Outcomes []Outcome
	Applied  int
}

// Skipped returns the outcomes that did not take effect for a guardrail reason.
func (r ApplyReport) Skipped() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusSkipped {
			out = append(out, o)
		}
	}
	return out
}

// ApplyInput is the turn snapshot the applier works against. Tasks holds the
// tasks due Today.
type ApplyInput struct {
	UserID  string
	RunID   string
	Today   string
	Sectors []planner.Sector
	Tasks   []planner.Task
	Habits  []planner.Habit
	Goals   []planner.Goal
	Actions []Action
}

type Applier struct {
	Store  ActionStore
	Logger *zap.Logger
}

func NewApplier(store ActionStore, logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{Store: store, Logger: logger}
}

// Apply folds over the actions in order. Storage errors fail only the action
// that raised them. Once MaxActions are applied the rest are skipped without
// reaching storage.
func (ap *Applier) Apply(ctx context.Context, in ApplyInput) ApplyReport {
	st := newApplyState(in)
	report := ApplyReport{Outcomes: make([]Outcome, 0, len(in.Actions))}

	for _, action := range in.Actions {
		var outcome Outcome
		if report.Applied >= MaxActions {
			outcome = skipped(action, reasonLimit)
		} else {
			outcome = ap.applyOne(ctx, st, action)
		}
		if outcome.Status == StatusApplied {
			report.Applied++
		}
		ap.logOutcome(in, outcome)
		metrics.IncAction(string(action.Kind()), string(outcome.Status))
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func (ap *Applier) applyOne(ctx context.Context, st *applyState, action Action) Outcome {
	owner := action.Kind().Sector()
	if !planner.HasSector(st.in.Sectors, owner) {
		return skipped(action, fmt.Sprintf("sector %s disabled", owner))
	}

	switch action.Kind() {
	case KindCreateTask:
		p, _ := action.Task()
		return ap.createTask(ctx, st, action, p)
	case KindCreateHabit:
		p, _ := action.Habit()
		return ap.createHabit(ctx, st, action, p)
	case KindCreateGoalPlan:
		p, _ := action.GoalPlan()
		return ap.createGoalPlan(ctx, st, action, p)
	case KindDeleteTask:
		p, _ := action.Target()
		return ap.deleteTask(ctx, st, action, p)
	case KindDeleteHabit:
		p, _ := action.Target()
		return ap.deleteHabit(ctx, st, action, p)
	case KindDeleteGoal:
		p, _ := action.Target()
		return ap.deleteGoal(ctx, st, action, p)
	default:
		panic(fmt.Sprintf("coach: unhandled action kind %q", string(action.Kind())))
	}
}

func (ap *Applier) createTask(ctx context.Context, st *applyState, action Action, p CreateTask) Outcome {
	if p.DueDate < st.in.Today {
		return skipped(action, reasonStale)
	}
	existing, err := st.tasksFor(ctx, ap.Store, p.DueDate)
	if err != nil {
		return failed(action, fmt.Errorf("list tasks for %s: %w", p.DueDate, err))
	}
	for _, t := range existing {
		if sameTitle(t.Title, p.Title) {
			return skipped(action, reasonDuplicate)
		}
	}
	task, err := ap.Store.CreateTask(ctx, planner.NewTask{
		UserID:      st.in.UserID,
		Title:       p.Title,
		DueDate:     p.DueDate,
		CreatedBy:   planner.CreatedByAI,
		SourceRunID: st.in.RunID,
	})
	if err != nil {
		return failed(action, err)
	}
	st.tasks[p.DueDate] = append(st.tasks[p.DueDate], task)
	return applied(action)
}

func (ap *Applier) createHabit(ctx context.Context, st *applyState, action Action, p CreateHabit) Outcome {
	for _, h := range st.habits {
		if sameTitle(h.Title, p.Title) {
			return skipped(action, reasonDuplicate)
		}
	}
	habit, err := ap.Store.CreateHabit(ctx, planner.NewHabit{
		UserID:      st.in.UserID,
		Title:       p.Title,
		Frequency:   planner.FrequencyDaily,
		CreatedBy:   planner.CreatedByAI,
		SourceRunID: st.in.RunID,
	})
	if err != nil {
		return failed(action, err)
	}
	st.habits = append(st.habits, habit)
	return applied(action)
}

// createGoalPlan counts once however many milestones and weeks it touches.
// Stale milestones are dropped individually; weekly plans upsert by week.
func (ap *Applier) createGoalPlan(ctx context.Context, st *applyState, action Action, p CreateGoalPlan) Outcome {
	if !st.hasGoal(p.GoalID) {
		return skipped(action, reasonUnknownGoal)
	}
	for _, m := range p.Milestones {
		target := ""
		if m.TargetDate != nil {
			target = *m.TargetDate
			if target < st.in.Today {
				ap.Logger.Debug("coach.milestone_stale", zap.String("title", m.Title), zap.String("target_date", target))
				continue
			}
		}
		_, err := ap.Store.CreateMilestone(ctx, planner.NewMilestone{
			UserID:      st.in.UserID,
			GoalID:      p.GoalID,
			Title:       m.Title,
			TargetDate:  target,
			CreatedBy:   planner.CreatedByAI,
			SourceRunID: st.in.RunID,
		})
		if err != nil {
			return failed(action, fmt.Errorf("create milestone %q: %w", m.Title, err))
		}
	}
	for _, w := range p.WeeklyPlan {
		if err := ap.Store.UpsertWeeklyPlan(ctx, st.in.UserID, p.GoalID, w.WeekStart, w.Focus); err != nil {
			return failed(action, fmt.Errorf("upsert weekly plan %s: %w", w.WeekStart, err))
		}
	}
	return applied(action)
}

func (ap *Applier) deleteTask(ctx context.Context, st *applyState, action Action, p DeleteTarget) Outcome {
	date, idx := st.findTask(p.Title)
	if idx < 0 {
		return skipped(action, reasonTargetMissing)
	}
	task := st.tasks[date][idx]
	if err := ap.Store.DeleteTask(ctx, st.in.UserID, task.ID); err != nil {
		if errors.Is(err, planner.ErrNotFound) {
			return skipped(action, reasonTargetMissing)
		}
		return failed(action, err)
	}
	st.tasks[date] = append(st.tasks[date][:idx:idx], st.tasks[date][idx+1:]...)
	return applied(action)
}

func (ap *Applier) deleteHabit(ctx context.Context, st *applyState, action Action, p DeleteTarget) Outcome {
	idx := matchTitle(len(st.habits), func(i int) string { return st.habits[i].Title }, p.Title)
	if idx < 0 {
		return skipped(action, reasonTargetMissing)
	}
	if err := ap.Store.DeleteHabit(ctx, st.in.UserID, st.habits[idx].ID); err != nil {
		if errors.Is(err, planner.ErrNotFound) {
			return skipped(action, reasonTargetMissing)
		}
		return failed(action, err)
	}
	st.habits = append(st.habits[:idx:idx], st.habits[idx+1:]...)
	return applied(action)
}

func (ap *Applier) deleteGoal(ctx context.Context, st *applyState, action Action, p DeleteTarget) Outcome {
	idx := matchTitle(len(st.goals), func(i int) string { return st.goals[i].Title }, p.Title)
	if idx < 0 {
		return skipped(action, reasonTargetMissing)
	}
	if err := ap.Store.DeleteGoal(ctx, st.in.UserID, st.goals[idx].ID); err != nil {
		if errors.Is(err, planner.ErrNotFound) {
			return skipped(action, reasonTargetMissing)
		}
		return failed(action, err)
	}
	st.goals = append(st.goals[:idx:idx], st.goals[idx+1:]...)
	return applied(action)
}

func (ap *Applier) logOutcome(in ApplyInput, o Outcome) {
	fields := []zap.Field{
		zap.String("user_id", in.UserID),
		zap.String("run_id", in.RunID),
		zap.String("kind", string(o.Action.Kind())),
		zap.String("status", string(o.Status)),
	}
	switch o.Status {
	case StatusFailed:
		ap.Logger.Warn("coach.action_failed", append(fields, zap.Error(o.Err))...)
	case StatusSkipped:
		ap.Logger.Info("coach.action_skipped", append(fields, zap.String("reason", o.Reason))...)
	default:
		ap.Logger.Debug("coach.action_applied", fields...)
	}
}

// applyState is the per-turn view of the user's entities, updated as the
// batch creates and deletes so later actions see earlier ones.
type applyState struct {
	in     ApplyInput
	tasks  map[string][]planner.Task
	habits []planner.Habit
	goals  []planner.Goal
}

func newApplyState(in ApplyInput) *applyState {
	st := &applyState{
		in:     in,
		tasks:  map[string][]planner.Task{in.Today: append([]planner.Task(nil), in.Tasks...)},
		habits: append([]planner.Habit(nil), in.Habits...),
		goals:  append([]planner.Goal(nil), in.Goals...),
	}
	return st
}

// tasksFor returns tasks due on date, loading dates outside the snapshot once.
func (st *applyState) tasksFor(ctx context.Context, store ActionStore, date string) ([]planner.Task, error) {
	if tasks, ok := st.tasks[date]; ok {
		return tasks, nil
	}
	tasks, err := store.ListTasksForDate(ctx, st.in.UserID, date)
	if err != nil {
		return nil, err
	}
	st.tasks[date] = tasks
	return tasks, nil
}

// findTask looks at today's tasks, then at the other dates this batch has
// loaded in ascending date order. Dates never touched by the batch are not
// searched.
func (st *applyState) findTask(title string) (string, int) {
	if idx := matchTitle(len(st.tasks[st.in.Today]), func(i int) string { return st.tasks[st.in.Today][i].Title }, title); idx >= 0 {
		return st.in.Today, idx
	}
	for _, date := range slices.Sorted(maps.Keys(st.tasks)) {
		if date == st.in.Today {
			continue
		}
		tasks := st.tasks[date]
		if idx := matchTitle(len(tasks), func(i int) string { return tasks[i].Title }, title); idx >= 0 {
			return date, idx
		}
	}
	return "", -1
}

func (st *applyState) hasGoal(id string) bool {
	for _, g := range st.goals {
		if strings.EqualFold(g.ID, id) {
			return true
		}
	}
	return false
}

// matchTitle prefers an exact match and falls back to a case-insensitive one.
func matchTitle(n int, title func(int) string, want string) int {
	want = strings.TrimSpace(want)
	for i := 0; i < n; i++ {
		if strings.TrimSpace(title(i)) == want {
			return i
		}
	}
	for i := 0; i < n; i++ {
		if sameTitle(title(i), want) {
			return i
		}
	}
	return -1
}

func sameTitle(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func applied(a Action) Outcome { return Outcome{Action: a, Status: StatusApplied} }

func skipped(a Action, reason string) Outcome {
	return Outcome{Action: a, Status: StatusSkipped, Reason: reason}
}

func failed(a Action, err error) Outcome {
	return Outcome{Action: a, Status: StatusFailed, Err: err, Reason: err.Error()}
}

// BlockedSectorNote names the disabled sectors that blocked any of the
// proposed actions, or returns "" when none did.
func BlockedSectorNote(actions []Action, sectors []planner.Sector) string {
	var missing []string
	seen := map[planner.Sector]bool{}
	verb := "create"
	for _, a := range actions {
		owner := a.Kind().Sector()
		if planner.HasSector(sectors, owner) {
			continue
		}
		if a.Kind().IsDelete() {
			verb = "change"
		}
		if seen[owner] {
			continue
		}
		seen[owner] = true
		missing = append(missing, string(owner))
	}
	if len(missing) == 0 {
		return ""
	}
	return fmt.Sprintf("\n\n(Note: I couldn't %s this item because the **%s** sector is disabled. Please enable it in Settings!)", verb, strings.Join(missing, ", "))
}
