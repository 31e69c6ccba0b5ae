package planner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps planner entities in process memory for dev and tests.
type MemoryRepo struct {
	mu         sync.RWMutex
	tasks      []Task
	habits     []Habit
	habitLogs  []HabitLog
	goals      []Goal
	milestones []Milestone
	plans      []WeeklyPlan
	now        func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryRepo) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	task := Task{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		DueDate:     in.DueDate,
		Status:      TaskStatusOpen,
		GoalID:      in.GoalID,
		CreatedBy:   createdByOrUser(in.CreatedBy),
		SourceRunID: in.SourceRunID,
		CreatedAt:   r.now(),
	}
	r.tasks = append(r.tasks, task)
	return task, nil
}

func (r *MemoryRepo) ListTasksForDate(ctx context.Context, userID, date string) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Task
	for _, t := range r.tasks {
		if t.UserID == userID && t.DueDate == date {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryRepo) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.tasks {
		if t.ID == taskID && t.UserID == userID {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) CreateHabit(ctx context.Context, in NewHabit) (Habit, error) {
	if err := ctx.Err(); err != nil {
		return Habit{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	freq := in.Frequency
	if freq == "" {
		freq = FrequencyDaily
	}
	habit := Habit{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		Frequency:   freq,
		CreatedBy:   createdByOrUser(in.CreatedBy),
		SourceRunID: in.SourceRunID,
		CreatedAt:   r.now(),
	}
	r.habits = append(r.habits, habit)
	return habit, nil
}

func (r *MemoryRepo) ListHabits(ctx context.Context, userID string) ([]Habit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Habit
	for _, h := range r.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *MemoryRepo) DeleteHabit(ctx context.Context, userID, habitID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.habits {
		if h.ID == habitID && h.UserID == userID {
			r.habits = append(r.habits[:i], r.habits[i+1:]...)
			kept := r.habitLogs[:0]
			for _, l := range r.habitLogs {
				if l.HabitID != habitID {
					kept = append(kept, l)
				}
			}
			r.habitLogs = kept
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) LogHabit(ctx context.Context, userID, habitID, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for _, h := range r.habits {
		if h.ID == habitID && h.UserID == userID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	for _, l := range r.habitLogs {
		if l.HabitID == habitID && l.Date == date {
			return nil
		}
	}
	r.habitLogs = append(r.habitLogs, HabitLog{HabitID: habitID, Date: date})
	return nil
}

func (r *MemoryRepo) GetHabitStreaks(ctx context.Context, userID, today string) ([]HabitStreak, error) {
	habits, err := r.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	logs := append([]HabitLog(nil), r.habitLogs...)
	r.mu.RUnlock()
	return ComputeStreaks(habits, logs, today), nil
}

func (r *MemoryRepo) CreateGoal(ctx context.Context, userID, title, deadline string) (Goal, error) {
	if err := ctx.Err(); err != nil {
		return Goal{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	goal := Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Deadline:  deadline,
		CreatedAt: r.now(),
	}
	r.goals = append(r.goals, goal)
	return goal, nil
}

func (r *MemoryRepo) ListGoals(ctx context.Context, userID string) ([]Goal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *MemoryRepo) DeleteGoal(ctx context.Context, userID, goalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, g := range r.goals {
		if g.ID == goalID && g.UserID == userID {
			r.goals = append(r.goals[:i], r.goals[i+1:]...)
			r.milestones = filterMilestones(r.milestones, goalID)
			r.plans = filterPlans(r.plans, goalID)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) CreateMilestone(ctx context.Context, in NewMilestone) (Milestone, error) {
	if err := ctx.Err(); err != nil {
		return Milestone{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := Milestone{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		GoalID:      in.GoalID,
		Title:       in.Title,
		TargetDate:  in.TargetDate,
		CreatedBy:   createdByOrUser(in.CreatedBy),
		SourceRunID: in.SourceRunID,
		CreatedAt:   r.now(),
	}
	r.milestones = append(r.milestones, m)
	return m, nil
}

func (r *MemoryRepo) ListMilestones(ctx context.Context, userID, goalID string) ([]Milestone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Milestone
	for _, m := range r.milestones {
		if m.UserID == userID && m.GoalID == goalID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpsertWeeklyPlan(ctx context.Context, userID, goalID, weekStart, focus string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.plans {
		if p.GoalID == goalID && p.WeekStart == weekStart {
			r.plans[i].Focus = focus
			r.plans[i].UserID = userID
			return nil
		}
	}
	r.plans = append(r.plans, WeeklyPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		GoalID:    goalID,
		WeekStart: weekStart,
		Focus:     focus,
		CreatedAt: r.now(),
	})
	return nil
}

func (r *MemoryRepo) ListWeeklyPlans(ctx context.Context, userID, goalID string) ([]WeeklyPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []WeeklyPlan
	for _, p := range r.plans {
		if p.UserID == userID && p.GoalID == goalID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart < out[j].WeekStart })
	return out, nil
}

func filterMilestones(in []Milestone, goalID string) []Milestone {
	out := in[:0]
	for _, m := range in {
		if m.GoalID != goalID {
			out = append(out, m)
		}
	}
	return out
}

func filterPlans(in []WeeklyPlan, goalID string) []WeeklyPlan {
	out := in[:0]
	for _, p := range in {
		if p.GoalID != goalID {
			out = append(out, p)
		}
	}
	return out
}

func createdByOrUser(v string) string {
	if v == CreatedByAI {
		return CreatedByAI
	}
	return CreatedByUser
}
