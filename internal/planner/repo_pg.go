package planner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	const query = `
INSERT INTO tasks (id, user_id, title, due_date, status, goal_id, created_by, source_run_id, created_at)
VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, now())
RETURNING created_at`
	task := Task{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       in.Title,
		DueDate:     in.DueDate,
		Status:      TaskStatusOpen,
		GoalID:      in.GoalID,
		CreatedBy:   createdByOrUser(in.CreatedBy),
		SourceRunID: in.SourceRunID,
	}
	err := r.DB.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		nullableString(task.DueDate),
		task.Status,
		nullableString(task.GoalID),
		task.CreatedBy,
		nullableString(task.SourceRunID),
	).Scan(&task.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

func (r *PGRepo) ListTasksForDate(ctx context.Context, userID, date string) ([]Task, error) {
	const query = `
SELECT id::text, user_id, title, due_date::text, status, goal_id::text, created_by, source_run_id::text, created_at
FROM tasks
WHERE user_id = $1 AND due_date = $2::date
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID, date)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var dueDate, goalID, sourceRunID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &dueDate, &t.Status, &goalID, &t.CreatedBy, &sourceRunID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.DueDate = dueDate.String
		t.GoalID = goalID.String
		t.SourceRunID = sourceRunID.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteTask(ctx context.Context, userID, taskID string) error {
	const query = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, query, taskID, userID)
}

func (r *PGRepo) CreateHabit(ctx context.Context, in NewHabit) (Habit, error) {
	const query = `
INSERT INTO habits (id, user_id, title, frequency, created_by, source_run_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING created_at`
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
	}
	err := r.DB.QueryRowContext(ctx, query,
		habit.ID,
		habit.UserID,
		habit.Title,
		habit.Frequency,
		habit.CreatedBy,
		nullableString(habit.SourceRunID),
	).Scan(&habit.CreatedAt)
	if err != nil {
		return Habit{}, fmt.Errorf("insert habit: %w", err)
	}
	return habit, nil
}

func (r *PGRepo) ListHabits(ctx context.Context, userID string) ([]Habit, error) {
	const query = `
SELECT id::text, user_id, title, frequency, created_by, source_run_id::text, created_at
FROM habits
WHERE user_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var out []Habit
	for rows.Next() {
		var h Habit
		var sourceRunID sql.NullString
		if err := rows.Scan(&h.ID, &h.UserID, &h.Title, &h.Frequency, &h.CreatedBy, &sourceRunID, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.SourceRunID = sourceRunID.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteHabit(ctx context.Context, userID, habitID string) error {
	const query = `DELETE FROM habits WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, query, habitID, userID)
}

func (r *PGRepo) LogHabit(ctx context.Context, userID, habitID, date string) error {
	const query = `
INSERT INTO habit_logs (habit_id, user_id, log_date, created_at)
SELECT id, user_id, $3::date, now() FROM habits WHERE id = $1 AND user_id = $2
ON CONFLICT (habit_id, log_date) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query, habitID, userID, date)
	return err
}

func (r *PGRepo) GetHabitStreaks(ctx context.Context, userID, today string) ([]HabitStreak, error) {
	habits, err := r.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	const query = `
SELECT habit_id::text, log_date::text
FROM habit_logs
WHERE user_id = $1 AND log_date <= $2::date
ORDER BY log_date DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID, today)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	defer rows.Close()

	var logs []HabitLog
	for rows.Next() {
		var l HabitLog
		if err := rows.Scan(&l.HabitID, &l.Date); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ComputeStreaks(habits, logs, today), nil
}

func (r *PGRepo) CreateGoal(ctx context.Context, userID, title, deadline string) (Goal, error) {
	const query = `
INSERT INTO goals (id, user_id, title, deadline, created_at)
VALUES ($1, $2, $3, $4::date, now())
RETURNING created_at`
	goal := Goal{ID: uuid.NewString(), UserID: userID, Title: title, Deadline: deadline}
	if err := r.DB.QueryRowContext(ctx, query, goal.ID, userID, title, nullableString(deadline)).Scan(&goal.CreatedAt); err != nil {
		return Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return goal, nil
}

func (r *PGRepo) ListGoals(ctx context.Context, userID string) ([]Goal, error) {
	const query = `
SELECT id::text, user_id, title, deadline::text, created_at
FROM goals
WHERE user_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var g Goal
		var deadline sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &deadline, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Deadline = deadline.String
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PGRepo) DeleteGoal(ctx context.Context, userID, goalID string) error {
	const query = `DELETE FROM goals WHERE id = $1 AND user_id = $2`
	return r.execOne(ctx, query, goalID, userID)
}

func (r *PGRepo) CreateMilestone(ctx context.Context, in NewMilestone) (Milestone, error) {
	const query = `
INSERT INTO milestones (id, user_id, goal_id, title, target_date, completed, created_by, source_run_id, created_at)
VALUES ($1, $2, $3, $4, $5::date, false, $6, $7, now())
RETURNING created_at`
	m := Milestone{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		GoalID:      in.GoalID,
		Title:       in.Title,
		TargetDate:  in.TargetDate,
		CreatedBy:   createdByOrUser(in.CreatedBy),
		SourceRunID: in.SourceRunID,
	}
	err := r.DB.QueryRowContext(ctx, query,
		m.ID,
		m.UserID,
		m.GoalID,
		m.Title,
		nullableString(m.TargetDate),
		m.CreatedBy,
		nullableString(m.SourceRunID),
	).Scan(&m.CreatedAt)
	if err != nil {
		return Milestone{}, fmt.Errorf("insert milestone: %w", err)
	}
	return m, nil
}

func (r *PGRepo) ListMilestones(ctx context.Context, userID, goalID string) ([]Milestone, error) {
	const query = `
SELECT id::text, user_id, goal_id::text, title, target_date::text, completed, created_by, source_run_id::text, created_at
FROM milestones
WHERE user_id = $1 AND goal_id = $2
ORDER BY target_date ASC NULLS LAST, created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	defer rows.Close()

	var out []Milestone
	for rows.Next() {
		var m Milestone
		var targetDate, sourceRunID sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.GoalID, &m.Title, &targetDate, &m.Completed, &m.CreatedBy, &sourceRunID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.TargetDate = targetDate.String
		m.SourceRunID = sourceRunID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PGRepo) UpsertWeeklyPlan(ctx context.Context, userID, goalID, weekStart, focus string) error {
	const query = `
INSERT INTO weekly_plans (id, user_id, goal_id, week_start, focus, created_at)
VALUES ($1, $2, $3, $4::date, $5, now())
ON CONFLICT (goal_id, week_start) DO UPDATE SET
  focus = EXCLUDED.focus,
  user_id = EXCLUDED.user_id`
	_, err := r.DB.ExecContext(ctx, query, uuid.NewString(), userID, goalID, weekStart, focus)
	if err != nil {
		return fmt.Errorf("upsert weekly plan: %w", err)
	}
	return nil
}

func (r *PGRepo) ListWeeklyPlans(ctx context.Context, userID, goalID string) ([]WeeklyPlan, error) {
	const query = `
SELECT id::text, user_id, goal_id::text, week_start::text, focus, created_at
FROM weekly_plans
WHERE user_id = $1 AND goal_id = $2
ORDER BY week_start ASC`
	rows, err := r.DB.QueryContext(ctx, query, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("list weekly plans: %w", err)
	}
	defer rows.Close()

	var out []WeeklyPlan
	for rows.Next() {
		var p WeeklyPlan
		if err := rows.Scan(&p.ID, &p.UserID, &p.GoalID, &p.WeekStart, &p.Focus, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
