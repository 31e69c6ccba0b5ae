package planner

import "context"

// Repo is the storage surface for planner entities. It is the only mutation
// path for tasks, habits and goals.
type Repo interface {
	CreateTask(ctx context.Context, in NewTask) (Task, error)
	ListTasksForDate(ctx context.Context, userID, date string) ([]Task, error)
	DeleteTask(ctx context.Context, userID, taskID string) error

	CreateHabit(ctx context.Context, in NewHabit) (Habit, error)
	ListHabits(ctx context.Context, userID string) ([]Habit, error)
	DeleteHabit(ctx context.Context, userID, habitID string) error
	LogHabit(ctx context.Context, userID, habitID, date string) error
	GetHabitStreaks(ctx context.Context, userID, today string) ([]HabitStreak, error)

	CreateGoal(ctx context.Context, userID, title, deadline string) (Goal, error)
	ListGoals(ctx context.Context, userID string) ([]Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error

	CreateMilestone(ctx context.Context, in NewMilestone) (Milestone, error)
	ListMilestones(ctx context.Context, userID, goalID string) ([]Milestone, error)
	UpsertWeeklyPlan(ctx context.Context, userID, goalID, weekStart, focus string) error
	ListWeeklyPlans(ctx context.Context, userID, goalID string) ([]WeeklyPlan, error)
}
