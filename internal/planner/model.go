package planner

import (
	"errors"
	"time"
)

// DateLayout is the calendar-date format used for due dates, targets and logs.
const DateLayout = "2006-01-02"

const (
	CreatedByUser = "user"
	CreatedByAI   = "ai"
)

const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
)

const FrequencyDaily = "daily"

var ErrNotFound = errors.New("planner: not found")

type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	DueDate     string    `json:"dueDate,omitempty"`
	Status      string    `json:"status"`
	GoalID      string    `json:"goalId,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	SourceRunID string    `json:"sourceRunId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewTask is the input for creating a task.
type NewTask struct {
	UserID      string
	Title       string
	DueDate     string
	GoalID      string
	CreatedBy   string
	SourceRunID string
}

type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Frequency   string    `json:"frequency"`
	CreatedBy   string    `json:"createdBy"`
	SourceRunID string    `json:"sourceRunId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewHabit is the input for creating a habit.
type NewHabit struct {
	UserID      string
	Title       string
	Frequency   string
	CreatedBy   string
	SourceRunID string
}

type HabitLog struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
}

type HabitStreak struct {
	HabitID       string `json:"habitId"`
	CurrentStreak int    `json:"currentStreak"`
	LastDoneDate  string `json:"lastDoneDate,omitempty"`
}

type Goal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Deadline  string    `json:"deadline,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Milestone struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	GoalID      string    `json:"goalId"`
	Title       string    `json:"title"`
	TargetDate  string    `json:"targetDate,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedBy   string    `json:"createdBy"`
	SourceRunID string    `json:"sourceRunId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewMilestone is the input for creating a milestone. TargetDate may be empty.
type NewMilestone struct {
	UserID      string
	GoalID      string
	Title       string
	TargetDate  string
	CreatedBy   string
	SourceRunID string
}

type WeeklyPlan struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	GoalID    string    `json:"goalId"`
	WeekStart string    `json:"weekStart"`
	Focus     string    `json:"focus"`
	CreatedAt time.Time `json:"createdAt"`
}
