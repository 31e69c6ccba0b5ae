package coach

import (
	"encoding/json"
	"fmt"

	"goalsectors-backend/internal/planner"
)

// Kind names an action the model may propose.
type Kind string

const (
	KindCreateTask     Kind = "CREATE_TASK"
	KindCreateHabit    Kind = "CREATE_HABIT"
	KindCreateGoalPlan Kind = "CREATE_GOAL_PLAN"
	KindDeleteTask     Kind = "DELETE_TASK"
	KindDeleteHabit    Kind = "DELETE_HABIT"
	KindDeleteGoal     Kind = "DELETE_GOAL"
)

var allKinds = []Kind{
	KindCreateTask,
	KindCreateHabit,
	KindCreateGoalPlan,
	KindDeleteTask,
	KindDeleteHabit,
	KindDeleteGoal,
}

// Sector returns the sector that must be enabled for the kind to take effect.
func (k Kind) Sector() planner.Sector {
	switch k {
	case KindCreateTask, KindDeleteTask:
		return planner.SectorProductivity
	case KindCreateHabit, KindDeleteHabit:
		return planner.SectorHabits
	case KindCreateGoalPlan, KindDeleteGoal:
		return planner.SectorGoals
	default:
		panic(fmt.Sprintf("coach: unknown action kind %q", string(k)))
	}
}

// IsDelete reports whether the kind removes an existing entity.
func (k Kind) IsDelete() bool {
	return k == KindDeleteTask || k == KindDeleteHabit || k == KindDeleteGoal
}

type CreateTask struct {
	Title   string `json:"title"`
	DueDate string `json:"due_date"`
}

type CreateHabit struct {
	Title     string `json:"title"`
	Frequency string `json:"frequency"`
}

type Milestone struct {
	Title      string  `json:"title"`
	TargetDate *string `json:"target_date"`
}

type WeekPlan struct {
	WeekStart string `json:"week_start"`
	Focus     string `json:"focus"`
}

type CreateGoalPlan struct {
	GoalID     string      `json:"goal_id"`
	Milestones []Milestone `json:"milestones"`
	WeeklyPlan []WeekPlan  `json:"weekly_plan"`
}

// DeleteTarget names the entity to remove by title.
type DeleteTarget struct {
	Title string `json:"title"`
}

// Action is a closed variant: exactly one payload is set, matching Kind.
// Build values with the New* constructors.
type Action struct {
	kind     Kind
	task     *CreateTask
	habit    *CreateHabit
	goalPlan *CreateGoalPlan
	target   *DeleteTarget
}

func NewCreateTask(p CreateTask) Action { return Action{kind: KindCreateTask, task: &p} }

func NewCreateHabit(p CreateHabit) Action {
	if p.Frequency == "" {
		p.Frequency = planner.FrequencyDaily
	}
	return Action{kind: KindCreateHabit, habit: &p}
}

func NewCreateGoalPlan(p CreateGoalPlan) Action {
	if p.Milestones == nil {
		p.Milestones = []Milestone{}
	}
	if p.WeeklyPlan == nil {
		p.WeeklyPlan = []WeekPlan{}
	}
	return Action{kind: KindCreateGoalPlan, goalPlan: &p}
}

func NewDeleteTask(p DeleteTarget) Action  { return Action{kind: KindDeleteTask, target: &p} }
func NewDeleteHabit(p DeleteTarget) Action { return Action{kind: KindDeleteHabit, target: &p} }
func NewDeleteGoal(p DeleteTarget) Action  { return Action{kind: KindDeleteGoal, target: &p} }

func (a Action) Kind() Kind { return a.kind }

// Task returns the CREATE_TASK payload, or false for other kinds.
func (a Action) Task() (CreateTask, bool) {
	if a.task == nil {
		return CreateTask{}, false
	}
	return *a.task, true
}

func (a Action) Habit() (CreateHabit, bool) {
	if a.habit == nil {
		return CreateHabit{}, false
	}
	return *a.habit, true
}

func (a Action) GoalPlan() (CreateGoalPlan, bool) {
	if a.goalPlan == nil {
		return CreateGoalPlan{}, false
	}
	return *a.goalPlan, true
}

// Target returns the payload of the three delete kinds.
func (a Action) Target() (DeleteTarget, bool) {
	if a.target == nil {
		return DeleteTarget{}, false
	}
	return *a.target, true
}

func (a Action) payload() any {
	switch a.kind {
	case KindCreateTask:
		return a.task
	case KindCreateHabit:
		return a.habit
	case KindCreateGoalPlan:
		return a.goalPlan
	case KindDeleteTask, KindDeleteHabit, KindDeleteGoal:
		return a.target
	default:
		return nil
	}
}

type wireAction struct {
	Type    Kind `json:"type"`
	Payload any  `json:"payload"`
}

// MarshalJSON writes the {"type","payload"} wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAction{Type: a.kind, Payload: a.payload()})
}

// CoachResponse is the validated model output.
type CoachResponse struct {
	AssistantMessage string   `json:"assistant_message"`
	Actions          []Action `json:"actions"`
}
