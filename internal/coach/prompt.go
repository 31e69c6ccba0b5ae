package coach

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"goalsectors-backend/internal/llm"
	"goalsectors-backend/internal/planner"
)

// PromptContext is the user state the model sees each turn.
type PromptContext struct {
	Today          string           `json:"today"`
	EnabledSectors []planner.Sector `json:"enabled_sectors"`
	TasksToday     []promptTask     `json:"tasks_today"`
	Habits         []promptHabit    `json:"habits"`
	Goals          []promptGoal     `json:"goals"`
}

type promptTask struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

type promptHabit struct {
	Title  string `json:"title"`
	Streak int    `json:"streak"`
}

type promptGoal struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Milestones []promptMilestone `json:"milestones"`
}

type promptMilestone struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NewPromptContext projects loaded planner state into the prompt shape.
// Habits without a streak entry report 0.
func NewPromptContext(today string, sectors []planner.Sector, tasks []planner.Task, habits []planner.Habit, streaks []planner.HabitStreak, goals []planner.Goal, milestones map[string][]planner.Milestone) PromptContext {
	pc := PromptContext{
		Today:          today,
		EnabledSectors: append([]planner.Sector{}, sectors...),
		TasksToday:     make([]promptTask, 0, len(tasks)),
		Habits:         make([]promptHabit, 0, len(habits)),
		Goals:          make([]promptGoal, 0, len(goals)),
	}
	for _, t := range tasks {
		pc.TasksToday = append(pc.TasksToday, promptTask{Title: t.Title, Status: t.Status})
	}
	byHabit := make(map[string]int, len(streaks))
	for _, s := range streaks {
		byHabit[s.HabitID] = s.CurrentStreak
	}
	for _, h := range habits {
		pc.Habits = append(pc.Habits, promptHabit{Title: h.Title, Streak: byHabit[h.ID]})
	}
	for _, g := range goals {
		pg := promptGoal{ID: g.ID, Title: g.Title, Milestones: []promptMilestone{}}
		for _, m := range milestones[g.ID] {
			pg.Milestones = append(pg.Milestones, promptMilestone{Title: m.Title, Completed: m.Completed})
		}
		pc.Goals = append(pc.Goals, pg)
	}
	return pc
}

const schemaDefinition = `{
  "assistant_message": "string",
  "actions": [
    { "type": "CREATE_TASK", "payload": { "title": "string", "due_date": "YYYY-MM-DD" } },
    { "type": "CREATE_HABIT", "payload": { "title": "string", "frequency": "daily" } },
    { "type": "CREATE_GOAL_PLAN", "payload": { "goal_id": "uuid", "milestones": [{ "title": "string", "target_date": "YYYY-MM-DD or null" }], "weekly_plan": [{ "week_start": "YYYY-MM-DD", "focus": "string" }] } },
    { "type": "DELETE_TASK", "payload": { "title": "string" } },
    { "type": "DELETE_HABIT", "payload": { "title": "string" } },
    { "type": "DELETE_GOAL", "payload": { "title": "string" } }
  ]
}`

var systemPromptTmpl = template.Must(template.New("system").Parse(`{{.Persona}}

# CORE PHILOSOPHY
- **Deep Understanding**: Before jumping to solutions, try to understand the user's "Why". Ask clarifying questions if their goal is vague.
- **Be Encouraging & Supportive**: You are a partner, not just a bot. Celebrate their wins. Use emojis (🚀, 🌱, 💪, ✨) to keep energy high.
- **Action-Oriented (When Ready)**: Once you understand the goal, create TASKS. But don't rush if the user is just exploring.
- **Smart Breakdown**: If a user says "I need to work on X", help them break it down into concrete steps.

# INTERACTION STYLES
- **Discovery**: If the user shares a vague goal (e.g., "I want to get fit"), ask what it looks like to them.
- **Planning**: Once the goal is clear, propose a plan.
- **Execution**: When they agree, generate the ACTIONS (Tasks/Habits).

# RULES FOR TASKS
1. **Specific**: Task titles must be concrete (e.g., "Write intro paragraph" vs "Write").
2. **Atomic**: Tasks should be doable in < 1 hour.
3. **Verbs**: Start with a verb.

Current Context:
{{.ContextJSON}}

Instructions:
1. Analyze the user's request and the current context.
2. If the user asks to create or remove something, generate the appropriate action.
3. IMPORTANT: Only generate actions for ENABLED sectors.
   - Tasks -> Productivity
   - Habits -> Habits
   - Goals -> Goals
4. If the sector is disabled, explain why you can't do it in 'assistant_message'.
5. For 'CREATE_GOAL_PLAN', you must use an existing 'goal_id' from the context.
6. Never propose more than {{.MaxActions}} actions. Dates must not be before {{.Today}}.
7. CLARIFICATION RULE: If the user's request is ambiguous (e.g. "Work on project"), DO NOT just ask back. PROPOSE a specific first step task and ask if that sounds good.
8. Return strictly valid JSON matching this schema:
{{.Schema}}
`))

// Prompt is a built system prompt plus the values traced alongside it.
type Prompt struct {
	Persona     string
	ContextJSON string
	Messages    []llm.Message
}

// BuildPrompt renders the system prompt and pairs it with the user message.
func BuildPrompt(personas llm.PersonaCatalog, mode, version string, pc PromptContext, userMessage string) (Prompt, error) {
	ctxJSON, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal prompt context: %w", err)
	}
	persona := personas.Persona(mode, version)

	var buf bytes.Buffer
	err = systemPromptTmpl.Execute(&buf, struct {
		Persona     string
		ContextJSON string
		Schema      string
		MaxActions  int
		Today       string
	}{persona, string(ctxJSON), schemaDefinition, MaxActions, pc.Today})
	if err != nil {
		return Prompt{}, fmt.Errorf("render system prompt: %w", err)
	}

	return Prompt{
		Persona:     persona,
		ContextJSON: string(ctxJSON),
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: buf.String()},
			{Role: llm.RoleUser, Content: userMessage},
		},
	}, nil
}
