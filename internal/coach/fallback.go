package coach

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"goalsectors-backend/internal/planner"
)

const maxFallbackTitle = 120

var (
	habitLeadIns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(create|add|start|build) (a |the )?(new )?habit( of| to)?\b`),
		regexp.MustCompile(`(?i)\bhabit\b`),
		regexp.MustCompile(`(?i)\bi want to\b`),
	}
	taskLeadIns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcreate a task (for me|to)\b`),
		regexp.MustCompile(`(?i)\bcreate a task\b`),
		regexp.MustCompile(`(?i)\bi want to\b`),
		regexp.MustCompile(`(?i)\bremind me to\b`),
		regexp.MustCompile(`(?i)\badd\b`),
	}
	taskTrigger   = regexp.MustCompile(`(?i)\b(task|finish|create|remind|do|work on)\b`)
	trailingDay   = regexp.MustCompile(`(?i)\s*\b(today|tomorrow)\b[\s.!]*$`)
	mentionsTmrw  = regexp.MustCompile(`(?i)\btomorrow\b`)
	edgePunct     = " \t\n.,!?:;-"
	titleRewrites = []struct{ keyword, title string }{
		{"project", "Draft project outline"},
		{"workout", "Do 15 mins HIIT"},
		{"read", "Read 10 pages"},
	}
)

// Fallback answers a turn without a model. Its output always passes Validate.
type Fallback struct {
	Now func() time.Time
}

func NewFallback(now func() time.Time) *Fallback {
	if now == nil {
		now = time.Now
	}
	return &Fallback{Now: now}
}

// Respond builds a CoachResponse JSON document for message. Reason is shown
// to the user when no action could be inferred.
func (f *Fallback) Respond(message, reason string) string {
	resp := f.response(message, reason)
	b, err := json.Marshal(resp)
	if err != nil {
		// Only plain strings and well-formed actions are marshaled.
		panic(fmt.Sprintf("coach: marshal fallback response: %v", err))
	}
	return string(b)
}

func (f *Fallback) response(message, reason string) CoachResponse {
	lower := strings.ToLower(message)
	today := f.Now()

	switch {
	case strings.Contains(lower, "habit"):
		title := fallbackTitle(message, habitLeadIns, "New Habit")
		return CoachResponse{
			AssistantMessage: fmt.Sprintf("Consistency is key! 🌱 I've started tracking %q for you. One day at a time. You're doing great! (Smart Mock Mode)", title),
			Actions:          []Action{NewCreateHabit(CreateHabit{Title: title, Frequency: planner.FrequencyDaily})},
		}
	case taskTrigger.MatchString(message):
		due := today
		if mentionsTmrw.MatchString(message) {
			due = today.AddDate(0, 0, 1)
		}
		title := fallbackTitle(trailingDay.ReplaceAllString(message, ""), taskLeadIns, "New Task")
		for _, rw := range titleRewrites {
			if strings.Contains(strings.ToLower(title), rw.keyword) {
				title = rw.title
				break
			}
		}
		return CoachResponse{
			AssistantMessage: fmt.Sprintf("You got this! 🚀 I've added %q to your plan. Small steps lead to big wins! Let's crush it today! (Smart Mock Mode)", title),
			Actions:          []Action{NewCreateTask(CreateTask{Title: title, DueDate: due.Format(planner.DateLayout)})},
		}
	default:
		return CoachResponse{
			AssistantMessage: fmt.Sprintf("I'm here to support you! 🌟 (%s). Try telling me what you want to achieve today, like \"Finish the report\" or \"Drink water\". I'll help you break it down!", reason),
			Actions:          []Action{},
		}
	}
}

func fallbackTitle(message string, leadIns []*regexp.Regexp, def string) string {
	title := message
	for _, re := range leadIns {
		title = re.ReplaceAllString(title, " ")
	}
	title = strings.Join(strings.Fields(title), " ")
	title = strings.Trim(title, edgePunct)
	if title == "" {
		return def
	}
	if utf8.RuneCountInString(title) > maxFallbackTitle {
		title = strings.TrimSpace(string([]rune(title)[:maxFallbackTitle]))
	}
	r, size := utf8.DecodeRuneInString(title)
	return string(unicode.ToUpper(r)) + title[size:]
}
