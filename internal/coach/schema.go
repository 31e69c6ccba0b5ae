package coach

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"goalsectors-backend/internal/planner"
)

// ValidationResult is the outcome of checking model output against the action schema.
// Error is a path-qualified message fit for a corrective prompt.
type ValidationResult struct {
	OK    bool
	Data  CoachResponse
	Error string
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const dateShape = "string matching YYYY-MM-DD"

// ParseAndValidate decodes raw model text and validates it. A parse failure
// is reported the same way as a shape mismatch.
func ParseAndValidate(text string) ValidationResult {
	var raw any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &raw); err != nil {
		return ValidationResult{Error: "invalid JSON: " + err.Error()}
	}
	return Validate(raw)
}

// Validate checks an already-decoded JSON value. It has no side effects.
func Validate(raw any) ValidationResult {
	resp, err := validateResponse(raw)
	if err != nil {
		return ValidationResult{Error: err.Error()}
	}
	return ValidationResult{OK: true, Data: resp}
}

type schemaError struct {
	path     string
	expected string
	actual   string
}

func (e *schemaError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.path, e.expected, e.actual)
}

func mismatch(path, expected string, value any, present bool) error {
	actual := "undefined"
	if present {
		actual = describe(value)
	}
	return &schemaError{path: path, expected: expected, actual: actual}
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		if len(t) > 40 {
			t = t[:40] + "..."
		}
		return fmt.Sprintf("%q", t)
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func validateResponse(raw any) (CoachResponse, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return CoachResponse{}, mismatch("response", "object", raw, true)
	}

	msgRaw, present := obj["assistant_message"]
	msg, ok := msgRaw.(string)
	if !ok {
		return CoachResponse{}, mismatch("assistant_message", "string", msgRaw, present)
	}

	resp := CoachResponse{AssistantMessage: msg, Actions: []Action{}}
	actionsRaw, present := obj["actions"]
	if !present || actionsRaw == nil {
		return resp, nil
	}
	list, ok := actionsRaw.([]any)
	if !ok {
		return CoachResponse{}, mismatch("actions", "array", actionsRaw, true)
	}
	for i, item := range list {
		action, err := validateAction(fmt.Sprintf("actions[%d]", i), item)
		if err != nil {
			return CoachResponse{}, err
		}
		resp.Actions = append(resp.Actions, action)
	}
	return resp, nil
}

func validateAction(path string, raw any) (Action, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Action{}, mismatch(path, "object", raw, true)
	}
	typeRaw, present := obj["type"]
	typeName, _ := typeRaw.(string)
	kind := Kind(typeName)
	if !isKnownKind(kind) {
		return Action{}, mismatch(path+".type", "one of "+kindList(), typeRaw, present)
	}

	payloadPath := path + ".payload"
	payloadRaw, present := obj["payload"]
	payload, ok := payloadRaw.(map[string]any)
	if !ok {
		return Action{}, mismatch(payloadPath, "object", payloadRaw, present)
	}

	switch kind {
	case KindCreateTask:
		title, err := requireTitle(payloadPath, payload)
		if err != nil {
			return Action{}, err
		}
		due, err := requireDate(payloadPath, "due_date", payload, false)
		if err != nil {
			return Action{}, err
		}
		return NewCreateTask(CreateTask{Title: title, DueDate: *due}), nil

	case KindCreateHabit:
		title, err := requireTitle(payloadPath, payload)
		if err != nil {
			return Action{}, err
		}
		freqRaw, present := payload["frequency"]
		if present && freqRaw != nil && freqRaw != planner.FrequencyDaily {
			return Action{}, mismatch(payloadPath+".frequency", `"daily"`, freqRaw, true)
		}
		return NewCreateHabit(CreateHabit{Title: title, Frequency: planner.FrequencyDaily}), nil

	case KindCreateGoalPlan:
		return validateGoalPlan(payloadPath, payload)

	case KindDeleteTask, KindDeleteHabit, KindDeleteGoal:
		title, err := requireTitle(payloadPath, payload)
		if err != nil {
			return Action{}, err
		}
		target := DeleteTarget{Title: title}
		switch kind {
		case KindDeleteTask:
			return NewDeleteTask(target), nil
		case KindDeleteHabit:
			return NewDeleteHabit(target), nil
		default:
			return NewDeleteGoal(target), nil
		}
	}
	return Action{}, mismatch(path+".type", "one of "+kindList(), typeRaw, present)
}

func validateGoalPlan(path string, payload map[string]any) (Action, error) {
	goalRaw, present := payload["goal_id"]
	goalID, ok := goalRaw.(string)
	if !ok || !isUUID(goalID) {
		return Action{}, mismatch(path+".goal_id", "string in UUID format", goalRaw, present)
	}

	milestonesRaw, present := payload["milestones"]
	milestoneList, ok := milestonesRaw.([]any)
	if !ok {
		return Action{}, mismatch(path+".milestones", "array", milestonesRaw, present)
	}
	milestones := make([]Milestone, 0, len(milestoneList))
	for i, item := range milestoneList {
		itemPath := fmt.Sprintf("%s.milestones[%d]", path, i)
		obj, ok := item.(map[string]any)
		if !ok {
			return Action{}, mismatch(itemPath, "object", item, true)
		}
		title, err := requireTitle(itemPath, obj)
		if err != nil {
			return Action{}, err
		}
		target, err := requireDate(itemPath, "target_date", obj, true)
		if err != nil {
			return Action{}, err
		}
		milestones = append(milestones, Milestone{Title: title, TargetDate: target})
	}

	weeksRaw, present := payload["weekly_plan"]
	weekList, ok := weeksRaw.([]any)
	if !ok {
		return Action{}, mismatch(path+".weekly_plan", "array", weeksRaw, present)
	}
	weeks := make([]WeekPlan, 0, len(weekList))
	for i, item := range weekList {
		itemPath := fmt.Sprintf("%s.weekly_plan[%d]", path, i)
		obj, ok := item.(map[string]any)
		if !ok {
			return Action{}, mismatch(itemPath, "object", item, true)
		}
		start, err := requireDate(itemPath, "week_start", obj, false)
		if err != nil {
			return Action{}, err
		}
		focusRaw, present := obj["focus"]
		focus, ok := focusRaw.(string)
		if !ok {
			return Action{}, mismatch(itemPath+".focus", "string", focusRaw, present)
		}
		weeks = append(weeks, WeekPlan{WeekStart: *start, Focus: focus})
	}

	return NewCreateGoalPlan(CreateGoalPlan{GoalID: goalID, Milestones: milestones, WeeklyPlan: weeks}), nil
}

func requireTitle(path string, obj map[string]any) (string, error) {
	raw, present := obj["title"]
	title, ok := raw.(string)
	if !ok || strings.TrimSpace(title) == "" {
		return "", mismatch(path+".title", "non-empty string", raw, present)
	}
	return strings.TrimSpace(title), nil
}

// requireDate returns nil only when nullable and the value is null or absent.
func requireDate(parent, key string, obj map[string]any, nullable bool) (*string, error) {
	path := parent + "." + key
	raw, present := obj[key]
	if nullable && raw == nil {
		return nil, nil
	}
	shape := dateShape
	if nullable {
		shape += " or null"
	}
	s, ok := raw.(string)
	if !ok || !isDate(s) {
		return nil, mismatch(path, shape, raw, present)
	}
	return &s, nil
}

func isDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(planner.DateLayout, s)
	return err == nil
}

func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func isKnownKind(k Kind) bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

func kindList() string {
	names := make([]string, len(allKinds))
	for i, k := range allKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
