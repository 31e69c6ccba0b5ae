package coach

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"goalsectors-backend/internal/planner"
)

const (
	scoreFull     = 25
	scoreModerate = 15
	scorePartial  = 10
	scoreLow      = 5

	fastLatencyMs     = 1200
	moderateLatencyMs = 2500
)

type Scores struct {
	Schema           int `json:"schema"`
	SectorCompliance int `json:"sector_compliance"`
	Usefulness       int `json:"usefulness"`
	Efficiency       int `json:"efficiency"`
}

// EvalResult is the deterministic quality score of one turn.
type EvalResult struct {
	ScoreTotal     int      `json:"score_total"`
	Scores         Scores   `json:"scores"`
	Reasons        []string `json:"reasons"`
	ViolatedSector bool     `json:"violated_sector"`
	EmptyActions   bool     `json:"empty_actions"`
}

type EvalInput struct {
	EnabledSectors   []planner.Sector
	UserMessage      string
	AssistantMessage string
	Actions          []Action
	SchemaValid      bool
	LatencyMs        int64
}

// Evaluate scores a turn. It is pure: the same input always yields the same result.
func Evaluate(in EvalInput) EvalResult {
	reasons := []string{}

	schema := 0
	if in.SchemaValid {
		schema = scoreFull
	} else {
		reasons = append(reasons, "Schema validation failed")
	}

	// Only the first violating action is scored and reported.
	sector := scoreFull
	violated := false
	for _, a := range in.Actions {
		owner := a.Kind().Sector()
		if !planner.HasSector(in.EnabledSectors, owner) {
			sector = 0
			violated = true
			reasons = append(reasons, fmt.Sprintf("Action %s attempted in disabled sector: %s", a.Kind(), owner))
			break
		}
	}

	hasActions := len(in.Actions) > 0
	clearNextStep := utf8.RuneCountInString(in.AssistantMessage) > 20 && !strings.Contains(in.AssistantMessage, "Error")
	usefulness := scorePartial
	if hasActions || clearNextStep {
		usefulness = scoreFull
	} else {
		reasons = append(reasons, "No actions and unclear next step")
	}

	var efficiency int
	switch {
	case in.LatencyMs < fastLatencyMs:
		efficiency = scoreFull
	case in.LatencyMs < moderateLatencyMs:
		efficiency = scoreModerate
		reasons = append(reasons, fmt.Sprintf("Moderate latency: %dms", in.LatencyMs))
	default:
		efficiency = scoreLow
		reasons = append(reasons, fmt.Sprintf("High latency: %dms", in.LatencyMs))
	}

	return EvalResult{
		ScoreTotal: schema + sector + usefulness + efficiency,
		Scores: Scores{
			Schema:           schema,
			SectorCompliance: sector,
			Usefulness:       usefulness,
			Efficiency:       efficiency,
		},
		Reasons:        reasons,
		ViolatedSector: violated,
		EmptyActions:   !hasActions,
	}
}
