package airuns

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RouteCoach is the route tag stored on coach turn runs.
const RouteCoach = "coach"

var ErrNotFound = errors.New("airuns: not found")

// Run is the persisted record of one coach turn.
type Run struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Route         string    `json:"route"`
	Prompt        string    `json:"prompt"`
	Response      string    `json:"response"`
	SchemaValid   bool      `json:"schemaValid"`
	LatencyMs     int64     `json:"latencyMs"`
	PromptVersion string    `json:"promptVersion,omitempty"`
	TraceID       string    `json:"traceId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewRun is the input for logging a run. ID may be pre-assigned so entities
// created during the turn can reference the run before it is stored.
type NewRun struct {
	ID            string
	UserID        string
	Route         string
	Prompt        string
	Response      string
	SchemaValid   bool
	LatencyMs     int64
	PromptVersion string
	TraceID       string
}

// Eval is the flattened evaluation stored alongside a run.
type Eval struct {
	ID              string    `json:"id"`
	RunID           string    `json:"runId"`
	UserID          string    `json:"userId"`
	ScoreTotal      int       `json:"scoreTotal"`
	SchemaScore     int       `json:"schemaScore"`
	SectorScore     int       `json:"sectorScore"`
	UsefulnessScore int       `json:"usefulnessScore"`
	EfficiencyScore int       `json:"efficiencyScore"`
	ViolatedSector  bool      `json:"violatedSector"`
	EmptyActions    bool      `json:"emptyActions"`
	Reasons         []string  `json:"reasons"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	RunID     string    `json:"runId"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RunWithEval is a run joined with its eval and latest feedback, if any.
type RunWithEval struct {
	Run
	Eval     *Eval     `json:"eval,omitempty"`
	Feedback *Feedback `json:"feedback,omitempty"`
}

// FeedbackStats summarizes helpfulness votes. HelpfulRate is a rounded percentage.
type FeedbackStats struct {
	HelpfulRate int `json:"helpfulRate"`
	Total       int `json:"total"`
}

func (in NewRun) id() string {
	if in.ID != "" {
		return in.ID
	}
	return uuid.NewString()
}

func computeStats(helpful, total int) FeedbackStats {
	if total == 0 {
		return FeedbackStats{}
	}
	return FeedbackStats{
		HelpfulRate: int(float64(helpful)*100/float64(total) + 0.5),
		Total:       total,
	}
}
