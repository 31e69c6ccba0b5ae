package airuns

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const defaultListLimit = 50

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) LogRun(ctx context.Context, in NewRun) (Run, error) {
	const query = `
INSERT INTO ai_runs (id, user_id, route, prompt, response, schema_valid, latency_ms, prompt_version, trace_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`
	run := Run{
		ID:            in.id(),
		UserID:        in.UserID,
		Route:         in.Route,
		Prompt:        in.Prompt,
		Response:      in.Response,
		SchemaValid:   in.SchemaValid,
		LatencyMs:     in.LatencyMs,
		PromptVersion: in.PromptVersion,
		TraceID:       in.TraceID,
	}
	err := r.DB.QueryRowContext(ctx, query,
		run.ID,
		run.UserID,
		run.Route,
		run.Prompt,
		run.Response,
		run.SchemaValid,
		run.LatencyMs,
		nullableString(run.PromptVersion),
		nullableString(run.TraceID),
	).Scan(&run.CreatedAt)
	if err != nil {
		return Run{}, fmt.Errorf("insert ai run: %w", err)
	}
	return run, nil
}

func (r *PGRepo) LogEval(ctx context.Context, eval Eval) error {
	const query = `
INSERT INTO ai_evals (
	id, run_id, user_id, score_total, schema_score, sector_score,
	usefulness_score, efficiency_score, violated_sector, empty_actions, reasons
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)`
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	reasons := eval.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	payload, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		eval.ID,
		eval.RunID,
		eval.UserID,
		eval.ScoreTotal,
		eval.SchemaScore,
		eval.SectorScore,
		eval.UsefulnessScore,
		eval.EfficiencyScore,
		eval.ViolatedSector,
		eval.EmptyActions,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert ai eval: %w", err)
	}
	return nil
}

func (r *PGRepo) GetRun(ctx context.Context, userID, runID string) (Run, error) {
	const query = `
SELECT id::text, user_id, route, prompt, response, schema_valid, latency_ms, prompt_version, trace_id, created_at
FROM ai_runs
WHERE id = $1 AND user_id = $2
LIMIT 1`
	var run Run
	var promptVersion, traceID sql.NullString
	err := r.DB.QueryRowContext(ctx, query, runID, userID).Scan(
		&run.ID,
		&run.UserID,
		&run.Route,
		&run.Prompt,
		&run.Response,
		&run.SchemaValid,
		&run.LatencyMs,
		&promptVersion,
		&traceID,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	run.PromptVersion = promptVersion.String
	run.TraceID = traceID.String
	return run, nil
}

func (r *PGRepo) LogFeedback(ctx context.Context, userID, runID string, helpful bool, comment string) (Feedback, error) {
	const query = `
INSERT INTO ai_feedback (id, user_id, run_id, helpful, comment)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	fb := Feedback{
		ID:      uuid.NewString(),
		UserID:  userID,
		RunID:   runID,
		Helpful: helpful,
		Comment: comment,
	}
	err := r.DB.QueryRowContext(ctx, query, fb.ID, userID, runID, helpful, nullableString(comment)).Scan(&fb.CreatedAt)
	if err != nil {
		return Feedback{}, fmt.Errorf("insert ai feedback: %w", err)
	}
	return fb, nil
}

func (r *PGRepo) ListRunsWithEvals(ctx context.Context, userID string, limit int) ([]RunWithEval, error) {
	const query = `
SELECT r.id::text, r.user_id, r.route, r.prompt, r.response, r.schema_valid, r.latency_ms,
       r.prompt_version, r.trace_id, r.created_at,
       e.id::text, e.score_total, e.schema_score, e.sector_score, e.usefulness_score,
       e.efficiency_score, e.violated_sector, e.empty_actions, e.reasons::text, e.created_at,
       f.id::text, f.helpful, f.comment, f.created_at
FROM ai_runs r
LEFT JOIN ai_evals e ON e.run_id = r.id
LEFT JOIN LATERAL (
	SELECT id, helpful, comment, created_at
	FROM ai_feedback
	WHERE run_id = r.id
	ORDER BY created_at DESC
	LIMIT 1
) f ON true
WHERE r.user_id = $1
ORDER BY r.created_at DESC
LIMIT $2`
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunWithEval{}
	for rows.Next() {
		var item RunWithEval
		var promptVersion, traceID sql.NullString
		var evalID, reasons sql.NullString
		var scoreTotal, schemaScore, sectorScore, usefulness, efficiency sql.NullInt64
		var violated, empty sql.NullBool
		var evalCreated sql.NullTime
		var fbID, fbComment sql.NullString
		var fbHelpful sql.NullBool
		var fbCreated sql.NullTime
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Route,
			&item.Prompt,
			&item.Response,
			&item.SchemaValid,
			&item.LatencyMs,
			&promptVersion,
			&traceID,
			&item.CreatedAt,
			&evalID,
			&scoreTotal,
			&schemaScore,
			&sectorScore,
			&usefulness,
			&efficiency,
			&violated,
			&empty,
			&reasons,
			&evalCreated,
			&fbID,
			&fbHelpful,
			&fbComment,
			&fbCreated,
		); err != nil {
			return nil, err
		}
		item.PromptVersion = promptVersion.String
		item.TraceID = traceID.String
		if evalID.Valid {
			eval := Eval{
				ID:              evalID.String,
				RunID:           item.ID,
				UserID:          item.UserID,
				ScoreTotal:      int(scoreTotal.Int64),
				SchemaScore:     int(schemaScore.Int64),
				SectorScore:     int(sectorScore.Int64),
				UsefulnessScore: int(usefulness.Int64),
				EfficiencyScore: int(efficiency.Int64),
				ViolatedSector:  violated.Bool,
				EmptyActions:    empty.Bool,
				Reasons:         []string{},
				CreatedAt:       evalCreated.Time,
			}
			if reasons.Valid {
				if err := json.Unmarshal([]byte(reasons.String), &eval.Reasons); err != nil {
					eval.Reasons = []string{}
				}
			}
			item.Eval = &eval
		}
		if fbID.Valid {
			item.Feedback = &Feedback{
				ID:        fbID.String,
				UserID:    item.UserID,
				RunID:     item.ID,
				Helpful:   fbHelpful.Bool,
				Comment:   fbComment.String,
				CreatedAt: fbCreated.Time,
			}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PGRepo) FeedbackStats(ctx context.Context, userID string) (FeedbackStats, error) {
	const query = `
SELECT COUNT(*), COUNT(*) FILTER (WHERE helpful)
FROM ai_feedback
WHERE user_id = $1`
	var total, helpful int
	if err := r.DB.QueryRowContext(ctx, query, userID).Scan(&total, &helpful); err != nil {
		return FeedbackStats{}, err
	}
	return computeStats(helpful, total), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
