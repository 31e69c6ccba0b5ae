package main

// Run a single coach turn from the command line:
//   go run ./cmd/coachturn -message "remind me to finish the report tomorrow"

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"goalsectors-backend/internal/bootstrap"
	"goalsectors-backend/internal/coach"
	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	userID := flag.String("user", "cli-user", "User id")
	message := flag.String("message", "", "Message to send to the coach")
	mode := flag.String("mode", cfg.Coach.DefaultMode, "Coach persona mode")
	promptVersion := flag.String("prompt-version", cfg.Coach.DefaultPromptVersion, "Prompt version")
	sectors := flag.String("sectors", "", "Comma-separated enabled sectors (optional)")
	provider := flag.String("provider", cfg.LLM.Provider, "LLM provider (openai, gemini, none)")
	model := flag.String("model", cfg.LLM.Model, "LLM model")
	useDB := flag.Bool("db", false, "Use DATABASE_URL instead of in-memory storage")
	outPath := flag.String("out", "", "Path to write the JSON result (optional)")
	flag.Parse()

	if strings.TrimSpace(*message) == "" {
		exitErr("message is required")
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(*provider))
	cfg.LLM.Model = *model

	ctx := context.Background()
	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Memory: !*useDB})
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	defer func() { _ = app.Close(ctx) }()

	req := coach.TurnRequest{
		UserID:        *userID,
		Message:       *message,
		Mode:          *mode,
		PromptVersion: *promptVersion,
	}
	if strings.TrimSpace(*sectors) != "" {
		parsed, err := parseSectors(*sectors)
		if err != nil {
			exitErr(err.Error())
		}
		req.EnabledSectors = &parsed
	}

	res, err := app.CoachService.Turn(ctx, req)
	if err != nil {
		exitErr(fmt.Sprintf("coach turn: %v", err))
	}

	raw, err := json.Marshal(res)
	if err != nil {
		exitErr(fmt.Sprintf("encode result: %v", err))
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	buf.WriteByte('\n')

	if *outPath != "" {
		if err := os.WriteFile(*outPath, buf.Bytes(), 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func parseSectors(raw string) ([]planner.Sector, error) {
	var out []planner.Sector
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s, err := planner.ParseSector(part)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
