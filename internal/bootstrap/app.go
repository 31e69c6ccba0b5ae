package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goalsectors-backend/internal/airuns"
	"goalsectors-backend/internal/coach"
	"goalsectors-backend/internal/llm"
	"goalsectors-backend/internal/llm/gemini"
	"goalsectors-backend/internal/llm/openai"
	"goalsectors-backend/internal/planner"
	"goalsectors-backend/internal/services/health"
	"goalsectors-backend/internal/shared/config"
	"goalsectors-backend/internal/shared/server"
	"goalsectors-backend/internal/shared/server/middleware"
	"goalsectors-backend/internal/shared/storage/db"
	"goalsectors-backend/internal/shared/telemetry"
	"goalsectors-backend/internal/tracing"
	"goalsectors-backend/internal/users"
)

// App holds shared dependencies. The process entry point owns its lifecycle
// and must call Close.
type App struct {
	Config        config.Config
	Router        *gin.Engine
	DB            *sql.DB
	Sink          *tracing.Sink
	Provider      llm.Completer
	PlannerRepo   planner.Repo
	UsersRepo     users.Repo
	RunsRepo      airuns.Repo
	UsersService  *users.Service
	RunsService   *airuns.Service
	CoachService  *coach.Service
	HealthService *health.Service
	CoachHandler  *coach.Handler
	RunsHandler   *airuns.Handler
	UsersHandler  *users.Handler
}

// Options lets callers replace dependencies, mainly in tests and the CLI.
type Options struct {
	// Provider, when set, is used instead of the configured one.
	Provider llm.Completer
	// Memory forces in-memory repositories even when DATABASE_URL is set.
	Memory bool
	Now    func() time.Time
}

// Build prepares dependencies and the router.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.SetLevel(cfg.LogLevel)
	logger := telemetry.L()

	app := &App{Config: cfg}

	if !opts.Memory {
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.DB = sqlDB
	}

	sink, err := tracing.Build(ctx, tracing.Config{
		Exporter: cfg.Trace.Exporter,
		Endpoint: cfg.Trace.Endpoint,
		Insecure: cfg.Trace.Insecure,
		Project:  cfg.Trace.Project,
		Timeout:  cfg.Trace.Timeout,
	}, logger)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("build trace sink: %w", err)
	}
	app.Sink = sink

	provider := opts.Provider
	if provider == nil {
		provider, err = buildProvider(ctx, cfg.LLM)
		if err != nil {
			_ = app.Close(ctx)
			return nil, err
		}
	}
	app.Provider = provider

	buildServices(app, logger, opts.Now)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	providerName := ""
	if provider != nil {
		providerName = provider.Name()
	}
	app.HealthService = health.NewService(pinger, providerName, sink)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		CoachHandler:    app.CoachHandler,
		FeedbackHandler: app.RunsHandler,
		SectorsHandler:  app.UsersHandler,
		Health: func(c *gin.Context) any {
			return app.HealthService.Status(c.Request.Context())
		},
		RateLimiter: middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close flushes the trace sink and releases the database.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	err := a.Sink.Close(ctx)
	a.closeDB()
	return err
}

func (a *App) closeDB() {
	if a.DB != nil {
		_ = a.DB.Close()
		a.DB = nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	// Deployed environments migrate through cmd/migrate.
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

// buildProvider returns a nil Completer when the provider has no credential,
// which routes every turn to the heuristic fallback.
func buildProvider(ctx context.Context, cfg config.LLMConfig) (llm.Completer, error) {
	var (
		provider llm.Completer
		err      error
	)
	switch cfg.Provider {
	case "", "openai":
		var c *openai.Client
		c, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.Model, time.Duration(cfg.TimeoutSeconds)*time.Second)
		if c != nil {
			provider = c
		}
	case "gemini":
		model := cfg.Model
		if strings.HasPrefix(model, "gpt-") {
			model = ""
		}
		var c *gemini.Client
		c, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, model)
		if c != nil {
			provider = c
		}
	case "none", "fallback":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Provider)
	}
	if errors.Is(err, llm.ErrNoCredential) {
		telemetry.Warn("bootstrap.llm_fallback_only", map[string]any{"provider": cfg.Provider})
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("build %s provider: %w", cfg.Provider, err)
	}
	return provider, nil
}

func buildServices(app *App, logger *zap.Logger, now func() time.Time) {
	if app.DB != nil {
		app.PlannerRepo = &planner.PGRepo{DB: app.DB}
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.RunsRepo = &airuns.PGRepo{DB: app.DB}
	} else {
		app.PlannerRepo = planner.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
		app.RunsRepo = airuns.NewMemoryRepo()
	}

	coachLogger := logger.Named("coach")
	cfg := app.Config.Coach

	app.UsersService = users.NewService(app.UsersRepo)
	app.RunsService = airuns.NewService(app.RunsRepo, app.Sink)
	app.CoachService = &coach.Service{
		Users:   app.UsersService,
		Planner: app.PlannerRepo,
		Runs:    app.RunsRepo,
		Orchestrator: &coach.Orchestrator{
			Provider:   app.Provider,
			Fallback:   coach.NewFallback(now),
			Sink:       app.Sink,
			Logger:     coachLogger,
			Timeout:    cfg.ProviderTimeout,
			RetryDelay: cfg.RetryDelay,
		},
		Applier:     coach.NewApplier(app.PlannerRepo, coachLogger),
		Personas:    llm.MustLoadPersonas(),
		Sink:        app.Sink,
		Logger:      coachLogger,
		Now:         now,
		DefaultMode: cfg.DefaultMode,

		DefaultPromptVersion: cfg.DefaultPromptVersion,
	}

	app.CoachHandler = coach.NewHandler(app.CoachService)
	app.RunsHandler = airuns.NewHandler(app.RunsService)
	app.UsersHandler = users.NewHandler(app.UsersService)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
