package config

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds application configuration.
type Config struct {
	Port            string          `koanf:"port"`
	Env             string          `koanf:"env"`
	LogLevel        string          `koanf:"log_level"`
	CORSAllowOrigin []string        `koanf:"cors_allow_origins"`
	DatabaseURL     string          `koanf:"database_url"`
	LLM             LLMConfig       `koanf:"llm"`
	Coach           CoachConfig     `koanf:"coach"`
	RateLimit       RateLimitConfig `koanf:"rate_limit"`
	Trace           TraceConfig     `koanf:"trace"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider       string `koanf:"provider"`
	Model          string `koanf:"model"`
	OpenAIAPIKey   string `koanf:"openai_api_key"`
	GeminiAPIKey   string `koanf:"gemini_api_key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// CoachConfig tunes the coach turn pipeline.
type CoachConfig struct {
	ProviderTimeout      time.Duration `koanf:"provider_timeout"`
	RetryDelay           time.Duration `koanf:"retry_delay"`
	DefaultMode          string        `koanf:"default_mode"`
	DefaultPromptVersion string        `koanf:"default_prompt_version"`
}

// RateLimitConfig is the per-client budget for coach turns.
type RateLimitConfig struct {
	Rate  float64 `koanf:"rate"`
	Burst int     `koanf:"burst"`
}

// TraceConfig configures the optional trace sink. Exporter is none, log or otlp.
type TraceConfig struct {
	Exporter string        `koanf:"exporter"`
	Endpoint string        `koanf:"endpoint"`
	Insecure bool          `koanf:"insecure"`
	Project  string        `koanf:"project"`
	Timeout  time.Duration `koanf:"timeout"`
}

var envAliases = map[string]string{
	"PORT":                        "port",
	"ENV":                         "env",
	"LOG_LEVEL":                   "log_level",
	"CORS_ALLOW_ORIGINS":          "cors_allow_origins",
	"DATABASE_URL":                "database_url",
	"LLM_PROVIDER":                "llm.provider",
	"LLM_MODEL":                   "llm.model",
	"AI_MODEL":                    "llm.model",
	"OPENAI_API_KEY":              "llm.openai_api_key",
	"GEMINI_API_KEY":              "llm.gemini_api_key",
	"OPENAI_TIMEOUT_SECONDS":      "llm.timeout_seconds",
	"RATE_LIMIT_RATE":             "rate_limit.rate",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "trace.endpoint",
}

// Sections whose env vars map as SECTION_FIELD_NAME -> section.field_name.
var envSections = map[string]bool{
	"coach": true,
	"trace": true,
}

// Load reads configuration from embedded defaults, CONFIG_FILE, .env files and
// environment variables, in increasing order of precedence.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	cfg, err := load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config: %v; using defaults", err)
		cfg, _ = load("")
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	return cfg
}

func load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

// envKey maps an environment variable name to a koanf key. Empty values are
// skipped so that an exported-but-blank variable does not clear a default.
func envKey(name string) string {
	if strings.TrimSpace(os.Getenv(name)) == "" {
		return ""
	}
	if key, ok := envAliases[name]; ok {
		return key
	}
	lower := strings.ToLower(name)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 2 && envSections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return ""
}

func normalize(cfg *Config) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.CORSAllowOrigin = splitAndTrim(cfg.CORSAllowOrigin)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	cfg.Trace.Exporter = strings.ToLower(strings.TrimSpace(cfg.Trace.Exporter))
	if cfg.Coach.ProviderTimeout <= 0 {
		cfg.Coach.ProviderTimeout = 30 * time.Second
	}
	if cfg.Coach.RetryDelay < 0 {
		cfg.Coach.RetryDelay = 0
	}
	if strings.TrimSpace(cfg.Coach.DefaultPromptVersion) == "" {
		cfg.Coach.DefaultPromptVersion = "A"
	}
}

func splitAndTrim(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, p := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
