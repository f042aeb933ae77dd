package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the TryIt orchestrator.
type Config struct {
	Port      int
	Version   string
	Provider  ProviderConfig
	Workflow  WorkflowConfig
	Routing   RoutingConfig
	Breaker   BreakerConfig
	Artifact  ArtifactConfig
	Telemetry TelemetryConfig
}

type ProviderConfig struct {
	Kind         string // "openai", "anthropic", "ollama"
	Endpoint     string
	APIKey       string
	Model        string
	MaxRetries   int
	RetryBase    time.Duration
	MaxErrorRate float64 // provider unavailable at or above this
}

// WorkflowConfig carries the per-phase deadlines. These are product policy,
// tuned against real agent latencies — change deliberately.
type WorkflowConfig struct {
	ConstructTimeout time.Duration // pre-phase agent construction
	ResearchTimeout  time.Duration
	AnalysisTimeout  time.Duration
	BuildTimeout     time.Duration
	FallbackTimeout  time.Duration // degraded single-agent path

	// SoftBudget is the request-level time budget; a late fallback is
	// skipped once more than SkipFallbackRatio of it has elapsed.
	SoftBudget        time.Duration
	SkipFallbackRatio float64
}

// RoutingConfig carries the complexity router thresholds.
type RoutingConfig struct {
	MaxSimpleLength  int // message length above this goes multi-agent
	MinQuestionMarks int
	MaxHistoryLength int
}

type BreakerConfig struct {
	FailureThreshold int
	OpenTimeout      time.Duration
}

// ArtifactConfig carries the classifier scoring thresholds.
type ArtifactConfig struct {
	MinLength      int // text shorter than this is never an artifact
	ScoreThreshold int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("TRYIT_PORT", 8080),
		Version: envStr("TRYIT_VERSION", "0.4.0"),
		Provider: ProviderConfig{
			Kind:         envStr("LLM_PROVIDER", "anthropic"),
			Endpoint:     envStr("LLM_ENDPOINT", ""),
			APIKey:       envStr("LLM_API_KEY", ""),
			Model:        envStr("LLM_MODEL", "claude-3-5-haiku-20241022"),
			MaxRetries:   envInt("LLM_MAX_RETRIES", 3),
			RetryBase:    envDur("LLM_RETRY_BASE", time.Second),
			MaxErrorRate: envFloat("LLM_MAX_ERROR_RATE", 0.20),
		},
		Workflow: WorkflowConfig{
			ConstructTimeout:  envDur("WORKFLOW_CONSTRUCT_TIMEOUT", 5*time.Second),
			ResearchTimeout:   envDur("WORKFLOW_RESEARCH_TIMEOUT", 25*time.Second),
			AnalysisTimeout:   envDur("WORKFLOW_ANALYSIS_TIMEOUT", 15*time.Second),
			BuildTimeout:      envDur("WORKFLOW_BUILD_TIMEOUT", 25*time.Second),
			FallbackTimeout:   envDur("WORKFLOW_FALLBACK_TIMEOUT", 15*time.Second),
			SoftBudget:        envDur("WORKFLOW_SOFT_BUDGET", 70*time.Second),
			SkipFallbackRatio: envFloat("WORKFLOW_SKIP_FALLBACK_RATIO", 0.8),
		},
		Routing: RoutingConfig{
			MaxSimpleLength:  envInt("ROUTING_MAX_SIMPLE_LENGTH", 150),
			MinQuestionMarks: envInt("ROUTING_MIN_QUESTION_MARKS", 2),
			MaxHistoryLength: envInt("ROUTING_MAX_HISTORY_LENGTH", 4),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
			OpenTimeout:      envDur("BREAKER_OPEN_TIMEOUT", 60*time.Second),
		},
		Artifact: ArtifactConfig{
			MinLength:      envInt("ARTIFACT_MIN_LENGTH", 100),
			ScoreThreshold: envInt("ARTIFACT_SCORE_THRESHOLD", 4),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "tryit-orchestrator"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
