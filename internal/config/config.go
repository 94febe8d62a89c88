package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the voice-agent signaling backend.
type Config struct {
	BindAddr         string
	Env              string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	AgentsDir       string
	DeploymentsFile string

	SessionSweepInterval     time.Duration
	SessionInactivityTimeout time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	// Federated identity provider. Both values must be present to enable
	// federated verification; otherwise the gate runs in local-secret mode.
	IDPURL        string
	IDPServiceKey string

	LLMAPIURL string
	LLMAPIKey string
	LLMModel  string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults. A .env file in
// the working directory is honored for development setups.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":3002"),
		Env:                      envOrDefault("APP_ENV", "development"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		AgentsDir:                envOrDefault("AGENTS_DIR", "data/agents"),
		DeploymentsFile:          envOrDefault("DEPLOYMENTS_FILE", "data/deployments.json"),
		JWTSecret:                trimmedEnv("JWT_SECRET"),
		IDPURL:                   trimmedEnv("IDP_URL"),
		IDPServiceKey:            trimmedEnv("IDP_SERVICE_KEY"),
		LLMAPIURL:                envOrDefault("LLM_API_URL", "https://api.anthropic.com"),
		LLMAPIKey:                trimmedEnv("LLM_API_KEY"),
		LLMModel:                 envOrDefault("LLM_MODEL", "claude-3-haiku-20240307"),
		DatabaseURL:              trimmedEnv("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionSweepInterval:     5 * time.Minute,
		SessionInactivityTimeout: 30 * time.Minute,
		JWTTTL:                   24 * time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionSweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", cfg.SessionSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JWTTTL, err = durationFromEnv("JWT_TTL", cfg.JWTTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionSweepInterval < time.Second {
		return Config{}, fmt.Errorf("SESSION_SWEEP_INTERVAL must be at least 1s")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.JWTTTL < time.Minute {
		return Config{}, fmt.Errorf("JWT_TTL must be at least 1m")
	}
	if cfg.IsProduction() && cfg.JWTSecret == "" && !cfg.FederatedAuth() {
		return Config{}, fmt.Errorf("JWT_SECRET is required in production without a federated identity provider")
	}

	return cfg, nil
}

// FederatedAuth reports whether both federated-identity settings are present.
func (c Config) FederatedAuth() bool {
	return c.IDPURL != "" && c.IDPServiceKey != ""
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
