package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndimarco/aria/internal/agent"
	"github.com/ndimarco/aria/internal/auth"
	"github.com/ndimarco/aria/internal/chat"
	"github.com/ndimarco/aria/internal/config"
	"github.com/ndimarco/aria/internal/deploy"
	"github.com/ndimarco/aria/internal/httpapi"
	"github.com/ndimarco/aria/internal/observability"
	"github.com/ndimarco/aria/internal/relay"
	"github.com/ndimarco/aria/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config error")
	}

	logger := newLogger(cfg)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	agents, err := agent.NewStore(cfg.AgentsDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("agent store init failed")
	}

	local, err := seedLocalVerifier(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("local credential seed failed")
	}
	gate := auth.NewGate(local, cfg.IDPURL, cfg.IDPServiceKey, logger)

	ctx := context.Background()
	chatStore, err := chat.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("chat store init failed")
	}
	defer chatStore.Close()

	var responder chat.Responder = chat.CannedResponder{}
	if cfg.LLMAPIKey != "" {
		llm := chat.NewLLMResponder(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.LLMModel)
		responder = chat.NewFallbackResponder(llm, chat.CannedResponder{}, logger)
		logger.Info().Str("model", cfg.LLMModel).Msg("chat responder: completion api with canned fallback")
	} else {
		logger.Info().Msg("chat responder: canned only (no LLM_API_KEY)")
	}

	sessions := session.NewManager(agents, relay.Responder{}.Answer)
	stages := observability.NewStageWindow(256)
	sessions.SetStageWindow(stages)
	hub := relay.NewHub(sessions, metrics, logger)

	sweeper := session.NewSweeper(sessions, cfg.SessionSweepInterval, cfg.SessionInactivityTimeout, logger)
	sweeper.SetEvictHook(func(string) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.Count()))
	})

	deployments := deploy.NewStore(cfg.DeploymentsFile, logger)

	api := httpapi.New(cfg, httpapi.Deps{
		Gate:        gate,
		Local:       local,
		Agents:      agents,
		Sessions:    sessions,
		Hub:         hub,
		Deployments: deployments,
		ChatStore:   chatStore,
		Responder:   responder,
		Metrics:     metrics,
		Stages:      stages,
		Logger:      logger,
	})
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	sweeper.Start(runCtx)

	go func() {
		logger.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg config.Config) zerolog.Logger {
	if cfg.IsProduction() {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
}

// seedLocalVerifier builds the local credential table. Passwords come from
// the environment with development defaults; real deployments either set
// strong values or run in federated mode where this table is never consulted.
func seedLocalVerifier(cfg config.Config) (*auth.LocalVerifier, error) {
	adminPass := envOrDefault("ADMIN_PASSWORD", "admin123")
	clientPass := envOrDefault("CLIENT1_PASSWORD", "client1123")

	adminHash, err := auth.HashPassword(adminPass)
	if err != nil {
		return nil, err
	}
	clientHash, err := auth.HashPassword(clientPass)
	if err != nil {
		return nil, err
	}

	users := []auth.User{
		{ID: "admin1", Username: "admin", PasswordHash: adminHash, Role: auth.RoleAdmin},
		{ID: "client1", Username: "client1", PasswordHash: clientHash, Role: auth.RoleClient, ClientID: "healthsystem1"},
	}
	return auth.NewLocalVerifier(cfg.JWTSecret, cfg.JWTTTL, users), nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
