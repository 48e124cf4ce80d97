package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/agents"
	"github.com/mentorstack/mentor-engine/pkg/auth"
	"github.com/mentorstack/mentor-engine/pkg/config"
	"github.com/mentorstack/mentor-engine/pkg/console"
	"github.com/mentorstack/mentor-engine/pkg/crypto"
	"github.com/mentorstack/mentor-engine/pkg/database"
	"github.com/mentorstack/mentor-engine/pkg/handlers"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/locks"
	"github.com/mentorstack/mentor-engine/pkg/logging"
	"github.com/mentorstack/mentor-engine/pkg/middleware"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
	"github.com/mentorstack/mentor-engine/pkg/resources"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "mentor-engine",
		Short:        "AI project mentoring engine",
		Long:         "mentor-engine dispatches typed capability requests to mentoring agents\nover a shared authoritative store. The serve command exposes the HTTP\nsurface; the console command drives the same engine interactively.",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd(), newConsoleCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the interactive console",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context())
		},
	}
}

// engine is the fully wired dispatch core. Both entry points are built
// from one of these, so they share the store, the identifier scheme, and
// the credential scheme.
type engine struct {
	cfg    *config.Config
	logger *zap.Logger
	orch   *orchestrator.Orchestrator
	auth   *auth.Service
}

func buildEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(Version)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.DSN())),
		zap.String("ai_provider", cfg.AI.Provider))

	handle, err := resources.Initialize(ctx, resources.Config{
		DSN:            cfg.Database.DSN(),
		MaxConnections: cfg.Database.MaxConnections,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize resources: %w", err)
	}

	if err := database.Migrate(cfg.Database.DSN(), cfg.MigrationsPath, logger); err != nil {
		return nil, err
	}

	users := repositories.NewUserRepository(handle.DB)
	projects := repositories.NewProjectRepository(handle.DB)
	knowledge := repositories.NewKnowledgeRepository(handle.DB)
	tokens := repositories.NewRefreshTokenRepository(handle.DB)
	usage := repositories.NewUsageRepository(handle.DB)

	chat, embedder, err := llm.New(cfg.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("build llm clients: %w", err)
	}

	hasher := crypto.NewCredentialHasher()
	projectLocks := locks.NewKeyedMutex()

	userAgent := agents.NewUserAgent(users, hasher, logger)
	projectAgent := agents.NewProjectAgent(projects, knowledge, users, projectLocks, logger)
	socraticAgent := agents.NewSocraticAgent(projects, knowledge, chat, embedder, agents.SocraticConfig{
		MaxPhases:          cfg.Socratic.MaxPhases,
		MinAnswersPerPhase: cfg.Socratic.MinAnswersPerPhase,
	}, logger)
	conflictAgent := agents.NewConflictAgent(projects, logger)
	analyzerAgent := agents.NewAnalyzerAgent(projects, knowledge, chat, embedder, logger)
	codegenAgent := agents.NewCodegenAgent(projects, chat, logger)
	documentAgent := agents.NewDocumentAgent(projects, knowledge, embedder, logger)
	monitorAgent := agents.NewMonitorAgent(usage, logger)

	orch := orchestrator.New(usage, logger)
	for _, caps := range [][]orchestrator.Capability{
		userAgent.Capabilities(),
		projectAgent.Capabilities(),
		socraticAgent.Capabilities(),
		conflictAgent.Capabilities(),
		analyzerAgent.Capabilities(),
		codegenAgent.Capabilities(),
		documentAgent.Capabilities(),
		monitorAgent.Capabilities(),
	} {
		if err := orch.Register(caps...); err != nil {
			return nil, fmt.Errorf("register capabilities: %w", err)
		}
	}

	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute)
	authService := auth.NewService(userAgent, tokens, issuer, time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour, logger)

	return &engine{cfg: cfg, logger: logger, orch: orch, auth: authService}, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	logger := eng.logger
	defer func() { _ = logger.Sync() }()

	mw := auth.NewMiddleware(eng.auth, logger)
	mux := http.NewServeMux()
	handlers.NewHealthHandler(eng.cfg, logger).RegisterRoutes(mux)
	handlers.NewAuthHandler(eng.auth, mw, logger).RegisterRoutes(mux)
	handlers.NewCapabilityHandler(eng.orch, mw, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              eng.cfg.BindAddr + ":" + eng.cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting mentor-engine",
			zap.String("addr", server.Addr),
			zap.String("version", eng.cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runConsole(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = eng.logger.Sync() }()

	return console.New(eng.orch, eng.auth, os.Stdin, os.Stdout, eng.logger).Run(ctx)
}
