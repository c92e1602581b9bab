package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/config"
	infraredis "intelliquiz-engine/internal/infra/redis"
	"intelliquiz-engine/internal/platform/logger"
	transport "intelliquiz-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz engine HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	rules, err := cfg.GamificationRules()
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if st.backend == "memory" {
		seedDemoUsers(ctx, st.ledger, log)
	}

	ranker := app.NewLeaderboardRanker(st.board)
	hub := app.NewLeaderboardHub()
	var publisher app.SnapshotPublisher = hub
	if st.redis != nil {
		relay := infraredis.NewLeaderboardRelay(st.redis, hub, log)
		publisher = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("leaderboard relay stopped", "error", err)
			}
		}()
	}

	gamifier := app.NewGamificationEngine(st.ledger, rules, log)
	submissions := app.NewSubmissionService(st.attempts, st.ledger, gamifier, log,
		app.WithLeaderboardStream(ranker, publisher, cfg.Leaderboard.StreamSize))
	analytics := app.NewAnalyticsService(st.attempts, st.ledger, cfg.Analytics.WeakTopics, cfg.Analytics.TrendSize, log)

	var auth *transport.JWTAuth
	if cfg.Auth.Secret != "" {
		auth = transport.NewJWTAuth(cfg.Auth.Secret, cfg.Auth.Issuer, log)
	} else {
		log.Warn("auth.secret not set: tokens are ignored and admin routes are open")
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	handler := transport.NewHandler(submissions, analytics, ranker, cfg.Leaderboard.DefaultLimit, log)
	stream := transport.NewStreamHandler(ranker, hub, cfg.Leaderboard.StreamSize, log)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(handler, stream, auth, log),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz engine", "port", finalPort, "backend", st.backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedDemoUsers gives a fresh in-memory instance a few accounts to submit as.
func seedDemoUsers(ctx context.Context, ledger userRegistry, log *logger.Logger) {
	for _, u := range []struct {
		name string
		role string
	}{
		{"alice", "ROLE_STUDENT"},
		{"bob", "ROLE_STUDENT"},
		{"carol", "ROLE_TEACHER"},
		{"admin", transport.AdminRole},
	} {
		created, err := ledger.CreateUser(ctx, u.name, u.role)
		if err != nil {
			log.Warn("demo user not created", "username", u.name, "error", err)
			continue
		}
		log.Debug("demo user", "username", created.Username, "userId", created.UserID)
	}
}

