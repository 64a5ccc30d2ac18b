package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dosewatch/dosewatch/internal/config"
	"github.com/dosewatch/dosewatch/internal/domain/appointment"
	"github.com/dosewatch/dosewatch/internal/domain/inbox"
	"github.com/dosewatch/dosewatch/internal/domain/medication"
	"github.com/dosewatch/dosewatch/internal/domain/patient"
	"github.com/dosewatch/dosewatch/internal/domain/reminder"
	"github.com/dosewatch/dosewatch/internal/platform/auth"
	"github.com/dosewatch/dosewatch/internal/platform/db"
	"github.com/dosewatch/dosewatch/internal/platform/middleware"
	"github.com/dosewatch/dosewatch/internal/platform/notification"
	"github.com/dosewatch/dosewatch/internal/platform/telemetry"
	"github.com/dosewatch/dosewatch/internal/platform/tone"
	"github.com/dosewatch/dosewatch/internal/remind"
	"github.com/dosewatch/dosewatch/internal/remind/alarm"
	"github.com/dosewatch/dosewatch/internal/remind/countdown"
	"github.com/dosewatch/dosewatch/internal/remind/offline"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "dosewatch",
		Short: "Medication reminder server and device agent",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the reminder API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the device agent (countdown, alarms, offline notifications)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "dosewatch",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	defer tp.Shutdown(ctx)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware())
	case "local":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", tp.PrometheusHandler())

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	reminderSvc := reminder.NewService(reminder.NewRepoPG(pool), pool, tp)
	reminder.NewHandler(reminderSvc).RegisterRoutes(apiV1)

	medication.NewHandler(medication.NewService(medication.NewRepoPG(pool))).RegisterRoutes(apiV1)
	patient.NewHandler(patient.NewService(patient.NewRepoPG(pool))).RegisterRoutes(apiV1)
	appointment.NewHandler(appointment.NewService(appointment.NewRepoPG(pool))).RegisterRoutes(apiV1)
	inbox.NewHandler(inbox.NewService(inbox.NewRepoPG(pool))).RegisterRoutes(apiV1)

	// Periodic gauge refresh for the health dashboard.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		hm := tp.HealthMetrics()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.GetPoolStats(pool)
				hm.SetDBPoolActive(int64(stats.AcquiredConns))
				hm.SetDBPoolIdle(int64(stats.IdleConns))
				if n, err := reminderSvc.CountActive(ctx); err == nil {
					hm.SetActiveReminders(int64(n))
				}
				if n, err := reminderSvc.CountDue(ctx); err == nil {
					hm.SetPendingAlarms(int64(n))
				}
			}
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// logSounder writes tone playback to the log on hosts without an audio
// device.
type logSounder struct {
	logger zerolog.Logger
}

func (l *logSounder) Play(pcm []byte) error {
	l.logger.Info().Int("pcm_bytes", len(pcm)).Msg("alarm tone")
	return nil
}

func (l *logSounder) Stop() {}

func runAgent() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateAgent(); err != nil {
		logger.Fatal().Err(err).Msg("invalid agent configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("create data directory")
	}

	// Device channels. Headless hosts degrade to log output and no
	// vibration.
	var sounder alarm.Sounder
	if player, err := tone.NewPlayer(); err != nil {
		logger.Warn().Err(err).Msg("audio device unavailable, tones go to log")
		sounder = &logSounder{logger: logger}
	} else {
		sounder = player
	}

	notifier := &notification.LogNotifier{Logger: logger}
	manager := notification.NewManager(notifier, notification.NewTemplateEngine(), logger)

	dispatcher, err := alarm.NewDispatcher(alarm.Config{
		ToneProfile:   cfg.ToneProfile,
		CustomToneWAV: cfg.CustomToneFile,
		RingDuration:  cfg.RingDuration(),
	}, sounder, notification.NoopVibrator{}, manager, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure alarm dispatcher")
	}

	snapshots, err := offline.Open(filepath.Join(cfg.DataDir, "snapshots"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open offline snapshot store")
	}
	defer snapshots.Close()

	sweeper := offline.NewScheduler(snapshots, manager, cfg.OfflineSweepSpec, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	svc := reminder.NewService(reminder.NewRepoPG(pool), pool, nil)
	engine := countdown.NewEngine(logger)
	agent := remind.NewAgent(svc, engine, dispatcher, snapshots, logger)
	agent.SetPollInterval(cfg.PollInterval())

	// User responses to notification actions route back through the agent.
	manager.SetActionHandler(func(ctx context.Context, reminderID, action string) {
		id, err := uuid.Parse(reminderID)
		if err != nil {
			logger.Warn().Str("reminder_id", reminderID).Msg("action for unparseable reminder id")
			return
		}
		switch action {
		case notification.ActionAcknowledge:
			if _, err := agent.Acknowledge(ctx, id); err != nil {
				logger.Error().Err(err).Str("reminder_id", reminderID).Msg("acknowledge from notification")
			}
		case notification.ActionSnooze:
			agent.Snooze(id)
		}
	})

	agent.Run(ctx)
	return nil
}
