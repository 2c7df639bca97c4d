package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/remora/remora/internal/config"
	"github.com/remora/remora/internal/domain/activity"
	"github.com/remora/remora/internal/domain/alert"
	"github.com/remora/remora/internal/domain/identity"
	"github.com/remora/remora/internal/domain/location"
	"github.com/remora/remora/internal/domain/notification"
	"github.com/remora/remora/internal/domain/relationship"
	"github.com/remora/remora/internal/platform/auth"
	"github.com/remora/remora/internal/platform/db"
	"github.com/remora/remora/internal/platform/metrics"
	"github.com/remora/remora/internal/platform/middleware"
	"github.com/remora/remora/internal/platform/mqtt"
	"github.com/remora/remora/internal/platform/websocket"
	"github.com/remora/remora/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "remora-server",
		Short: "Emergency alert and presence fan-out server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API, websocket and device ingest server",
		RunE: func(cmd *cobra.Command, args []string) error {
			autoMigrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(autoMigrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

// migrationsDir prefers the --dir flag and falls back to MIGRATIONS_DIR.
func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("dir") {
		dir, _ := cmd.Flags().GetString("dir")
		return dir
	}
	return cfg.MigrationsDir
}

// migrationSource returns the embedded migrations unless dir is set.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
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

			count, err := db.NewMigrator(pool, migrationSource(migrationsDir(cmd, cfg))).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of MIGRATIONS_DIR or the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			statuses, err := db.NewMigrator(pool, migrationSource(migrationsDir(cmd, cfg))).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of MIGRATIONS_DIR or the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "remora").Logger()
}

func runServer(autoMigrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if autoMigrate {
		n, err := db.NewMigrator(pool, migrationSource(cfg.MigrationsDir)).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	m := metrics.New()

	// Broadcast fabric. The relay wraps the hub when Redis is configured so
	// events reach sessions held by other nodes.
	hub := websocket.NewHub(cfg.BroadcastQueueSize, websocket.WithObserver(m), websocket.WithLogger(logger))
	go hub.Run(ctx)

	var events websocket.EventPublisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		relay := websocket.NewRelay(hub, rdb, cfg.BroadcastQueueSize, logger)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("event relay stopped")
			}
		}()
		events = relay
		logger.Info().Str("node_id", relay.NodeID()).Msg("cross-node event relay enabled")
	}

	// Identity
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL)
	identitySvc, err := identity.NewService(identity.NewActorRepoPG(pool), identity.NewDeviceTokenRepoPG(pool), tokens, cfg.DeviceCacheSize)
	if err != nil {
		return err
	}

	// Domain services
	locationSvc := location.NewService(location.NewRepoPG(pool), events, logger)
	relationshipSvc := relationship.NewService(relationship.NewRepoPG(pool), identitySvc, locationSvc, logger)
	notificationSvc := notification.NewService(notification.NewRepoPG(pool))

	alertRepo := alert.NewRepoPG(pool)
	alertSvc := alert.NewService(alertRepo, relationshipSvc, events, logger)
	dispatcher := alert.NewDispatcher(alert.DispatcherDeps{
		Identities: identitySvc,
		Caregivers: relationshipSvc,
		Locations:  locationSvc,
		Notifier:   notificationSvc,
		Alerts:     alertRepo,
		Events:     events,
		Recorder:   m,
		Logger:     logger,
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.DeviceBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":     "ok",
			"wsSessions": hub.ClientCount(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	sessionAuth := identity.SessionAuth(identitySvc)
	alertHandler := alert.NewHandler(alertSvc, dispatcher)

	// Device endpoints authenticate with the device token alone.
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
	}
	alertHandler.RegisterDeviceRoutes(e.Group("/sos", middleware.RateLimit(rl)))

	api := e.Group("/api/v1",
		auth.JWTMiddleware(auth.JWTConfig{Verifier: tokens, Skipper: auth.AuthSkipper}),
		sessionAuth,
	)
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	relationship.NewHandler(relationshipSvc).RegisterRoutes(api)
	location.NewHandler(locationSvc, relationshipSvc).RegisterRoutes(api)
	notification.NewHandler(notificationSvc).RegisterRoutes(api)
	activity.NewHandler(activity.NewService(activity.NewRepoPG(pool), relationshipSvc, logger)).RegisterRoutes(api)
	alertHandler.RegisterRoutes(api)

	wsHandler := websocket.NewWebSocketHandler(hub, actorPrincipal, linkAuthorizer{links: relationshipSvc}, cfg.SessionBufferSize, logger)
	wsHandler.RegisterRoutes(e.Group(""),
		auth.JWTMiddleware(auth.JWTConfig{Verifier: tokens, QueryParam: "token"}),
		sessionAuth,
	)

	// MQTT ingest
	if cfg.MQTTBrokerURL != "" {
		sub := mqtt.NewSubscriber(mqtt.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Topic:     cfg.MQTTSOSTopic,
			QoS:       1,
			Timeout:   cfg.RequestTimeout,
		}, mqttTrigger(dispatcher), logger)
		sub.Start(ctx)
		defer sub.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
