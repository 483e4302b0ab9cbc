package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"bikes-api/client"
	"bikes-api/database"
	"bikes-api/jobs"
	"bikes-api/repositories"
	"bikes-api/routes"
	"bikes-api/services"
	"bikes-api/telemetry"
)

const serviceName = "bikes-api"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("database migrated")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a demo user and a few bikes into an empty database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		return database.SeedData(db, log)
	},
}

var bikesURL string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the public bike listing and print it as an HTML table",
	RunE: func(cmd *cobra.Command, args []string) error {
		page := client.NewBikesPage(client.New(bikesURL), log)
		<-page.Mount(cmd.Context())
		return page.Render(cmd.OutOrStdout())
	},
}

func init() {
	listCmd.Flags().StringVar(&bikesURL, "url", "http://localhost:8080", "base URL of a running server")
}

func openDB() (*gorm.DB, error) {
	db, err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, log)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return db, nil
}

func serve(ctx context.Context) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, shutdownTracing, err := telemetry.InitTracer(ctx, serviceName, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	db, err := openDB()
	if err != nil {
		return err
	}
	if cfg.OTLPEndpoint != "" {
		if err := database.EnableTracing(db); err != nil {
			return err
		}
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	var sessions services.SessionStore
	if cfg.RedisAddr != "" {
		rdb, err := services.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sessions = services.NewRedisSessionStore(rdb)
		log.WithField("addr", cfg.RedisAddr).Info("sessions stored in redis")
	} else {
		repo := repositories.NewSessionRepository(db)
		sessions = repo

		cleanup := jobs.NewSessionCleanupJob(repo, cfg.SessionCleanupInterval, log)
		cleanup.Start()
		defer cleanup.Stop()
	}

	handler, err := routes.NewRouter(routes.Dependencies{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Sessions: sessions,
		Mailer:   services.NewEmailService(cfg, log),
		Tracer:   tp,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting bikes server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
