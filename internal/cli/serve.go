package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"telemetry-broker/internal/config"
	"telemetry-broker/internal/credential"
	"telemetry-broker/internal/hub"
	"telemetry-broker/internal/logging"
	"telemetry-broker/internal/middleware"
	"telemetry-broker/internal/server"
	"telemetry-broker/internal/store"
)

func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion endpoint and the credential refresher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
				cfg.DBPath = dbPath
			}
			return serve(cmd, cfg)
		},
	}
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	if !cfg.Enabled {
		logger.Info("Application is disabled, exiting.")
		return nil
	}

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	logger.Info("store ready", zap.String("path", cfg.DBPath))

	creds := credential.NewManager(
		credential.NewHubClient(cfg.HubEndpoint, cfg.ClientID, cfg.Secret, cfg.TokenTimeout),
		logger.Named("credential"),
	)
	if err := creds.Start(ctx); err != nil {
		return fmt.Errorf("failed to obtain hub token: %w", err)
	}

	feedLimiter := middleware.NewRateLimiter(cfg.FeedRateLimit, time.Minute)
	defer feedLimiter.Stop()

	router := server.NewRouter(server.Deps{
		Store:           st,
		Hub:             hub.New(),
		Logger:          logger,
		FeedLimiter:     feedLimiter,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	})

	err = server.Run(ctx, cfg, router, logger)
	stop()
	creds.Wait()
	logger.Info("broker stopped")
	return err
}
