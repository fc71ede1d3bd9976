package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mint-desk/pkg/api"
	"mint-desk/pkg/dashboard"
	"mint-desk/pkg/rules"
	"mint-desk/pkg/services"
	"mint-desk/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storefront API and the operator dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	shutdownTracing, err := telemetry.Setup(ctx, "mint-desk", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("Error flushing traces", zap.Error(err))
		}
	}()

	roster, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return err
	}

	collection, err := openCollection(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer collection.Close()

	// Initialize services
	submissionService := services.NewMintSubmissionService(collection, cfg, logger, time.Now)
	hub := dashboard.NewHub(collection, cfg.CollectionPath, roster, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	if cfg.Verbose {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	go func() {
		select {
		case <-hub.Ready():
			logger.Info("Dashboard ready", zap.String("next_token_id", hub.Current().NextTokenID))
		case <-ctx.Done():
		}
	}()

	// only some backends can report a lost connection
	storeHealth, _ := collection.(api.ReadinessChecker)
	handlers := api.NewHandlers(submissionService, hub, storeHealth, cfg, logger)
	router := api.NewRouter(handlers, roster, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// dashboard streams end when the server context does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreDriver),
			zap.Int("roster", len(roster.Roster)))
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case err := <-hubDone:
		hubDone <- err
		runErr = err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Error shutting down server", zap.Error(err))
	}
	<-hubDone
	return runErr
}
