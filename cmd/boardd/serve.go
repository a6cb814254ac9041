package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldboard/config"
	"fieldboard/internal/api"
	"fieldboard/internal/board"
	"fieldboard/internal/calsync"
	"fieldboard/internal/db"
	"fieldboard/internal/directory"
	"fieldboard/internal/notification"
	"fieldboard/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the board HTTP server and calendar sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return serve(cfg, logger)
	},
}

func serve(cfg *config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Init(&cfg.Database, logger.Named("db"))
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	appStore := store.NewGormStore(gormDB)

	var webpushOptions *webpush.Options
	var notifier board.Notifier
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Warn("VAPID keys are not configured; failure notices are only logged")
		notifier = board.NotifierFunc(func(f board.Failure) {
			logger.Warnw("change not saved", "item", f.ItemID, "operation", f.Operation, "message", f.Message)
		})
	} else {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, 64, gormDB, webpushOptions, logger.Named("push"))
		pool.Start(ctx)
		defer func() {
			stop()
			pool.Wait()
		}()
		notifier = pool
	}

	opts := board.Options{
		Grid: board.SnapGrid{
			StartHour:   cfg.Board.StartHour,
			EndHour:     cfg.Board.EndHour,
			SlotMinutes: cfg.Board.SlotMinutes,
		},
		MinimumVisibleMinutes: cfg.Board.MinimumVisibleMinutes,
		HoverFrame:            cfg.Board.HoverFrame(),
		Location:              cfg.Board.Location,
	}
	if cfg.Board.RejectOverlap {
		opts.Overlap = board.NoDoubleBooking
	}
	engine := board.NewEngine(opts, appStore, notifier, logger.Named("board"))
	go engine.Hover.Run(ctx)

	customers := store.NewCustomerCache(appStore, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
	loader := directory.NewLoader(logger.Named("directory"), appStore, engine.Store, customers, cfg.Board.DefaultDuration())
	if err := loader.Load(ctx, engine.ViewParams(time.Now(), board.ViewDay)); err != nil {
		logger.Warnw("initial board load failed; retrying on first request", "error", err)
	}

	syncSvc := calsync.NewService(cfg.CalendarSync, appStore, logger.Named("calsync"), func(ctx context.Context) {
		if err := loader.Reload(ctx); err != nil {
			logger.Warnw("board reload after calendar sync failed", "error", err)
		}
	})
	go syncSvc.Run(ctx)

	if cfg.Log.JSON {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(appStore, engine, loader, customers, webpushOptions, logger.Named("api"))
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received, stopping services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	logger.Info("server gracefully stopped")
	return nil
}
