package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fossbin/propease/internal/events"
	"github.com/fossbin/propease/internal/handlers"
	"github.com/fossbin/propease/internal/logger"
	"github.com/fossbin/propease/internal/middleware"
	"github.com/fossbin/propease/internal/scheduler"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	limiterSweep      = time.Minute
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, event dispatcher and expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	log.Info("Starting PropEase API", logger.Fields{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"store":       cfg.Store.Driver,
	})

	hub := events.NewHub(log, cfg.CORS.Origins)
	sinks := []events.Sink{events.NewLogSink(log), hub}
	if cfg.Redis.URL != "" {
		redisSink, err := events.NewRedisSink(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
		log.Info("Publishing events to redis", logger.Fields{"channel": cfg.Redis.Channel})
	}
	dispatcher := events.NewDispatcher(a.dispatcherOptions(), log, sinks...)
	svc := a.newServices(dispatcher)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.RouterDeps{
		Services:    svc,
		Store:       a.store,
		Stream:      hub,
		Limiter:     limiter,
		Log:         log,
		Env:         cfg.Server.Env,
		StoreDriver: cfg.Store.Driver,
		CORSOrigins: cfg.CORS.Origins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var sched *scheduler.Scheduler
	if cfg.Sweep.Enabled {
		if sched, err = scheduler.New(cfg.Sweep.Schedule, svc.Ledger, log); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx, limiterSweep) })
	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	g.Go(func() error {
		log.Info("Server listening", logger.Fields{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", err, logger.Fields{
				"timeout": shutdownTimeout.String(),
			})
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited", nil)
	return nil
}

// sweepOnce runs a single expiry sweep and drains the events it produced.
func sweepOnce(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	dispatcher := events.NewDispatcher(a.dispatcherOptions(), a.log, events.NewLogSink(a.log))
	svc := a.newServices(dispatcher)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(runCtx) }()

	sched, err := scheduler.New(a.cfg.Sweep.Schedule, svc.Ledger, a.log)
	if err != nil {
		cancel()
		<-done
		return err
	}
	report, err := sched.RunOnce(ctx)
	cancel()
	if derr := <-done; derr != nil {
		a.log.Warn("Event dispatcher stopped with error", logger.Fields{"error": derr.Error()})
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "expired=%d promoted=%d overdue=%d\n", report.Expired, report.Promoted, report.Overdue)
	return nil
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire finished tenancies and announce overdue obligations once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sweepOnce(cmd.Context())
		},
	}
}
