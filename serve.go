package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dashboard/auth"
	"dashboard/backend"
	"dashboard/config"
	"dashboard/controller"
	"dashboard/database"
	"dashboard/locations"
	"dashboard/logger"
	"dashboard/metrics"
	"dashboard/notify"
	"dashboard/poller"
	"dashboard/push"
	"dashboard/route"
	"dashboard/state"
	"dashboard/tracer"
	"dashboard/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	stateFlushInterval = 15 * time.Second
	purgeInterval      = time.Hour
)

func serve(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	collector := metrics.NewCollector("dashboard")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	key, err := cfg.Session.SealKeyBytes()
	if err != nil {
		return err
	}
	sealer, err := utils.NewSealer(key)
	if err != nil {
		return err
	}
	sessions := database.NewSessionRepository(db, sealer)
	history := database.NewHistory(db)
	states := state.NewRegistry(sessions, log, state.WithNotificationCap(cfg.Poller.NotificationCap))

	hub := notify.NewHub()
	defer hub.Close()
	sinks := []notify.Sink{hub, notify.NewLogSink(log), history}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegramSink(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID)
		if err != nil {
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		ks := notify.NewKafkaSink(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
		defer ks.Close()
		sinks = append(sinks, ks)
	}
	alerts := notify.NewFanout(log, collector, sinks...)

	backendOpts := backend.OptionsFrom(cfg.Backend)
	backendOpts.Observer = collector
	backendOpts.Logger = log
	client := backend.New(backendOpts)

	subscriber := func(channel string) func(token string) *push.Subscriber {
		return func(token string) *push.Subscriber {
			if cfg.Backend.PushURL == "" {
				return nil
			}
			return push.NewSubscriber(push.WSDialer{
				URL:     cfg.Backend.PushURL,
				Token:   token,
				Timeout: cfg.Backend.DialTimeout,
			}, push.Options{
				Attempts:    cfg.Backend.ReconnectAttempts,
				Delay:       cfg.Backend.ReconnectDelay,
				Logger:      log.Named("push").With(zap.String("channel", channel)),
				OnReconnect: func() { collector.Reconnected(channel) },
			})
		}
	}

	pollers := poller.NewManager(ctx, poller.Options{
		MinFetchInterval: cfg.Poller.MinFetchInterval,
		PollInterval:     cfg.Poller.PollInterval,
		AlertDuration:    cfg.Poller.AlertDuration,
		Logger:           log,
		Metrics:          collector,
		Alerts:           alerts,
	}, subscriber("orders"))
	defer pollers.StopAll()

	var trackers *locations.Registry
	if cfg.Locations.Enabled && cfg.Backend.PushURL != "" {
		trackers = locations.NewRegistry(ctx, locations.Options{
			RefreshInterval: cfg.Locations.RefreshInterval,
			Logger:          log,
			Metrics:         collector,
		}, subscriber("locations"))
		defer trackers.StopAll()
	}

	tokens := utils.NewTokenManager(cfg.Session)
	svc := auth.NewService(auth.Deps{
		Client:   client,
		Tokens:   tokens,
		Sessions: sessions,
		States:   states,
		Pollers:  pollers,
		Trackers: trackers,
		Logger:   log,
	})

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(log), collector.Middleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", logger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	route.DashboardRoutes(router, route.Deps{
		Auth: auth.NewHandler(svc, tokens, cfg.Session, cfg.App.Environment == "production"),
		Controller: controller.New(controller.Deps{
			Auth:     svc,
			Client:   client,
			Pollers:  pollers,
			Trackers: trackers,
			Hub:      hub,
			History:  history,
			Logger:   log,
		}),
		Tokens:       tokens,
		CookieName:   cfg.Session.CookieName,
		LoginLimiter: utils.NewIPLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		Metrics:      collector.Handler(),
	})
	serveFrontend(router, cfg.Frontend.BuildPath, log)

	srv := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// Zero keeps the alert stream open.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		every(gctx, stateFlushInterval, func() {
			if err := states.Flush(gctx); err != nil {
				log.Warn("flushing session state failed", zap.Error(err))
			}
		})
		return nil
	})
	g.Go(func() error {
		every(gctx, purgeInterval, func() {
			n, err := sessions.PurgeExpired(gctx)
			if err != nil {
				log.Warn("purging sessions failed", zap.Error(err))
				return
			}
			if n > 0 {
				log.Info("expired sessions purged", zap.Int64("count", n))
			}
		})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		// SSE streams only end when the hub closes.
		hub.Close()
		err := srv.Shutdown(shutdownCtx)
		if ferr := states.Flush(shutdownCtx); ferr != nil {
			log.Warn("final state flush failed", zap.Error(ferr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

// serveFrontend serves the built single page app and falls back to its
// index for client side routes.
func serveFrontend(router *gin.Engine, buildPath string, log *zap.Logger) {
	if _, err := os.Stat(buildPath); err != nil {
		log.Warn("frontend build directory not found, static file serving disabled", zap.String("path", buildPath))
		return
	}
	router.Static("/static", filepath.Join(buildPath, "static"))
	router.NoRoute(func(c *gin.Context) {
		c.File(filepath.Join(buildPath, "index.html"))
	})
}
