package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"consent-console/internal/adapters/accountapi"
	"consent-console/internal/adapters/alerts"
	adaptermiddleware "consent-console/internal/adapters/http/middleware"
	"consent-console/internal/adapters/i18n"
	adapterlogger "consent-console/internal/adapters/logger"
	"consent-console/internal/application"
	"consent-console/internal/infrastructure"
	"consent-console/internal/infrastructure/auth"
	"consent-console/internal/infrastructure/dynamodb"
	httpiface "consent-console/internal/interfaces/http"
	"consent-console/internal/ports"
)

func main() {
	logger := adapterlogger.New()

	cfg, err := infrastructure.LoadConfig()
	if err != nil {
		logger.Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	logger = adapterlogger.NewWithWriter(os.Stdout, adapterlogger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg infrastructure.Config, logger *adapterlogger.SlogLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.XRayEnabled {
		if err := xray.Configure(xray.Config{LogLevel: "error", ServiceVersion: "consent-console"}); err != nil {
			return err
		}
	}

	bundle, err := i18n.NewBundle(cfg.DefaultLocale, cfg.DisplayTZ)
	if err != nil {
		return err
	}
	localize := func(locale string) ports.Localizer { return bundle.Localizer(locale) }

	var apiOpts []accountapi.Option
	apiOpts = append(apiOpts, accountapi.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	if cfg.XRayEnabled {
		apiOpts = append(apiOpts, accountapi.WithTracing())
	}
	api := accountapi.NewClient(apiOpts...)

	shared := alerts.Fanout{alerts.LogSink{Logger: logger.With("component", "alerts")}}
	var history ports.AlertHistory
	if cfg.HistoryEnabled() {
		db, err := dynamodb.NewAPI(ctx, cfg.Region)
		if err != nil {
			return err
		}
		store := dynamodb.NewAlertStore(db, cfg.AlertsTable, cfg.AlertTTL)
		shared = append(shared, alerts.Persist{Saver: store, Logger: logger})
		history = store
	}

	sessions := application.NewSessions(ctx, application.SessionsConfig{
		API:      api,
		Localize: localize,
		NewQueue: func() ports.AlertQueue { return alerts.NewQueue(cfg.AlertQueueCap) },
		Shared:   shared,
		Logger:   logger.With("component", "view"),
	})
	defer sessions.CloseAll()

	var oidc echo.MiddlewareFunc
	if cfg.AuthMode == adaptermiddleware.ModeOIDC {
		verifier, err := auth.NewOIDCMiddleware(cfg.AccountBaseURL, cfg.Realm)
		if err != nil {
			return err
		}
		oidc = verifier.Handler
	}
	authMiddleware, err := adaptermiddleware.AuthMiddleware(cfg.AuthMode, oidc, adaptermiddleware.StaticIdentity{
		UserID:      cfg.StaticUserID,
		AccessToken: cfg.StaticToken,
	})
	if err != nil {
		return err
	}
	mw := httpiface.Middleware{
		Auth:          authMiddleware,
		RequestLogger: adaptermiddleware.RequestLogger(logger),
		Timeout:       cfg.RequestTimeout + 5*time.Second,
	}
	if cfg.XRayEnabled {
		mw.XRay = adaptermiddleware.XRayMiddleware(cfg.XRaySegment)
	}

	handler := httpiface.NewApplicationsHandler(sessions, localize, httpiface.Account{
		ServerBaseURL: cfg.AccountBaseURL,
		Realm:         cfg.Realm,
	}, history, logger)
	e := httpiface.NewRouter(handler, mw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "starting http server", "port", cfg.Port, "auth_mode", string(cfg.AuthMode), "realm", cfg.Realm)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SessionIdleTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := sessions.Sweep(cfg.SessionIdleTimeout); n > 0 {
					logger.Debug(gctx, "closed idle sessions", "count", n)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error(context.Background(), "graceful server shutdown failed", "error", err)
			return e.Close()
		}
		return nil
	})
	return g.Wait()
}
