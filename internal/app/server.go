package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/merge"
	"github.com/Ramsey-B/fern/pkg/routes/plans"
	"github.com/Ramsey-B/fern/pkg/startup"
)

const (
	DepPromoter = "promoter"
	DepServer   = "server"
)

// NewRouter builds the HTTP API over a started App.
func (a *App) NewRouter(auth echo.MiddlewareFunc) (*echo.Echo, *health.Checker) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.Logger)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: a.Config.AllowOrigins,
		AllowMethods: a.Config.AllowMethods,
	}))
	e.Use(otelecho.Middleware(a.Config.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Container(a.Container.GetContainerID()))
	e.Use(middleware.Logger(a.Logger))

	checks := map[string]health.Pinger{
		"database": health.PingFunc(a.DB.PingContext),
	}
	if a.Redis != nil {
		checks["redis"] = health.PingFunc(a.Redis.Ping)
	}
	if a.Graph != nil {
		checks["graph"] = health.PingFunc(a.Graph.VerifyConnectivity)
	}
	checker := health.NewChecker(checks, a.Config.Version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	if auth != nil {
		api.Use(auth)
	}
	merge.Register(api.Group("/merges"))
	plans.Register(api.Group("/plans"))

	return e, checker
}

// Serve registers the delayed job promoter and the HTTP server, then starts
// everything. It blocks until ctx is done and shuts down in reverse order.
func (a *App) Serve(ctx context.Context) error {
	var (
		promoter *queue.Promoter
		server   *http.Server
		checker  *health.Checker
	)

	a.AddDependency(&startup.Dependency{
		Name:     DepPromoter,
		Requires: []string{DepQueue},
		OnStart: func(ctx context.Context) error {
			if a.Redis == nil {
				return nil
			}
			promoter = queue.NewPromoter(a.Redis, queue.PromoterConfig{
				Stream:       a.Config.JobStream,
				PollInterval: a.Config.DelayedJobPollInterval,
			}, a.Logger)
			return promoter.Start(context.WithoutCancel(ctx))
		},
		OnStop: func(ctx context.Context) error {
			if promoter == nil {
				return nil
			}
			return promoter.Stop(ctx)
		},
	})

	a.AddDependency(&startup.Dependency{
		Name:     DepServer,
		Requires: []string{DepEngine},
		OnStart: func(ctx context.Context) error {
			var auth echo.MiddlewareFunc
			if a.Config.AuthEnabled {
				verifier, err := middleware.NewVerifier(ctx, a.Config.AuthIssuerURL, a.Config.AuthClientID)
				if err != nil {
					return err
				}
				auth = middleware.Authentication(a.Logger, verifier, a.Config.AuthMergeRole)
			}

			var e *echo.Echo
			e, checker = a.NewRouter(auth)
			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", a.Config.Port),
				Handler:           e,
				ReadTimeout:       time.Duration(a.Config.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(a.Config.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(a.Config.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(a.Config.ReadHeaderTimeoutSeconds) * time.Second,
				MaxHeaderBytes:    a.Config.MaxHeaderBytes,
			}

			go func() {
				a.Logger.WithField("addr", server.Addr).Info("HTTP server listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.Logger.WithError(err).Error("HTTP server stopped unexpectedly")
				}
			}()
			checker.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if server == nil {
				return nil
			}
			checker.SetReady(false)
			return server.Shutdown(ctx)
		},
	})

	if err := a.Start(ctx); err != nil {
		return err
	}
	if err := a.CheckCoverage(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}

	<-ctx.Done()
	a.Logger.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	return a.Stop(stopCtx)
}
