package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/cortex/ai/metrics"
	"github.com/hrygo/cortex/ai/provider"
	"github.com/hrygo/cortex/internal/profile"
	apiv1 "github.com/hrygo/cortex/server/router/api/v1"
	"github.com/hrygo/cortex/server/service/assistant"
	"github.com/hrygo/cortex/server/service/focus"
	"github.com/hrygo/cortex/server/service/orchestrator"
	"github.com/hrygo/cortex/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Metrics *metrics.PrometheusExporter

	echoServer *echo.Echo
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	metricsConfig := metrics.DefaultConfig()
	metricsConfig.RuntimeCollectors = true
	s := &Server{
		Profile: profile,
		Store:   store,
		Metrics: metrics.NewPrometheusExporter(metricsConfig),
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(s.requestMiddleware())
	if profile.RequestTimeout > 0 {
		echoServer.Use(middleware.ContextTimeout(time.Duration(profile.RequestTimeout) * time.Second))
	}
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		if err := store.GetDriver().GetDB().PingContext(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.String(http.StatusOK, "Service ready.")
	})
	echoServer.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))

	// The provider client is built on first use; instances without an API
	// key still serve local assistants.
	client := provider.FromProfile(profile, s.Metrics)
	if !profile.IsProviderEnabled() {
		slog.Info("AI provider disabled, remote assistants are unavailable")
	}
	engine := focus.NewEngine(store, profile, s.Metrics)
	manager := assistant.NewManager(store, engine, client, profile, s.Metrics)
	orch := orchestrator.New(store, engine, manager)
	apiv1.NewAPIV1Service(profile, orch).RegisterRoutes(echoServer)

	return s, nil
}

// requestMiddleware logs every request and records its latency.
func (s *Server) requestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			latency := time.Since(start)
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.Metrics.RecordHTTPRequest(c.Request().Method, route, strconv.Itoa(status), latency)
			slog.Debug("http request",
				"method", c.Request().Method,
				"route", route,
				"status", status,
				"duration", latency,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}

// Handler exposes the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start listens on the unix socket or the address and port of the profile.
// It returns once the listener is open; serving continues in the background.
func (s *Server) Start(ctx context.Context) error {
	var network, address string
	if len(s.Profile.UNIXSock) == 0 {
		network, address = "tcp", fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	} else {
		network, address = "unix", s.Profile.UNIXSock
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, network, address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("server stopped properly")
}
