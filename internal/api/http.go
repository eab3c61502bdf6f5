package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/miradorstack/mirador-bsm/internal/engine"
)

// RouterDeps collects what the HTTP routes read from.
type RouterDeps struct {
	Machine  *engine.StateMachine
	Reloader Reloader
	Lookup   IdentityLookup
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter wires the status, topology and reload routes.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("mirador-bsm"))

	router.GET("/healthz", Healthz(deps.Reloader))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.GET("/business-services", ListBusinessServices(deps.Machine))
	v1.GET("/business-services/:name", GetBusinessService(deps.Machine, deps.Lookup))
	v1.GET("/reduction-keys/*key", GetReductionKey(deps.Machine))
	v1.GET("/topology", GetTopology(deps.Machine, deps.Lookup))
	v1.POST("/reload", TriggerReload(deps.Reloader, deps.Logger))
	return router
}

// HTTPServer serves the gin router with the same lifecycle as the gRPC Server.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer binds address and prepares handler for serving.
func NewHTTPServer(address string, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown is invoked.
func (s *HTTPServer) Start() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
