package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/GateLink/internal/app/service"
	inthttp "github.com/sifan077/GateLink/internal/http/handler"
	"github.com/sifan077/GateLink/internal/http/middleware"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// Dependencies bundles what the HTTP server needs to serve links and the management API.
type Dependencies struct {
	Logger       *zap.Logger
	Redis        redis.Cmdable
	Resolver     inthttp.Resolver
	LinkService  service.LinkService
	Destinations inthttp.Destinations
	// Checks are run by /ready, keyed by dependency name.
	Checks         map[string]inthttp.Check
	JWTSecret      []byte
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "gatelink",
		DisableStartupMessage: true,
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           idleTimeout,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
	)

	inthttp.NewHealthHandler(log, s.deps.Checks).Register(s.app)

	var guards []fiber.Handler
	if s.deps.Redis != nil {
		guards = append(guards, middleware.RateLimit(s.deps.Redis, s.deps.RateLimit, log))
	}
	inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:       log,
		Resolver:     s.deps.Resolver,
		Destinations: s.deps.Destinations,
	}).Register(s.app, guards...)

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      log,
		LinkService: s.deps.LinkService,
	}).Register(s.app,
		middleware.CORS(s.deps.AllowedOrigins),
		middleware.Auth(s.deps.JWTSecret),
	)
}
