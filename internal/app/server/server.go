package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/app/service"
	inthttp "github.com/clipvault/clipvault/internal/http/handler"
	"github.com/clipvault/clipvault/internal/http/middleware"
)

// Dependencies bundles infrastructure dependencies required by the HTTP server.
type Dependencies struct {
	Logger    *zap.Logger
	Postgres  *pgxpool.Pool
	Redis     *redis.Client
	NATS      *nats.Conn
	JetStream nats.JetStreamContext
	Videos    service.VideoService
	APITokens []string
	BodyLimit int
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	cfg := fiber.Config{ErrorHandler: errorHandler}
	if deps.BodyLimit > 0 {
		cfg.BodyLimit = deps.BodyLimit
	}
	app := fiber.New(cfg)

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler keeps framework-level failures inside the JSON error contract.
// Fasthttp rejects an over-limit body before routing, so without this a large
// upload would surface as a plain-text 413 instead of the 400 the API promises.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusRequestEntityTooLarge {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "payload too large: request body exceeds the configured maximum",
			})
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())

	downloadHandler := inthttp.NewDownloadHandler(inthttp.DownloadDeps{
		Logger:   s.deps.Logger,
		Videos:   s.deps.Videos,
		Postgres: s.deps.Postgres,
	})
	if s.deps.Redis != nil {
		rateLimit := middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger)
		downloadHandler.Register(s.app, rateLimit)
	} else {
		downloadHandler.Register(s.app)
	}

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger: s.deps.Logger,
		Videos: s.deps.Videos,
	})
	apiHandler.Register(s.app, middleware.APITokenAuth(s.deps.APITokens))
}
