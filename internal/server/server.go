package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Abhiram-Kasu/CrowdCue/internal/auth"
	"github.com/Abhiram-Kasu/CrowdCue/internal/config"
	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	apperrors "github.com/Abhiram-Kasu/CrowdCue/internal/errors"
	"github.com/Abhiram-Kasu/CrowdCue/internal/party"
	"github.com/Abhiram-Kasu/CrowdCue/internal/stream"
)

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	engine    *party.Engine
	eventLog  domain.EventLog
	users     domain.UserRepository
	parties   domain.PartyRepository
	tokens    *auth.TokenService
	registry  *stream.Registry
	clock     clockwork.Clock
	pool      *pgxpool.Pool
	redis     *goredis.Client
	startTime time.Time
}

func NewServer(
	cfg *config.Config,
	engine *party.Engine,
	eventLog domain.EventLog,
	users domain.UserRepository,
	parties domain.PartyRepository,
	tokens *auth.TokenService,
	registry *stream.Registry,
	pool *pgxpool.Pool,
	redis *goredis.Client,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:      e,
		config:    cfg,
		engine:    engine,
		eventLog:  eventLog,
		users:     users,
		parties:   parties,
		tokens:    tokens,
		registry:  registry,
		clock:     clock,
		pool:      pool,
		redis:     redis,
		startTime: clock.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(srv.correlationMiddleware)
	e.Use(apperrors.Middleware())

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
