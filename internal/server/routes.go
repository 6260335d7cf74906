package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authGroup := s.echo.Group("/auth")
	authGroup.POST("/createParty", s.handleCreateParty, newRateLimiter(1, 5))
	authGroup.POST("/joinParty", s.handleJoinParty, newRateLimiter(2, 10))
	authGroup.GET("/parties", s.handleListParties)

	realtime := s.echo.Group("/realtime", s.requireAuth)
	realtime.POST("/:partyCode/update", s.handleUpdate, newRateLimiter(10, 30))
	realtime.GET("/:partyCode", s.handleSubscribeSSE)

	s.echo.GET("/ws/:partyCode", s.handleSubscribeWS, s.requireAuth)
}
