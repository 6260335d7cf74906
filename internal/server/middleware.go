package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Abhiram-Kasu/CrowdCue/internal/correlation"
)

const (
	contextKeyUserID   = "userID"
	contextKeyUsername = "username"
)

// correlationMiddleware tags every request with a correlation ID so all log
// lines for one request can be tied together.
func (s *Server) correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.NewID()
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set("X-Correlation-ID", id)
		return next(c)
	}
}

// requireAuth rejects requests without a valid bearer token and stores the
// caller's identity on the echo context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		userID, username, err := s.tokens.Verify(token)
		if err != nil {
			slog.DebugContext(c.Request().Context(), "Rejected bearer token", "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}

		c.Set(contextKeyUserID, userID)
		c.Set(contextKeyUsername, username)
		return next(c)
	}
}

func currentUserID(c echo.Context) uuid.UUID {
	id, _ := c.Get(contextKeyUserID).(uuid.UUID)
	return id
}
