package server

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/errors"
	"github.com/Abhiram-Kasu/CrowdCue/internal/stream"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens are the credential; origin checks add nothing for non-browser
	// clients and break the native apps.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleUpdate accepts one mutation event, authorizes it against the
// caller's role, and publishes it to the party's log.
func (s *Server) handleUpdate(c echo.Context) error {
	var env domain.Envelope
	if err := c.Bind(&env); err != nil {
		return errors.ValidationError("malformed request body")
	}

	ev, err := domain.DecodeEvent(env.Type, env.Payload)
	if err != nil {
		return errors.ValidationError(err.Error())
	}

	code := c.Param("partyCode")
	if err := s.engine.Submit(c.Request().Context(), code, currentUserID(c), ev); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubscribeSSE streams party state over Server-Sent Events: the
// current snapshot first, then every event in log order.
func (s *Server) handleSubscribeSSE(c echo.Context) error {
	target, err := s.engine.ResolveParty(c.Request().Context(), c.Param("partyCode"))
	if err != nil {
		return err
	}

	writer, err := stream.NewSSEWriter(c.Response())
	if err != nil {
		return errors.InternalError("streaming unsupported", err)
	}

	sub := s.newSubscriber(c, target, writer)
	if err := s.registry.Register(sub); err != nil {
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	}

	if err := sub.Run(c.Request().Context()); err != nil {
		// A failure before the first frame still gets a real error response;
		// after that the headers are committed and logging is all that's left.
		if !writer.Started() {
			return err
		}
		slog.WarnContext(c.Request().Context(), "Subscriber session ended with error",
			"party_id", target.ID.String(), "user_id", sub.UserID().String(), "error", err)
	}
	return nil
}

// handleSubscribeWS streams the same snapshot-then-events sequence over a
// WebSocket, with each frame tagged by event name.
func (s *Server) handleSubscribeWS(c echo.Context) error {
	target, err := s.engine.ResolveParty(c.Request().Context(), c.Param("partyCode"))
	if err != nil {
		return err
	}

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	writer := stream.NewWSWriter(conn, s.clock)
	sub := s.newSubscriber(c, target, writer)
	if err := s.registry.Register(sub); err != nil {
		sub.Close()
		return nil
	}

	// Drain the read side so close frames and pongs are processed; a read
	// error means the client went away.
	go func() {
		defer sub.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := sub.Run(c.Request().Context()); err != nil {
		slog.WarnContext(c.Request().Context(), "Subscriber session ended with error",
			"party_id", target.ID.String(), "user_id", sub.UserID().String(), "error", err)
	}
	return nil
}

func (s *Server) newSubscriber(c echo.Context, target *domain.Party, writer stream.MessageWriter) *stream.Subscriber {
	return stream.NewSubscriber(target, currentUserID(c), writer, s.eventLog, s.engine, s.clock, stream.Config{
		PollInterval: s.config.SubscriberPollInterval,
		MaxLifetime:  s.config.SubscriberMaxLifetime,
	})
}
