package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Abhiram-Kasu/CrowdCue/internal/domain"
	"github.com/Abhiram-Kasu/CrowdCue/internal/errors"
	"github.com/Abhiram-Kasu/CrowdCue/internal/party"
)

// codeCreateAttempts bounds retries when a generated join code collides with
// an existing party.
const codeCreateAttempts = 3

type createPartyRequest struct {
	Username  string `json:"username"`
	PartyName string `json:"partyName"`
}

type joinPartyRequest struct {
	Username  string `json:"username"`
	PartyCode string `json:"partyCode"`
}

type authResponse struct {
	PartyCode string `json:"partyCode"`
	PartyName string `json:"partyName"`
	Token     string `json:"token"`
}

type partySummary struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) handleCreateParty(c echo.Context) error {
	var req createPartyRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("malformed request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.PartyName = strings.TrimSpace(req.PartyName)
	if req.Username == "" {
		return errors.ValidationError("username is required")
	}
	if req.PartyName == "" {
		return errors.ValidationError("partyName is required")
	}

	ctx := c.Request().Context()

	user, err := s.users.Create(ctx, req.Username)
	if err != nil {
		return errors.InternalError("failed to create user", err)
	}

	created, err := s.createWithFreshCode(c, req.PartyName, user.ID)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return errors.InternalError("failed to issue token", err)
	}

	slog.InfoContext(ctx, "Party created",
		"party_id", created.ID.String(), "party_code", created.Code, "owner_id", user.ID.String())

	return c.JSON(http.StatusOK, authResponse{
		PartyCode: created.Code,
		PartyName: created.Name,
		Token:     token,
	})
}

func (s *Server) handleJoinParty(c echo.Context) error {
	var req joinPartyRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("malformed request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.PartyCode = strings.TrimSpace(req.PartyCode)
	if req.Username == "" {
		return errors.ValidationError("username is required")
	}
	if req.PartyCode == "" {
		return errors.ValidationError("partyCode is required")
	}

	ctx := c.Request().Context()

	target, err := s.engine.ResolveParty(ctx, req.PartyCode)
	if err != nil {
		return err
	}

	user, err := s.users.Create(ctx, req.Username)
	if err != nil {
		return errors.InternalError("failed to create user", err)
	}
	if err := s.parties.AddMember(ctx, target.ID, user.ID); err != nil {
		return errors.InternalError("failed to add party member", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return errors.InternalError("failed to issue token", err)
	}

	slog.InfoContext(ctx, "User joined party",
		"party_id", target.ID.String(), "party_code", target.Code, "user_id", user.ID.String())

	return c.JSON(http.StatusOK, authResponse{
		PartyCode: target.Code,
		PartyName: target.Name,
		Token:     token,
	})
}

func (s *Server) handleListParties(c echo.Context) error {
	parties, err := s.parties.List(c.Request().Context())
	if err != nil {
		return errors.InternalError("failed to list parties", err)
	}

	summaries := make([]partySummary, 0, len(parties))
	for _, p := range parties {
		summaries = append(summaries, partySummary{Code: p.Code, Name: p.Name})
	}
	return c.JSON(http.StatusOK, summaries)
}

// createWithFreshCode generates a join code and creates the party, retrying
// with a new code when an insert collides with an existing one.
func (s *Server) createWithFreshCode(c echo.Context, name string, ownerID uuid.UUID) (*domain.Party, error) {
	ctx := c.Request().Context()

	var lastErr error
	for attempt := 0; attempt < codeCreateAttempts; attempt++ {
		code, err := party.GenerateCode()
		if err != nil {
			return nil, errors.InternalError("failed to generate party code", err)
		}

		created, err := s.parties.Create(ctx, code, name, ownerID)
		if err == nil {
			return created, nil
		}
		lastErr = err
		slog.WarnContext(ctx, "Party create failed, regenerating code",
			"attempt", attempt+1, "error", err)
	}
	return nil, errors.InternalError("failed to create party", lastErr)
}
