package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tgvault/tgvault/internal/auth"
	"github.com/tgvault/tgvault/internal/credentials"
)

// SetupHandler manages the per-account Telegram channel configuration.
type SetupHandler struct {
	credentials *credentials.Service
	logger      *slog.Logger
}

type setupPayload struct {
	BotToken  string `json:"bot_token" validate:"required"`
	ChannelID string `json:"channel_id" validate:"required"`
}

type setupResponse struct {
	Configured bool   `json:"configured"`
	BotToken   string `json:"bot_token,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
}

// NewSetupHandler creates a SetupHandler.
func NewSetupHandler(log *slog.Logger, credentialService *credentials.Service) *SetupHandler {
	return &SetupHandler{
		credentials: credentialService,
		logger:      log.With(slog.String("handler", "setup")),
	}
}

func (h *SetupHandler) Register(e *echo.Echo) {
	e.GET("/api/telegram/config", h.GetConfig)
	e.PUT("/api/telegram/config", h.PutConfig)
}

// GetConfig reports whether the account has a usable channel configuration.
// The bot token is masked so the UI can confirm which token is stored
// without ever echoing the secret back.
func (h *SetupHandler) GetConfig(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	creds, err := h.credentials.Resolve(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, credentials.ErrNotConfigured) {
			return c.JSON(http.StatusOK, setupResponse{Configured: false})
		}
		h.logger.Error("resolve credentials failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "credential lookup failed")
	}
	return c.JSON(http.StatusOK, setupResponse{
		Configured: true,
		BotToken:   creds.MaskedToken(),
		ChannelID:  creds.ChannelID,
	})
}

func (h *SetupHandler) PutConfig(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var payload setupPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}
	creds := credentials.Credentials{BotToken: payload.BotToken, ChannelID: payload.ChannelID}
	if err := h.credentials.Save(c.Request().Context(), userID, creds); err != nil {
		h.logger.Error("save credentials failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "credential save failed")
	}
	return c.JSON(http.StatusOK, setupResponse{
		Configured: true,
		BotToken:   creds.MaskedToken(),
		ChannelID:  creds.ChannelID,
	})
}
