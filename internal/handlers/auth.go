package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tgvault/tgvault/internal/accounts"
	"github.com/tgvault/tgvault/internal/auth"
)

// AuthHandler issues and refreshes JWTs for account holders.
type AuthHandler struct {
	accounts  *accounts.Service
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      accounts.User `json:"user"`
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(log *slog.Logger, accountService *accounts.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		accounts:  accountService,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/api/auth/login", h.Login)
	e.POST("/api/auth/refresh", h.Refresh)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}
	user, err := h.accounts.Authenticate(c.Request().Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		}
		h.logger.Error("authenticate failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication unavailable")
	}
	token, expiresAt, err := auth.GenerateToken(user.ID, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("token mint failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "token mint failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	token, expiresAt, err := auth.RefreshTokenFromContext(c, h.jwtSecret, h.expiresIn)
	if err != nil {
		return err
	}
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	user, err := h.accounts.Get(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "user no longer exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}
