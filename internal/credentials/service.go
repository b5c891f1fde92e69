// Package credentials stores and resolves per-user Telegram bot credentials.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tgvault/tgvault/internal/db"
)

// ErrNotConfigured indicates the user has not completed the Telegram setup flow.
var ErrNotConfigured = errors.New("telegram configuration not found")

// Credentials is the bot token / destination channel pair for one user.
type Credentials struct {
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// MaskedToken returns the bot token with everything but the trailing four
// characters replaced, for safe display in the setup UI.
func (c Credentials) MaskedToken() string {
	token := strings.TrimSpace(c.BotToken)
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// Service resolves and persists bot credentials.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates a credentials service.
func NewService(log *slog.Logger, conn db.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "credentials")),
	}
}

const getProfile = `
SELECT bot_token, channel_id
FROM profiles
WHERE user_id = $1
`

// Resolve returns the credentials for the user. It is invoked on every gateway
// request rather than cached, so a rotated bot token takes effect immediately.
func (s *Service) Resolve(ctx context.Context, userID string) (Credentials, error) {
	if s.db == nil {
		return Credentials{}, fmt.Errorf("credentials db not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	err = s.db.QueryRow(ctx, getProfile, pgID).Scan(&creds.BotToken, &creds.ChannelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, ErrNotConfigured
		}
		return Credentials{}, err
	}
	if strings.TrimSpace(creds.BotToken) == "" || strings.TrimSpace(creds.ChannelID) == "" {
		return Credentials{}, ErrNotConfigured
	}
	return creds, nil
}

const upsertProfile = `
INSERT INTO profiles (user_id, bot_token, channel_id, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id) DO UPDATE
SET bot_token = EXCLUDED.bot_token,
    channel_id = EXCLUDED.channel_id,
    updated_at = now()
`

// Save stores the credentials for the user, replacing any previous pair.
func (s *Service) Save(ctx context.Context, userID string, creds Credentials) error {
	if s.db == nil {
		return fmt.Errorf("credentials db not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(creds.BotToken)
	channel := strings.TrimSpace(creds.ChannelID)
	if token == "" {
		return fmt.Errorf("bot token is required")
	}
	if channel == "" {
		return fmt.Errorf("channel id is required")
	}
	if _, err := s.db.Exec(ctx, upsertProfile, pgID, token, channel); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	s.logger.Info("credentials updated", slog.String("user_id", userID))
	return nil
}
