package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"

	"github.com/tgvault/tgvault/internal/db"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service provides user lookup and password verification.
type Service struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewService creates an accounts service.
func NewService(log *slog.Logger, conn db.DBTX) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     conn,
		logger: log.With(slog.String("service", "accounts")),
	}
}

const getUserByID = `
SELECT id, username, email, created_at
FROM users
WHERE id = $1
`

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	if s.db == nil {
		return User{}, fmt.Errorf("accounts db not configured")
	}
	pgID, err := db.ParseUUID(userID)
	if err != nil {
		return User{}, err
	}
	var (
		id        pgtype.UUID
		username  string
		email     string
		createdAt pgtype.Timestamptz
	)
	err = s.db.QueryRow(ctx, getUserByID, pgID).Scan(&id, &username, &email, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return User{
		ID:        db.UUIDString(id),
		Username:  username,
		Email:     email,
		CreatedAt: createdAt.Time,
	}, nil
}

const getUserByUsername = `
SELECT id, username, email, password_hash, created_at
FROM users
WHERE username = $1
`

// Authenticate verifies a username/password pair and returns the matching user.
// Unknown users and wrong passwords both report ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	if s.db == nil {
		return User{}, fmt.Errorf("accounts db not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	var (
		id           pgtype.UUID
		storedName   string
		email        string
		passwordHash string
		createdAt    pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, getUserByUsername, username).Scan(&id, &storedName, &email, &passwordHash, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{
		ID:        db.UUIDString(id),
		Username:  storedName,
		Email:     email,
		CreatedAt: createdAt.Time,
	}, nil
}

const insertAdminUser = `
INSERT INTO users (username, email, password_hash)
VALUES ($1, $2, $3)
ON CONFLICT (username) DO NOTHING
`

// EnsureAdmin creates the configured admin user when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if s.db == nil {
		return fmt.Errorf("accounts db not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("admin username is required")
	}
	if password == "" {
		return fmt.Errorf("admin password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	tag, err := s.db.Exec(ctx, insertAdminUser, username, strings.TrimSpace(email), string(hash))
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Info("admin user created", slog.String("username", username))
	}
	return nil
}
