package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tgvault/tgvault/internal/credentials"
	"github.com/tgvault/tgvault/internal/telegram"
)

// Transport is the remote blob store surface the gateway drives.
type Transport interface {
	Store(ctx context.Context, creds credentials.Credentials, name string, payload []byte) (telegram.StoreResult, error)
	Locate(ctx context.Context, creds credentials.Credentials, fileID string) (telegram.Payload, error)
	Retract(ctx context.Context, creds credentials.Credentials, messageID int) error
}

// MetadataStore is the persistence surface the gateway commits to.
type MetadataStore interface {
	Create(ctx context.Context, params CreateParams) (File, error)
	DeleteByMessage(ctx context.Context, userID string, messageID int64) (int64, error)
	ListByOwner(ctx context.Context, userID string) ([]File, error)
}

// CredentialSource resolves a user's bot credentials.
type CredentialSource interface {
	Resolve(ctx context.Context, userID string) (credentials.Credentials, error)
}

// Service orchestrates gateway operations across the transport and the
// metadata store. Every request is a single stateless pass: credentials are
// re-resolved each time and no state is retained between calls.
type Service struct {
	transport Transport
	store     MetadataStore
	resolver  CredentialSource
	logger    *slog.Logger
}

// NewService creates the gateway service.
func NewService(log *slog.Logger, transport Transport, store MetadataStore, resolver CredentialSource) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		transport: transport,
		store:     store,
		resolver:  resolver,
		logger:    log.With(slog.String("service", "files")),
	}
}

// Upload decodes the payload, stores it in the user's channel, then commits
// the metadata record, in that strict order. A record is never written for
// bytes the transport did not accept. The reverse split — transport success
// followed by a metadata failure — leaves an orphaned channel message behind;
// no compensation is attempted (see the reconcile seam).
func (s *Service) Upload(ctx context.Context, userID, name, fileData string) (File, error) {
	creds, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return File{}, err
	}
	payload, err := DecodePayload(fileData)
	if err != nil {
		return File{}, err
	}
	if int64(len(payload)) > telegram.MaxFileBytes {
		return File{}, fmt.Errorf("%w: %d bytes (max %d)", telegram.ErrPayloadTooLarge, len(payload), telegram.MaxFileBytes)
	}
	stored, err := s.transport.Store(ctx, creds, name, payload)
	if err != nil {
		return File{}, err
	}
	record, err := s.store.Create(ctx, CreateParams{
		UserID:            userID,
		Name:              name,
		Size:              int64(len(payload)),
		TelegramFileID:    stored.FileID,
		TelegramMessageID: int64(stored.MessageID),
	})
	if err != nil {
		s.logger.Error("metadata commit failed after transport store; channel message orphaned",
			slog.String("user_id", userID),
			slog.Int("message_id", stored.MessageID),
			slog.Any("error", err),
		)
		return File{}, err
	}
	s.logger.Info("file uploaded",
		slog.String("user_id", userID),
		slog.String("file_id", record.ID),
		slog.Int64("size", record.Size),
	)
	return record, nil
}

// Download resolves the blob reference to a byte stream. The metadata store
// is not consulted: the caller-supplied reference is sufficient, so a blob
// whose record was deleted stays fetchable until Telegram prunes it.
func (s *Service) Download(ctx context.Context, userID, fileID string) (telegram.Payload, error) {
	creds, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return telegram.Payload{}, err
	}
	return s.transport.Locate(ctx, creds, fileID)
}

// Delete retracts the channel message best-effort, then removes the metadata
// record. A retract failure is logged and does not block the local delete:
// the user asked to stop seeing the file, and that must hold even when the
// remote side is inconsistent. Deleting an unknown message is a no-op success.
func (s *Service) Delete(ctx context.Context, userID string, messageID int64) error {
	creds, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.transport.Retract(ctx, creds, int(messageID)); err != nil {
		s.logger.Warn("retract failed, removing metadata anyway",
			slog.String("user_id", userID),
			slog.Int64("message_id", messageID),
			slog.Any("error", err),
		)
	}
	removed, err := s.store.DeleteByMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if removed == 0 {
		s.logger.Debug("delete matched no records",
			slog.String("user_id", userID),
			slog.Int64("message_id", messageID),
		)
	}
	return nil
}

// List returns the user's file records, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]File, error) {
	return s.store.ListByOwner(ctx, userID)
}

// DecodePayload decodes an upload body: a data URI with a base64 payload
// ("data:...;base64,AAAA"), or bare base64 when no comma is present.
func DecodePayload(fileData string) ([]byte, error) {
	raw := fileData
	if idx := strings.IndexByte(raw, ','); idx >= 0 {
		raw = raw[idx+1:]
	}
	payload, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return payload, nil
}
