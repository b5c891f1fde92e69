package files

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tgvault/tgvault/internal/db"
)

// Store persists file records in the files table.
type Store struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewStore creates a file metadata store.
func NewStore(log *slog.Logger, conn db.DBTX) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		db:     conn,
		logger: log.With(slog.String("store", "files")),
	}
}

// CreateParams carries the fields for a new file record. The remote
// identifiers come from a transport store that already succeeded.
type CreateParams struct {
	UserID            string
	Name              string
	Size              int64
	TelegramFileID    string
	TelegramMessageID int64
}

const insertFile = `
INSERT INTO files (user_id, name, size, type, mime_type, telegram_file_id, telegram_message_id, folder_path, upload_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at
`

// Create inserts one record and returns it with the generated id. Callers
// must only invoke this after the transport accepted the bytes.
func (s *Store) Create(ctx context.Context, params CreateParams) (File, error) {
	if s.db == nil {
		return File{}, fmt.Errorf("files db not configured")
	}
	pgUserID, err := db.ParseUUID(params.UserID)
	if err != nil {
		return File{}, err
	}
	record := File{
		UserID:            params.UserID,
		Name:              params.Name,
		Size:              params.Size,
		Type:              typeHint(params.Name),
		MimeType:          "application/octet-stream",
		TelegramFileID:    params.TelegramFileID,
		TelegramMessageID: params.TelegramMessageID,
		FolderPath:        "/",
		UploadStatus:      StatusCompleted,
	}
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
	)
	err = s.db.QueryRow(ctx, insertFile,
		pgUserID,
		record.Name,
		record.Size,
		record.Type,
		record.MimeType,
		record.TelegramFileID,
		record.TelegramMessageID,
		record.FolderPath,
		record.UploadStatus,
	).Scan(&id, &createdAt)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	record.ID = db.UUIDString(id)
	record.CreatedAt = createdAt.Time
	return record, nil
}

const deleteFileByMessage = `
DELETE FROM files
WHERE user_id = $1 AND telegram_message_id = $2
`

// DeleteByMessage removes the record(s) carried by the given channel message,
// scoped to the owner so one user cannot delete another's records. The count
// is returned so callers can treat zero-row deletes as an idempotent no-op.
func (s *Store) DeleteByMessage(ctx context.Context, userID string, messageID int64) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("files db not configured")
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, deleteFileByMessage, pgUserID, messageID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return tag.RowsAffected(), nil
}

const listFilesByOwner = `
SELECT id, user_id, name, size, type, mime_type, telegram_file_id, telegram_message_id, folder_path, upload_status, created_at
FROM files
WHERE user_id = $1
ORDER BY created_at DESC
`

// ListByOwner returns the user's records, newest first.
func (s *Store) ListByOwner(ctx context.Context, userID string) ([]File, error) {
	if s.db == nil {
		return nil, fmt.Errorf("files db not configured")
	}
	pgUserID, err := db.ParseUUID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, listFilesByOwner, pgUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	records := make([]File, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			ownerID   pgtype.UUID
			record    File
			createdAt pgtype.Timestamptz
		)
		err := rows.Scan(
			&id,
			&ownerID,
			&record.Name,
			&record.Size,
			&record.Type,
			&record.MimeType,
			&record.TelegramFileID,
			&record.TelegramMessageID,
			&record.FolderPath,
			&record.UploadStatus,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		record.ID = db.UUIDString(id)
		record.UserID = db.UUIDString(ownerID)
		record.CreatedAt = createdAt.Time
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return records, nil
}

// typeHint derives the coarse file type shown in the dashboard from the
// name extension.
func typeHint(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		return "unknown"
	}
	return ext
}
