// Package files implements the file-operations gateway: the authoritative
// metadata table for stored blobs and the upload/download/delete orchestration
// against the Telegram transport.
package files

import (
	"fmt"
	"time"
)

// UploadStatus of a file record. Records are only written after the remote
// store accepted the bytes, so no partial or pending states are modeled.
const StatusCompleted = "completed"

// File is the authoritative description of one blob stored in the channel.
type File struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Name              string    `json:"name"`
	Size              int64     `json:"size"`
	Type              string    `json:"type"`
	MimeType          string    `json:"mime_type"`
	TelegramFileID    string    `json:"telegram_file_id"`
	TelegramMessageID int64     `json:"telegram_message_id"`
	FolderPath        string    `json:"folder_path"`
	UploadStatus      string    `json:"upload_status"`
	CreatedAt         time.Time `json:"created_at"`
}

// Action is the closed set of gateway operations. Anything outside the enum
// is rejected at the boundary rather than guessed at.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionDelete   Action = "delete"
)

// ParseAction validates a raw action tag against the closed enum.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionUpload, ActionDownload, ActionDelete:
		return Action(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}
