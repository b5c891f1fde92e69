package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tgvault/tgvault/internal/auth"
	"github.com/tgvault/tgvault/internal/credentials"
	"github.com/tgvault/tgvault/internal/files"
	"github.com/tgvault/tgvault/internal/telegram"
)

// FilesHandler exposes the file gateway: a single action-routed endpoint
// plus a listing endpoint for the account's stored files.
type FilesHandler struct {
	files  *files.Service
	logger *slog.Logger
}

type fileActionPayload struct {
	Action    string `json:"action" validate:"required"`
	FileData  string `json:"fileData,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	FileID    string `json:"fileId,omitempty"`
	MessageID int64  `json:"messageId,omitempty"`
}

type uploadResponse struct {
	Success bool       `json:"success"`
	File    files.File `json:"file"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

type listResponse struct {
	Files []files.File `json:"files"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewFilesHandler creates a FilesHandler.
func NewFilesHandler(log *slog.Logger, fileService *files.Service) *FilesHandler {
	return &FilesHandler{
		files:  fileService,
		logger: log.With(slog.String("handler", "files")),
	}
}

func (h *FilesHandler) Register(e *echo.Echo) {
	e.POST("/api/telegram-service", h.Action)
	e.GET("/api/files", h.List)
}

// Action dispatches an upload, download, or delete request from the
// single gateway envelope.
func (h *FilesHandler) Action(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	var payload fileActionPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	if err := c.Validate(&payload); err != nil {
		return err
	}
	action, err := files.ParseAction(payload.Action)
	if err != nil {
		return h.respondError(c, err)
	}
	switch action {
	case files.ActionUpload:
		return h.upload(c, userID, payload)
	case files.ActionDownload:
		return h.download(c, userID, payload)
	case files.ActionDelete:
		return h.delete(c, userID, payload)
	}
	return h.respondError(c, files.ErrInvalidAction)
}

func (h *FilesHandler) upload(c echo.Context, userID string, payload fileActionPayload) error {
	if payload.FileData == "" || payload.FileName == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "fileData and fileName are required for upload"})
	}
	file, err := h.files.Upload(c.Request().Context(), userID, payload.FileName, payload.FileData)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, uploadResponse{Success: true, File: file})
}

func (h *FilesHandler) download(c echo.Context, userID string, payload fileActionPayload) error {
	if payload.FileID == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "fileId is required for download"})
	}
	blob, err := h.files.Download(c.Request().Context(), userID, payload.FileID)
	if err != nil {
		return h.respondError(c, err)
	}
	defer blob.Reader.Close()
	name := payload.FileName
	if name == "" {
		name = "file"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	if blob.Size > 0 {
		c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(blob.Size, 10))
	}
	mime := blob.Mime
	if mime == "" {
		mime = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, mime, blob.Reader)
}

func (h *FilesHandler) delete(c echo.Context, userID string, payload fileActionPayload) error {
	messageID := payload.MessageID
	if messageID == 0 && payload.FileID != "" {
		// Some clients carry the channel message id in the fileId slot.
		parsed, err := strconv.ParseInt(payload.FileID, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "messageId is required for delete"})
		}
		messageID = parsed
	}
	if messageID == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "messageId is required for delete"})
	}
	if err := h.files.Delete(c.Request().Context(), userID, messageID); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, deleteResponse{Success: true})
}

// List returns the account's files, newest first.
func (h *FilesHandler) List(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return err
	}
	owned, err := h.files.List(c.Request().Context(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	if owned == nil {
		owned = []files.File{}
	}
	return c.JSON(http.StatusOK, listResponse{Files: owned})
}

// respondError maps gateway errors onto HTTP statuses with a flat
// {"error": ...} body so clients get one envelope for every failure.
func (h *FilesHandler) respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, files.ErrInvalidAction), errors.Is(err, files.ErrInvalidPayload):
		status = http.StatusBadRequest
	case errors.Is(err, credentials.ErrNotConfigured):
		status = http.StatusPreconditionFailed
	case errors.Is(err, telegram.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, telegram.ErrBlobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, telegram.ErrRejected), errors.Is(err, telegram.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, files.ErrPersistence):
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("file action failed", slog.Any("error", err))
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}
