// Package telegram wraps the Bot API operations the gateway needs: storing a
// document in the user's channel, resolving stored bytes back out, and
// deleting the carrying message.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tgvault/tgvault/internal/credentials"
)

// MaxFileBytes is the Bot API hard ceiling for bot-uploaded documents.
// Payloads over the limit are rejected before any network transmission.
const MaxFileBytes int64 = 50 * 1024 * 1024

const downloadTimeout = 60 * time.Second

var (
	// ErrPayloadTooLarge indicates the payload exceeds MaxFileBytes.
	ErrPayloadTooLarge = errors.New("file exceeds the telegram upload limit")
	// ErrRejected indicates the Bot API returned a structured failure; the
	// wrapped message carries the API description verbatim.
	ErrRejected = errors.New("telegram api error")
	// ErrUnavailable indicates a connectivity failure talking to Telegram.
	ErrUnavailable = errors.New("telegram api unreachable")
	// ErrBlobNotFound indicates a file reference the API no longer resolves.
	ErrBlobNotFound = errors.New("telegram file not found or expired")
)

// StoreResult carries the two remote identifiers issued for a stored blob:
// the file id used for download and the message id used for deletion.
type StoreResult struct {
	FileID    string
	MessageID int
}

// Payload is a resolved byte stream; the caller owns closing Reader.
type Payload struct {
	Reader io.ReadCloser
	Mime   string
	Size   int64
}

// Adapter talks to the Bot API with per-user credentials. Bot clients are
// cached by token so repeated requests reuse the underlying session.
type Adapter struct {
	logger *slog.Logger
	client *http.Client
	mu     sync.RWMutex
	bots   map[string]*tgbotapi.BotAPI
}

// NewAdapter creates an Adapter with the given logger.
func NewAdapter(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		logger: log.With(slog.String("adapter", "telegram")),
		client: &http.Client{Timeout: downloadTimeout},
		bots:   make(map[string]*tgbotapi.BotAPI),
	}
}

var getOrCreateBotForTest func(a *Adapter, token string) (*tgbotapi.BotAPI, error)

func (a *Adapter) getOrCreateBot(token string) (*tgbotapi.BotAPI, error) {
	if getOrCreateBotForTest != nil {
		return getOrCreateBotForTest(a, token)
	}
	a.mu.RLock()
	bot, ok := a.bots[token]
	a.mu.RUnlock()
	if ok {
		return bot, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if bot, ok := a.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, classifyError(err)
	}
	a.bots[token] = bot
	return bot, nil
}

// Store submits payload as a document to the configured channel and returns
// the remote identifiers needed for later download and deletion. The size
// guard runs before any bot client is created or bytes leave the process.
func (a *Adapter) Store(ctx context.Context, creds credentials.Credentials, name string, payload []byte) (StoreResult, error) {
	if int64(len(payload)) > MaxFileBytes {
		return StoreResult{}, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxFileBytes)
	}
	if strings.TrimSpace(name) == "" {
		name = "file"
	}
	bot, err := a.getOrCreateBot(creds.BotToken)
	if err != nil {
		return StoreResult{}, err
	}
	document, err := buildDocument(creds.ChannelID, tgbotapi.FileBytes{Name: name, Bytes: payload})
	if err != nil {
		return StoreResult{}, err
	}
	document.Caption = "📁 " + name
	sent, err := bot.Send(document)
	if err != nil {
		a.logger.Error("send document failed", slog.String("name", name), slog.Any("error", err))
		return StoreResult{}, classifyError(err)
	}
	if sent.Document == nil {
		return StoreResult{}, fmt.Errorf("%w: response carries no document", ErrRejected)
	}
	return StoreResult{
		FileID:    sent.Document.FileID,
		MessageID: sent.MessageID,
	}, nil
}

// Locate resolves fileID to a byte stream in two steps: a getFile call that
// yields a short-lived file path, then a fetch of the bytes at that path.
// The intermediate path token is never persisted or returned.
func (a *Adapter) Locate(ctx context.Context, creds credentials.Credentials, fileID string) (Payload, error) {
	if strings.TrimSpace(fileID) == "" {
		return Payload{}, fmt.Errorf("%w: empty file reference", ErrBlobNotFound)
	}
	bot, err := a.getOrCreateBot(creds.BotToken)
	if err != nil {
		return Payload{}, err
	}
	downloadURL, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		var apiErr tgbotapi.Error
		if errors.As(err, &apiErr) {
			return Payload{}, fmt.Errorf("%w: %s", ErrBlobNotFound, apiErr.Message)
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("build download request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer func() {
			_ = resp.Body.Close()
		}()
		_, _ = io.Copy(io.Discard, resp.Body)
		return Payload{}, fmt.Errorf("%w: download status %d", ErrUnavailable, resp.StatusCode)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return Payload{
		Reader: resp.Body,
		Mime:   mime,
		Size:   resp.ContentLength,
	}, nil
}

// Retract requests deletion of the channel message carrying a stored blob.
// Callers treat a failure here as soft: the message may already be gone.
func (a *Adapter) Retract(ctx context.Context, creds credentials.Credentials, messageID int) error {
	bot, err := a.getOrCreateBot(creds.BotToken)
	if err != nil {
		return err
	}
	remove, err := buildDeleteMessage(creds.ChannelID, messageID)
	if err != nil {
		return err
	}
	if _, err := bot.Request(remove); err != nil {
		return classifyError(err)
	}
	return nil
}

func buildDocument(target string, file tgbotapi.RequestFileData) (tgbotapi.DocumentConfig, error) {
	if strings.HasPrefix(target, "@") {
		return tgbotapi.DocumentConfig{
			BaseFile: tgbotapi.BaseFile{
				BaseChat: tgbotapi.BaseChat{ChannelUsername: target},
				File:     file,
			},
		}, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.DocumentConfig{}, fmt.Errorf("%w: channel id must be @username or a numeric chat id", ErrRejected)
	}
	return tgbotapi.NewDocument(chatID, file), nil
}

func buildDeleteMessage(target string, messageID int) (tgbotapi.DeleteMessageConfig, error) {
	if strings.HasPrefix(target, "@") {
		return tgbotapi.DeleteMessageConfig{
			ChannelUsername: target,
			MessageID:       messageID,
		}, nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.DeleteMessageConfig{}, fmt.Errorf("%w: channel id must be @username or a numeric chat id", ErrRejected)
	}
	return tgbotapi.NewDeleteMessage(chatID, messageID), nil
}

// classifyError splits Bot API failures, which carry a user-facing
// description, from plain connectivity failures.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr tgbotapi.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", ErrRejected, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
