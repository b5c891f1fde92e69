package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tgvault/tgvault/internal/credentials"
	"github.com/tgvault/tgvault/internal/files"
	"github.com/tgvault/tgvault/internal/server"
	"github.com/tgvault/tgvault/internal/telegram"
)

const testOwnerID = "3c9a7f5e-4c2b-4aa1-b0c6-0f5d7a1b2c3d"

type stubTransport struct {
	storeResult  telegram.StoreResult
	storeErr     error
	locatePath   telegram.Payload
	locateErr    error
	retractErr   error
	retractCalls int
}

func (s *stubTransport) Store(ctx context.Context, creds credentials.Credentials, name string, payload []byte) (telegram.StoreResult, error) {
	return s.storeResult, s.storeErr
}

func (s *stubTransport) Locate(ctx context.Context, creds credentials.Credentials, fileID string) (telegram.Payload, error) {
	return s.locatePath, s.locateErr
}

func (s *stubTransport) Retract(ctx context.Context, creds credentials.Credentials, messageID int) error {
	s.retractCalls++
	return s.retractErr
}

type stubStore struct {
	created    []files.CreateParams
	createErr  error
	deleted    []int64
	deleteErr  error
	listResult []files.File
	listErr    error
}

func (s *stubStore) Create(ctx context.Context, params files.CreateParams) (files.File, error) {
	s.created = append(s.created, params)
	if s.createErr != nil {
		return files.File{}, s.createErr
	}
	return files.File{
		UserID:            params.UserID,
		Name:              params.Name,
		Size:              params.Size,
		TelegramFileID:    params.TelegramFileID,
		TelegramMessageID: params.TelegramMessageID,
		UploadStatus:      files.StatusCompleted,
		CreatedAt:         time.Now(),
	}, nil
}

func (s *stubStore) DeleteByMessage(ctx context.Context, userID string, messageID int64) (int64, error) {
	s.deleted = append(s.deleted, messageID)
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	return 1, nil
}

func (s *stubStore) ListByOwner(ctx context.Context, userID string) ([]files.File, error) {
	return s.listResult, s.listErr
}

type stubResolver struct {
	creds credentials.Credentials
	err   error
}

func (s *stubResolver) Resolve(ctx context.Context, userID string) (credentials.Credentials, error) {
	return s.creds, s.err
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = server.NewValidator()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newTestFilesHandler(transport *stubTransport, store *stubStore, resolver *stubResolver) *FilesHandler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := files.NewService(log, transport, store, resolver)
	return NewFilesHandler(log, svc)
}

func TestActionUploadReturnsFileRecord(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{storeResult: telegram.StoreResult{FileID: "tg-file-1", MessageID: 42}}
	store := &stubStore{}
	resolver := &stubResolver{creds: credentials.Credentials{BotToken: "token", ChannelID: "-100123"}}
	h := newTestFilesHandler(transport, store, resolver)

	encoded := "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))
	body, _ := json.Marshal(fileActionPayload{Action: "upload", FileName: "hello.txt", FileData: encoded})
	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", string(body))
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success")
	}
	if resp.File.TelegramFileID != "tg-file-1" || resp.File.TelegramMessageID != 42 {
		t.Fatalf("unexpected file record: %+v", resp.File)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one metadata write, got %d", len(store.created))
	}
}

func TestActionRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	h := newTestFilesHandler(&stubTransport{}, &stubStore{}, &stubResolver{})
	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", `{"action":"rename"}`)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if !strings.Contains(resp.Error, "rename") {
		t.Fatalf("expected rejected action in error, got %q", resp.Error)
	}
}

func TestActionUploadWithoutCredentialsReturns412(t *testing.T) {
	t.Parallel()

	h := newTestFilesHandler(&stubTransport{}, &stubStore{}, &stubResolver{err: credentials.ErrNotConfigured})
	encoded := base64.StdEncoding.EncodeToString([]byte("x"))
	body := `{"action":"upload","fileName":"x.bin","fileData":"data:application/octet-stream;base64,` + encoded + `"}`
	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", body)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestActionDownloadStreamsBlob(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{locatePath: telegram.Payload{
		Reader: io.NopCloser(strings.NewReader("blob-bytes")),
		Mime:   "text/plain",
		Size:   10,
	}}
	resolver := &stubResolver{creds: credentials.Credentials{BotToken: "token", ChannelID: "-100123"}}
	h := newTestFilesHandler(transport, &stubStore{}, resolver)

	body := `{"action":"download","fileId":"tg-file-1","fileName":"notes.txt"}`
	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", body)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.String() != "blob-bytes" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
	disposition := rec.Header().Get(echo.HeaderContentDisposition)
	if !strings.Contains(disposition, "notes.txt") {
		t.Fatalf("unexpected disposition: %q", disposition)
	}
}

func TestActionDownloadExpiredReferenceReturns404(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{locateErr: telegram.ErrBlobNotFound}
	resolver := &stubResolver{creds: credentials.Credentials{BotToken: "token", ChannelID: "-100123"}}
	h := newTestFilesHandler(transport, &stubStore{}, resolver)

	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", `{"action":"download","fileId":"stale"}`)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestActionDeleteUsesMessageID(t *testing.T) {
	t.Parallel()

	transport := &stubTransport{}
	store := &stubStore{}
	resolver := &stubResolver{creds: credentials.Credentials{BotToken: "token", ChannelID: "-100123"}}
	h := newTestFilesHandler(transport, store, resolver)

	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", `{"action":"delete","messageId":77}`)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 1 || store.deleted[0] != 77 {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
}

func TestActionDeleteFallsBackToFileIDCarrier(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	resolver := &stubResolver{creds: credentials.Credentials{BotToken: "token", ChannelID: "-100123"}}
	h := newTestFilesHandler(&stubTransport{}, store, resolver)

	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", `{"action":"delete","fileId":"91"}`)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 91 {
		t.Fatalf("unexpected deletes: %v", store.deleted)
	}
}

func TestActionDeleteWithoutIdentifierFails(t *testing.T) {
	t.Parallel()

	h := newTestFilesHandler(&stubTransport{}, &stubStore{}, &stubResolver{})
	c, rec := newTestContext(t, http.MethodPost, "/api/telegram-service", `{"action":"delete"}`)
	setTestUser(c, testOwnerID)

	if err := h.Action(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestListReturnsEmptySliceNotNull(t *testing.T) {
	t.Parallel()

	h := newTestFilesHandler(&stubTransport{}, &stubStore{}, &stubResolver{})
	c, rec := newTestContext(t, http.MethodGet, "/api/files", "")
	setTestUser(c, testOwnerID)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"files":[]`) {
		t.Fatalf("expected empty files array, got %s", rec.Body.String())
	}
}
