package upload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/tumorscope/pkg/upload"
)

type recordingStore struct {
	saved    []byte
	filename string
	saveErr  error
}

func (s *recordingStore) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.filename = filename
	s.saved, _ = io.ReadAll(r)
	return "temp123", nil
}

func (s *recordingStore) SaveAs(context.Context, string, string, string, int64, io.Reader) error {
	return errors.New("not implemented")
}

func (s *recordingStore) Open(context.Context, string) (*upload.File, error) {
	return nil, upload.ErrNotFound
}

func (s *recordingStore) Claim(context.Context, string) (*upload.File, error) {
	return nil, upload.ErrNotFound
}

func (s *recordingStore) Cleanup(context.Context, time.Duration) error { return nil }

func newUploadRequest(t *testing.T, field, filename, contentType string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("part.Write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer.Close: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/_app/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandler_RejectsNonPOST(t *testing.T) {
	rec := httptest.NewRecorder()
	upload.Handler(&recordingStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_app/upload", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandler_FailsWhenNotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/_app/upload", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	upload.Handler(&recordingStore{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandler_MissingFileField(t *testing.T) {
	req := newUploadRequest(t, "image", "a.png", "image/png", []byte("x"))
	rec := httptest.NewRecorder()
	upload.Handler(&recordingStore{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, rec)["error"]; got != "No file provided" {
		t.Errorf("error = %q", got)
	}
}

func TestHandler_SavesAndReturnsTempID(t *testing.T) {
	store := &recordingStore{}
	req := newUploadRequest(t, "file", "scan.dcm", "application/octet-stream", []byte("DICM"))
	rec := httptest.NewRecorder()
	upload.Handler(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["temp_id"]; got != "temp123" {
		t.Errorf("temp_id = %q", got)
	}
	if store.filename != "scan.dcm" || string(store.saved) != "DICM" {
		t.Errorf("store saw %q / %q", store.filename, store.saved)
	}
}

func TestHandler_RejectsInvalidType(t *testing.T) {
	req := newUploadRequest(t, "file", "notes.txt", "text/plain", []byte("hi"))
	rec := httptest.NewRecorder()
	upload.Handler(&recordingStore{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnsupportedMediaType)
	}
	if got := decodeBody(t, rec)["error"]; got != "Please select a valid image file (JPEG, PNG) or DICOM file." {
		t.Errorf("error = %q", got)
	}
}

func TestHandler_RejectsOversizeBody(t *testing.T) {
	config := upload.DefaultConfig()
	config.MaxFileSize = 10
	req := newUploadRequest(t, "file", "a.png", "image/png", bytes.Repeat([]byte("x"), 200<<10))
	rec := httptest.NewRecorder()
	upload.HandlerWithConfig(&recordingStore{}, config).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestHandler_RejectsOversizeFile(t *testing.T) {
	config := upload.DefaultConfig()
	config.MaxFileSize = 10
	req := newUploadRequest(t, "file", "a.png", "image/png", bytes.Repeat([]byte("x"), 11))
	rec := httptest.NewRecorder()
	upload.HandlerWithConfig(&recordingStore{}, config).ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestHandler_StoreFailure(t *testing.T) {
	store := &recordingStore{saveErr: errors.New("disk full")}
	req := newUploadRequest(t, "file", "a.png", "image/png", []byte("x"))
	rec := httptest.NewRecorder()
	upload.Handler(store).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
