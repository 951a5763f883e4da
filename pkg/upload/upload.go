package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/vango-dev/tumorscope/internal/errors"
)

// ErrNotFound is returned when a stored file doesn't exist.
var ErrNotFound = errors.New("upload: file not found")

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("upload: file too large")

// ErrInvalidID is returned for IDs that could escape the store.
var ErrInvalidID = errors.New("upload: invalid file id")

// Store is the interface for upload storage backends.
type Store interface {
	// Save stores the file under a new random ID.
	Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (id string, err error)

	// SaveAs stores the file under the given ID, replacing any existing file.
	SaveAs(ctx context.Context, id, filename, contentType string, size int64, r io.Reader) error

	// Open returns the file without removing it.
	Open(ctx context.Context, id string) (*File, error)

	// Claim returns the file and removes it once the returned File is closed.
	Claim(ctx context.Context, id string) (*File, error)

	// Cleanup removes files older than maxAge.
	Cleanup(ctx context.Context, maxAge time.Duration) error
}

// File represents a stored upload.
type File struct {
	// ID is the unique identifier for this upload.
	ID string

	// Filename is the original filename from the client.
	Filename string

	// ContentType is the MIME type of the file.
	ContentType string

	// Size is the file size in bytes.
	Size int64

	// ModTime is when the file was stored.
	ModTime time.Time

	// Path is the local filesystem path (DiskStore only).
	Path string

	// URL is a presigned download URL (S3Store only, may be empty).
	URL string

	// Reader provides access to the file contents.
	Reader io.ReadCloser
}

// Close closes the file reader if open.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// ReadAll reads the whole file, stopping at limit+1 bytes so oversize
// content is reported as ErrTooLarge. A limit <= 0 disables the check.
func (f *File) ReadAll(limit int64) ([]byte, error) {
	if f.Reader == nil {
		return nil, ErrNotFound
	}
	r := io.Reader(f.Reader)
	if limit > 0 {
		r = io.LimitReader(f.Reader, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Config holds configuration for the temp-upload handler.
type Config struct {
	// MaxFileSize is the maximum allowed file size in bytes.
	// Default: MaxFileSize (16 MiB).
	MaxFileSize int64

	// Validate applies the selection rules to every upload. Default: true.
	Validate bool

	// TempExpiry is how long temp files live before cleanup.
	// Default: 15 minutes.
	TempExpiry time.Duration

	// Logger receives upload failures. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: MaxFileSize,
		Validate:    true,
		TempExpiry:  15 * time.Minute,
	}
}

// multipartOverhead leaves room for boundaries and part headers on top of
// the file itself.
const multipartOverhead = 64 << 10

// Handler returns the temp-upload handler with default configuration.
//
// The handler expects a multipart form with a "file" field.
// It returns JSON with the temp_id:
//
//	{"temp_id": "3f0c..."}
func Handler(store Store) http.Handler {
	return HandlerWithConfig(store, DefaultConfig())
}

// HandlerWithConfig returns a temp-upload handler with custom configuration.
func HandlerWithConfig(store Store, config *Config) http.Handler {
	if config == nil {
		config = DefaultConfig()
	}
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = MaxFileSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "upload")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		// Limit the body before parsing.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Failed to parse form")
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No file provided")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if config.Validate {
			info := FileInfo{Name: header.Filename, Type: contentType, Size: header.Size}
			if err := ValidateWithLimit(info, maxSize); err != nil {
				status := http.StatusUnsupportedMediaType
				if errors.Is(err, apperrors.New(CodeTooLarge)) {
					status = http.StatusRequestEntityTooLarge
				}
				writeError(w, status, apperrors.UserMessage(err, "Invalid file"))
				return
			}
		}

		tempID, err := store.Save(r.Context(), header.Filename, contentType, header.Size, file)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			logger.Error("temp upload failed", "filename", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "Upload failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"temp_id": tempID})
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
