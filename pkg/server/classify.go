package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/middleware"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Messages returned by POST /classify.
const (
	msgNoImage       = "No image file provided"
	msgNoSelection   = "No file selected"
	msgInvalidFormat = "Invalid file format. Please upload JPEG, PNG, or DICOM files."
	msgTooLarge      = "File too large"
	msgPreprocessing = "Image preprocessing failed: "
)

// Outcome labels for classification metrics.
const (
	outcomeSuccess    = "success"
	outcomeBadRequest = "bad_request"
	outcomeTooLarge   = "too_large"
	outcomeStorage    = "storage_error"
	outcomeInference  = "inference_error"
)

// multipartOverhead leaves room for boundaries and part headers on top of
// the file itself.
const multipartOverhead = 64 << 10

// handleClassify accepts a multipart "image" field, archives it and returns
// one prediction per model. Every response is a classify.Response.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	maxSize := s.config.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.classifyFailed(w, http.StatusRequestEntityTooLarge, msgTooLarge, outcomeTooLarge)
			return
		}
		s.classifyFailed(w, http.StatusBadRequest, msgNoImage, outcomeBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile(classify.FieldName)
	if err != nil {
		// An empty file input arrives as a part without a filename, which
		// the parser stores as a plain value.
		msg := msgNoImage
		if _, ok := r.MultipartForm.Value[classify.FieldName]; ok {
			msg = msgNoSelection
		}
		s.classifyFailed(w, http.StatusBadRequest, msg, outcomeBadRequest)
		return
	}
	defer file.Close()

	if !upload.AllowedExtension(header.Filename) {
		s.classifyFailed(w, http.StatusBadRequest, msgInvalidFormat, outcomeBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		s.classifyFailed(w, http.StatusBadRequest, msgNoImage, outcomeBadRequest)
		return
	}
	if int64(len(data)) > maxSize {
		s.classifyFailed(w, http.StatusRequestEntityTooLarge, msgTooLarge, outcomeTooLarge)
		return
	}

	status, resp, outcome := s.classifyFile(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if !resp.Success {
		s.classifyFailed(w, status, resp.Error, outcome)
		return
	}
	writeJSON(w, status, resp)
}

// classifyFile archives data and runs the engine on it. It backs both the
// HTTP endpoint and session submissions.
func (s *Server) classifyFile(ctx context.Context, filename, contentType string, data []byte) (int, classify.Response, string) {
	id := upload.ArchiveID(s.now(), filename)
	if err := s.deps.Archive.SaveAs(ctx, id, filename, contentType, int64(len(data)), bytes.NewReader(data)); err != nil {
		appErr := errors.New("S001").Wrap(err)
		s.logger.Error("archive failed", "filename", filename, "error", appErr.FormatCompact())
		middleware.CaptureError(ctx, appErr)
		msg := errors.UserMessage(appErr, "Upload could not be stored")
		return http.StatusInternalServerError, classify.Response{Error: msg}, outcomeStorage
	}

	result, err := s.deps.Engine.Classify(ctx, data)
	if err != nil {
		s.logger.Error("classification failed", "filename", filename, "error", err)
		middleware.CaptureError(ctx, err)
		return http.StatusInternalServerError, classify.Response{Error: msgPreprocessing + causeText(err)}, outcomeInference
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ClassificationServed(result.DemoMode, outcomeSuccess)
	}
	s.logger.Info("classified",
		"image", id,
		"models", len(result.Predictions),
		"demo_mode", result.DemoMode,
		"cached", result.Cached)

	return http.StatusOK, classify.Response{
		Success:     true,
		Predictions: result.Predictions,
		ImageURL:    "/uploads/" + id,
		DemoMode:    result.DemoMode,
	}, outcomeSuccess
}

// localClassifier submits session files to the engine in-process, with the
// same checks and responses as POST /classify but outside its rate limit.
type localClassifier struct {
	s *Server
}

func (c localClassifier) Classify(ctx context.Context, f classify.File) (*classify.Response, error) {
	if !upload.AllowedExtension(f.Name) {
		c.failed(outcomeBadRequest)
		return &classify.Response{Error: msgInvalidFormat}, nil
	}
	if int64(len(f.Content)) > c.s.config.MaxFileSize {
		c.failed(outcomeTooLarge)
		return &classify.Response{Error: msgTooLarge}, nil
	}
	_, resp, outcome := c.s.classifyFile(ctx, f.Name, f.ContentType, f.Content)
	if !resp.Success {
		c.failed(outcome)
	}
	return &resp, nil
}

func (c localClassifier) failed(outcome string) {
	if c.s.deps.Metrics != nil {
		c.s.deps.Metrics.ClassificationServed(c.s.deps.Engine.DemoMode(), outcome)
	}
}

func (s *Server) classifyFailed(w http.ResponseWriter, status int, msg, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ClassificationServed(s.deps.Engine.DemoMode(), outcome)
	}
	writeJSON(w, status, classify.Response{Success: false, Error: msg})
}

// causeText prefers the underlying cause of an application error over its
// coded message.
func causeText(err error) string {
	var appErr *errors.Error
	if stderrors.As(err, &appErr) && appErr.Wrapped != nil {
		return appErr.Wrapped.Error()
	}
	return err.Error()
}

// handleArchived serves a file archived by /classify.
func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !upload.ValidID(id) {
		http.NotFound(w, r)
		return
	}

	f, err := s.deps.Archive.Open(r.Context(), id)
	if err != nil {
		if stderrors.Is(err, upload.ErrNotFound) || stderrors.Is(err, upload.ErrInvalidID) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("archive open failed", "id", id, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if f.URL != "" {
		http.Redirect(w, r, f.URL, http.StatusFound)
		return
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead && f.Reader != nil {
		if _, err := io.Copy(w, f.Reader); err != nil {
			s.logger.Debug("archive copy interrupted", "id", id, "error", err)
		}
	}
}
