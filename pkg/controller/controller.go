package controller

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/toast"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Error codes surfaced by the controller.
const (
	CodeNoFile      = "V003"
	CodeReadFailed  = "V004"
	CodeApplication = "A001"
	CodeTransport   = "T001"
)

// ResultsTarget is the element scrolled into view after results render.
const ResultsTarget = "resultsSection"

var (
	// ErrUnknownOp is returned by Attach for an operation that was never
	// issued or has already been attached.
	ErrUnknownOp = stderrors.New("controller: unknown operation")

	// ErrNoFile is returned by Submit when nothing is selected. Matches by
	// code, so errors.Is works on the value Submit returns.
	ErrNoFile = errors.New(CodeNoFile)
)

// Classifier submits a file for classification.
type Classifier interface {
	Classify(ctx context.Context, f classify.File) (*classify.Response, error)
}

// Opener loads the content of a selected file.
type Opener func(ctx context.Context) ([]byte, error)

// Config configures a Controller.
type Config struct {
	// Classifier receives submissions. Required.
	Classifier Classifier

	// Dispatch runs fn on the goroutine that owns the controller.
	// Defaults to calling fn directly.
	Dispatch func(fn func())

	// Go starts asynchronous work. Defaults to a new goroutine.
	Go func(fn func())

	// Toasts is the notification stack. Defaults to a new Center whose
	// timers resume through Dispatch.
	Toasts *toast.Center

	// MaxFileSize defaults to upload.MaxFileSize.
	MaxFileSize int64

	// SubmitTimeout bounds each classification request. Zero means no
	// limit beyond the caller's context.
	SubmitTimeout time.Duration

	Observer Observer
	Logger   *slog.Logger
}

// SelectedFile is the file currently chosen for submission.
type SelectedFile struct {
	Name    string
	Type    string
	Size    int64
	Content []byte

	// DataURL is the preview source.
	DataURL string
}

// Controller is the per-session UploadController.
type Controller struct {
	classifier    Classifier
	dispatch      func(func())
	spawn         func(func())
	toasts        *toast.Center
	maxSize       int64
	submitTimeout time.Duration
	observer      Observer
	logger        *slog.Logger

	state    State
	dragOver bool
	file     *SelectedFile
	loading  bool
	results  *classify.Response

	seq          uint64
	latestRead   uint64
	latestSubmit uint64
	pending      map[uint64]upload.FileInfo

	commands []Command
}

// New creates a Controller in the Idle state.
func New(cfg Config) *Controller {
	c := &Controller{
		classifier:    cfg.Classifier,
		dispatch:      cfg.Dispatch,
		spawn:         cfg.Go,
		toasts:        cfg.Toasts,
		maxSize:       cfg.MaxFileSize,
		submitTimeout: cfg.SubmitTimeout,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		pending:       make(map[uint64]upload.FileInfo),
	}
	if c.dispatch == nil {
		c.dispatch = func(fn func()) { fn() }
	}
	if c.spawn == nil {
		c.spawn = func(fn func()) { go fn() }
	}
	if c.toasts == nil {
		c.toasts = toast.NewCenter(toast.WithDispatcher(c.dispatch))
	}
	if c.maxSize <= 0 {
		c.maxSize = upload.MaxFileSize
	}
	if c.observer == nil {
		c.observer = nopObserver{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "controller")
	return c
}

// State returns the current UI state.
func (c *Controller) State() State { return c.state }

// File returns the selected file, or nil.
func (c *Controller) File() *SelectedFile { return c.file }

// Loading reports whether the loading overlay is shown.
func (c *Controller) Loading() bool { return c.loading }

// Results returns the last successful response, or nil.
func (c *Controller) Results() *classify.Response { return c.results }

// Toasts returns the notification stack.
func (c *Controller) Toasts() *toast.Center { return c.toasts }

// DragActive reports whether a drag is hovering over the drop zone.
func (c *Controller) DragActive() bool { return c.dragOver }

// DrainCommands returns and clears the queued client commands.
func (c *Controller) DrainCommands() []Command {
	cmds := c.commands
	c.commands = nil
	return cmds
}

// DragOver marks the drop zone as hovered.
func (c *Controller) DragOver() { c.dragOver = true }

// DragLeave clears the hover mark.
func (c *Controller) DragLeave() { c.dragOver = false }

// Drop clears the hover mark and selects the first file. Extra files are
// ignored; an empty drop selects nothing.
func (c *Controller) Drop(files []upload.FileInfo) (uint64, error) {
	c.dragOver = false
	if len(files) == 0 {
		return 0, nil
	}
	return c.Select(files[0])
}

// Pick selects a file chosen in the file browser.
func (c *Controller) Pick(info upload.FileInfo) (uint64, error) {
	return c.Select(info)
}

// Select validates file metadata and issues a read operation for it. On
// rejection a warning toast is shown and nothing else changes.
func (c *Controller) Select(info upload.FileInfo) (uint64, error) {
	if err := upload.ValidateWithLimit(info, c.maxSize); err != nil {
		e := errors.FromError(err, upload.CodeInvalidType)
		c.toasts.Warning(e.Message)
		c.observer.ValidationRejected(e.Code)
		c.logger.Debug("file rejected", "name", info.Name, "type", info.Type, "size", info.Size, "code", e.Code)
		return 0, err
	}

	c.seq++
	op := c.seq
	c.latestRead = op
	// Only the latest selection can still be applied; unattached older
	// ops are forgotten and their late content is released by the caller.
	clear(c.pending)
	c.pending[op] = info
	c.commands = append(c.commands, Command{Kind: CommandUpload, Op: op, Ref: info.Ref})
	return op, nil
}

// Attach loads the content for a read operation off the loop. The opener
// always runs for a known op, even if a newer selection has been made, so
// it can release whatever it holds; the stale result is then discarded.
// An op superseded before it was attached is unknown.
func (c *Controller) Attach(ctx context.Context, op uint64, open Opener) error {
	info, ok := c.pending[op]
	if !ok {
		return ErrUnknownOp
	}
	delete(c.pending, op)

	limit := c.maxSize
	c.spawn(func() {
		data, err := open(ctx)
		if err == nil && int64(len(data)) > limit {
			data, err = nil, errors.New(upload.CodeTooLarge)
		}
		var dataURL string
		if err == nil {
			dataURL = DataURL(info.Type, data)
		}
		c.dispatch(func() {
			c.completeRead(op, info, data, dataURL, err)
		})
	})
	return nil
}

// SelectFile selects an in-memory file and attaches its content.
func (c *Controller) SelectFile(ctx context.Context, info upload.FileInfo, content []byte) (uint64, error) {
	op, err := c.Select(info)
	if err != nil {
		return 0, err
	}
	err = c.Attach(ctx, op, func(context.Context) ([]byte, error) {
		return content, nil
	})
	return op, err
}

func (c *Controller) completeRead(op uint64, info upload.FileInfo, data []byte, dataURL string, err error) {
	if op != c.latestRead {
		c.logger.Debug("stale read discarded", "op", op, "latest", c.latestRead)
		return
	}

	if err != nil {
		e := errors.FromError(err, CodeReadFailed)
		c.logger.Warn("file read failed", "name", info.Name, "error", err)
		if e.Code == upload.CodeTooLarge {
			c.toasts.Warning(e.Message)
		} else {
			c.toasts.Danger(errors.New(CodeReadFailed).Message)
		}
		return
	}

	c.file = &SelectedFile{
		Name:    info.Name,
		Type:    info.Type,
		Size:    int64(len(data)),
		Content: data,
		DataURL: dataURL,
	}
	if c.state != StateSubmitting {
		c.state = StateFileSelected
	}
}

// Submit posts the selected file to the classifier. Without a selected file
// it shows a warning and sends nothing. A submission made while another is
// in flight supersedes it.
func (c *Controller) Submit(ctx context.Context) (uint64, error) {
	if c.file == nil {
		e := errors.New(CodeNoFile)
		c.toasts.Warning(e.Message)
		c.observer.ValidationRejected(e.Code)
		return 0, e
	}

	c.loading = true
	c.state = StateSubmitting
	c.seq++
	op := c.seq
	c.latestSubmit = op

	f := classify.File{
		Name:        c.file.Name,
		ContentType: c.file.Type,
		Content:     c.file.Content,
	}
	timeout := c.submitTimeout
	classifier := c.classifier

	c.spawn(func() {
		reqCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		resp, err := classifier.Classify(reqCtx, f)
		c.dispatch(func() {
			c.completeSubmit(op, resp, err)
		})
	})
	return op, nil
}

func (c *Controller) completeSubmit(op uint64, resp *classify.Response, err error) {
	if op != c.latestSubmit {
		c.logger.Debug("stale submission discarded", "op", op, "latest", c.latestSubmit)
		c.observer.SubmissionFinished(OutcomeStale, false)
		return
	}

	c.loading = false

	if err != nil || resp == nil {
		c.state = StateErrorShown
		c.toasts.Danger(errors.New(CodeTransport).Message)
		c.observer.SubmissionFinished(OutcomeTransportError, false)
		c.logger.Warn("classification transport failure", "error", err)
		return
	}

	if !resp.Success {
		c.state = StateErrorShown
		msg := resp.Error
		if msg == "" {
			msg = errors.New(CodeApplication).Message
		}
		c.toasts.Danger(msg)
		c.observer.SubmissionFinished(OutcomeApplicationError, resp.DemoMode)
		return
	}

	c.results = resp
	c.state = StateResultsShown
	c.commands = append(c.commands, Command{Kind: CommandScroll, Target: ResultsTarget})
	c.observer.SubmissionFinished(OutcomeSuccess, resp.DemoMode)
}

// Dismiss removes a toast by ID.
func (c *Controller) Dismiss(id string) bool {
	return c.toasts.Dismiss(id)
}

var mimePattern = regexp.MustCompile(`^[a-z0-9]+/[a-z0-9.+-]+$`)

// DataURL encodes data as a base64 data URL. Malformed content types are
// replaced with application/octet-stream.
func DataURL(contentType string, data []byte) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if !mimePattern.MatchString(ct) {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data)
}
