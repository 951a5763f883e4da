package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/controller"
	"github.com/vango-dev/tumorscope/pkg/middleware"
	"github.com/vango-dev/tumorscope/pkg/render"
	"github.com/vango-dev/tumorscope/pkg/toast"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

// Session is one browser tab: a WebSocket connection and the upload
// controller it drives.
type Session struct {
	// Identity
	ID        string
	IP        string
	CreatedAt time.Time

	lastActive atomic.Int64

	// Connection
	conn   *websocket.Conn
	mu     sync.Mutex // Protects conn writes
	closed atomic.Bool

	// Channels
	events     chan *Event   // Incoming events
	dispatchCh chan func()   // Functions to run on the event loop
	done       chan struct{} // Shutdown signal

	// ctx is cancelled on close; it parents reads and submissions so they
	// stop when the tab goes away.
	ctx    context.Context
	cancel context.CancelFunc

	ctrl     *controller.Controller
	temp     upload.Store
	renderer *render.Renderer
	maxSize  int64

	// regions holds the last HTML sent per region ID. Event loop only.
	regions map[string]string

	config  *SessionConfig
	metrics *middleware.Metrics
	logger  *slog.Logger
	onClose func(*Session)

	patchCount atomic.Uint64
}

// sessionDeps are the collaborators a session needs from the server.
type sessionDeps struct {
	config     *SessionConfig
	classifier controller.Classifier
	temp       upload.Store
	renderer   *render.Renderer
	metrics    *middleware.Metrics
	maxSize    int64
	logger     *slog.Logger
}

// newSession creates a session with its own controller. conn may be nil in
// tests that drive the loop directly.
func newSession(conn *websocket.Conn, ip string, deps sessionDeps) *Session {
	config := deps.config
	if config == nil {
		config = DefaultSessionConfig()
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s := &Session{
		ID:         id,
		IP:         ip,
		CreatedAt:  now,
		conn:       conn,
		events:     make(chan *Event, config.MaxEventQueue),
		dispatchCh: make(chan func(), config.MaxEventQueue),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		temp:       deps.temp,
		renderer:   deps.renderer,
		maxSize:    deps.maxSize,
		regions:    make(map[string]string),
		config:     config,
		metrics:    deps.metrics,
		logger:     logger.With("session_id", id),
	}
	s.lastActive.Store(now.UnixNano())
	if s.renderer == nil {
		s.renderer = render.NewRenderer(render.RendererConfig{})
	}

	ctrlConfig := controller.Config{
		Classifier:    deps.classifier,
		Dispatch:      s.Dispatch,
		Toasts:        toast.NewCenter(toast.WithDispatcher(s.Dispatch)),
		MaxFileSize:   deps.maxSize,
		SubmitTimeout: config.SubmitTimeout,
		Logger:        s.logger,
	}
	if deps.metrics != nil {
		ctrlConfig.Observer = deps.metrics
	}
	s.ctrl = controller.New(ctrlConfig)

	// The page was rendered from the same initial view; only changes
	// from here on are patched.
	s.diffRegions()
	return s
}

// Controller returns the session's upload controller. It must only be used
// from the event loop, for example inside Dispatch.
func (s *Session) Controller() *controller.Controller {
	return s.ctrl
}

// handleEvent applies one client event to the controller.
func (s *Session) handleEvent(ev *Event) {
	defer s.recoverPanic("event " + ev.Type)

	switch ev.Type {
	case EventDragOver:
		s.ctrl.DragOver()

	case EventDragLeave:
		s.ctrl.DragLeave()

	case EventDrop:
		files := make([]upload.FileInfo, len(ev.Files))
		for i, f := range ev.Files {
			files[i] = f.info()
		}
		_, _ = s.ctrl.Drop(files)

	case EventPick:
		if len(ev.Files) > 0 {
			_, _ = s.ctrl.Pick(ev.Files[0].info())
		}

	case EventUploaded:
		s.attachUpload(ev.Op, ev.ID)

	case EventUploadFailed:
		err := s.ctrl.Attach(s.ctx, ev.Op, func(context.Context) ([]byte, error) {
			return nil, errors.New(controller.CodeReadFailed).WithDetail("client upload failed")
		})
		if err != nil {
			s.logger.Debug("upload failure for unknown op", "op", ev.Op)
		}

	case EventSubmit:
		_, _ = s.ctrl.Submit(s.ctx)

	case EventDismiss:
		s.ctrl.Dismiss(ev.ID)

	default:
		s.logger.Warn("unknown event type", "type", ev.Type)
		return
	}

	s.flush()
}

// attachUpload hands the claimed temp file to the controller. The temp file
// is removed whether or not the op is still current.
func (s *Session) attachUpload(op uint64, tempID string) {
	maxSize := s.maxSize
	opener := func(ctx context.Context) ([]byte, error) {
		if s.temp == nil {
			return nil, upload.ErrNotFound
		}
		f, err := s.temp.Claim(ctx, tempID)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		data, err := f.ReadAll(maxSize)
		if stderrors.Is(err, upload.ErrTooLarge) {
			return nil, errors.New(upload.CodeTooLarge).Wrap(err)
		}
		return data, err
	}

	if err := s.ctrl.Attach(s.ctx, op, opener); err != nil {
		s.logger.Warn("upload for unknown op, releasing", "op", op, "temp_id", tempID)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_, _ = opener(ctx)
		}()
	}
}

// executeDispatch runs a dispatched function on the loop and pushes any UI
// changes it made.
func (s *Session) executeDispatch(fn func()) {
	defer s.recoverPanic("dispatch")
	fn()
	s.flush()
}

func (s *Session) recoverPanic(where string) {
	if r := recover(); r != nil {
		perr := &PanicError{SessionID: s.ID, Where: where, Panic: r, Stack: debug.Stack()}
		s.logger.Error("session panic", "where", where, "panic", r, "stack", string(perr.Stack))
		s.sendMessage(Message{Type: MessageError, Message: "Something went wrong. Please reload the page."})
	}
}

// flush sends patches for regions that changed, then queued commands.
func (s *Session) flush() {
	for _, msg := range s.diffRegions() {
		s.sendMessage(msg)
	}
	for _, cmd := range s.ctrl.DrainCommands() {
		s.sendJSON(cmd)
	}
}

// diffRegions renders every region and returns patches for those whose
// HTML differs from what the client has.
func (s *Session) diffRegions() []Message {
	var patches []Message
	for _, node := range controller.Regions(s.ctrl.View()) {
		html, err := s.renderer.RenderToString(node)
		if err != nil {
			s.logger.Error("render failed", "region", node.ID(), "error", err)
			continue
		}
		id := node.ID()
		if prev, ok := s.regions[id]; ok && prev == html {
			continue
		}
		s.regions[id] = html
		patches = append(patches, Message{Type: MessagePatch, ID: id, HTML: html})
	}
	if len(patches) > 0 && s.metrics != nil {
		s.metrics.PatchesSent(len(patches))
	}
	s.patchCount.Add(uint64(len(patches)))
	return patches
}

func (s *Session) sendMessage(msg Message) {
	s.sendJSON(msg)
}

func (s *Session) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encode error", "error", err)
		return
	}
	if err := s.write(websocket.TextMessage, data); err != nil &&
		!stderrors.Is(err, ErrSessionClosed) && !stderrors.Is(err, ErrNoConnection) {
		s.logger.Error("write error", "error", err)
		if s.metrics != nil {
			s.metrics.WebSocketError("write")
		}
		s.Close()
	}
}

func (s *Session) write(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.conn == nil {
		return ErrNoConnection
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(messageType, data)
}

// QueueEvent queues a client event for the event loop.
func (s *Session) QueueEvent(event *Event) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.events <- event:
		return nil
	default:
		s.logger.Warn("event queue full, dropping event", "type", event.Type)
		return ErrEventQueueFull
	}
}

// Dispatch schedules fn on the event loop, waiting for room when the queue
// is full. Callbacks dispatched after the session closes are dropped. It
// must not be called from the event loop itself.
func (s *Session) Dispatch(fn func()) {
	if s.closed.Load() {
		return
	}
	select {
	case s.dispatchCh <- fn:
		return
	case <-s.done:
		return
	default:
	}

	s.logger.Debug("dispatch queue full, waiting")
	select {
	case s.dispatchCh <- fn:
	case <-s.done:
	}
}

// Close shuts the session down. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}

	close(s.done)
	s.cancel()

	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	}
	s.mu.Unlock()

	s.ctrl.Toasts().Clear()
	s.logger.Info("session closed", "patches", s.patchCount.Load())

	if s.onClose != nil {
		s.onClose(s)
	}
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// UpdateLastActive records client activity.
func (s *Session) UpdateLastActive() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last client activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}
