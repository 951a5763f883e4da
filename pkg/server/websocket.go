package server

import (
	"time"

	"github.com/gorilla/websocket"
)

// ReadLoop continuously reads frames from the WebSocket connection and
// queues them as events. It blocks until the connection is closed or an
// error occurs.
func (s *Session) ReadLoop() {
	defer s.Close()

	s.conn.SetReadLimit(s.config.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.UpdateLastActive()
		return s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
				if s.metrics != nil {
					s.metrics.WebSocketError("read")
				}
			}
			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		s.UpdateLastActive()

		ev, err := DecodeEvent(msg)
		if err != nil {
			s.logger.Error("event decode error", "error", err)
			if s.metrics != nil {
				s.metrics.WebSocketError("decode")
			}
			s.sendMessage(Message{Type: MessageError, Message: "Invalid event format"})
			continue
		}

		if ev.Type == EventPing {
			s.sendMessage(Message{Type: MessagePong})
			continue
		}

		if err := s.QueueEvent(ev); err != nil {
			s.sendMessage(Message{Type: MessageError, Message: "Too many events. Please slow down."})
		}
	}
}

// WriteLoop sends heartbeat pings until the session is closed.
func (s *Session) WriteLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendPing(); err != nil {
				s.logger.Debug("ping failed", "error", err)
				s.Close()
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) sendPing() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout))
}

// EventLoop processes queued events and dispatched callbacks one at a time,
// each to completion.
func (s *Session) EventLoop() {
	for {
		select {
		case event := <-s.events:
			s.handleEvent(event)

		case fn := <-s.dispatchCh:
			s.executeDispatch(fn)

		case <-s.done:
			return
		}
	}
}

// Start starts all session loops.
func (s *Session) Start() {
	s.sendMessage(Message{Type: MessageHello, ID: s.ID})
	go s.ReadLoop()
	go s.WriteLoop()
	go s.EventLoop()
}
