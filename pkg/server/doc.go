// Package server serves the upload page, its live sessions and the
// classification backend.
//
// # Architecture
//
//   - Session: one browser tab. Owns an upload controller and the last HTML
//     sent for each page region.
//   - SessionManager: tracks sessions, enforces MaxSessions and closes idle ones.
//   - Server: chi router, WebSocket upgrade, POST /classify and graceful shutdown.
//
// # Session Lifecycle
//
// Each WebSocket connection creates a Session that runs three goroutines:
//   - ReadLoop: reads JSON frames, answers pings and queues events
//   - EventLoop: applies events and dispatched callbacks to the controller, one at a time
//   - WriteLoop: sends heartbeat pings
//
// # Event Processing
//
// When a client sends an event:
//  1. ReadLoop decodes the frame and queues it
//  2. EventLoop calls the matching controller method
//  3. Every region is rendered and compared with what the client has
//  4. Changed regions are sent as patch frames, then queued commands
//
// Work that leaves the loop (reading an upload, calling the classifier)
// comes back through Session.Dispatch and is flushed the same way.
//
// # File Acquisition
//
// A picked or dropped file reaches the server in two steps. The session
// sends an "upload" command carrying the operation number; the client posts
// the file to /_app/upload and replies with an "uploaded" event naming the
// temp ID. The session claims the temp file, which removes it once read.
//
// # Routes
//
//	GET  /                 page in its initial state
//	GET  /_app/ws          session WebSocket
//	GET  /_app/client.js   thin client
//	POST /_app/upload      temp upload, returns {"temp_id": ...}
//	POST /classify         multipart "image", returns predictions
//	GET  /uploads/{id}     archived image
//	GET  /health           liveness and demo mode
//	GET  /metrics          Prometheus, when metrics are enabled
//
// # Example Usage
//
//	srv, err := server.New(server.DefaultServerConfig(), server.Deps{
//	    Engine:  engine,
//	    Temp:    temp,
//	    Archive: archive,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
