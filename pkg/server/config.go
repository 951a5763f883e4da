package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vango-dev/tumorscope/pkg/upload"
)

// SessionConfig configures individual WebSocket sessions.
type SessionConfig struct {
	// ReadTimeout is how long to wait for a client frame, pongs included.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the interval between server pings.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// IdleTimeout closes sessions with no client activity.
	// Default: 10 minutes.
	IdleTimeout time.Duration

	// MaxEventQueue bounds queued client events and dispatched callbacks.
	// Default: 64.
	MaxEventQueue int

	// MaxMessageSize limits a single client frame.
	// Default: 64 KiB.
	MaxMessageSize int64

	// SubmitTimeout bounds each classification request made by a session.
	// Default: 60 seconds.
	SubmitTimeout time.Duration
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		IdleTimeout:       10 * time.Minute,
		MaxEventQueue:     64,
		MaxMessageSize:    64 << 10,
		SubmitTimeout:     60 * time.Second,
	}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Address is the listen address (e.g. "localhost:5000").
	Address string

	// Title is the page title.
	Title string

	// DevMode pretty-prints HTML and disables client caching.
	DevMode bool

	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// MaxSessions limits concurrent WebSocket sessions. Zero is unlimited.
	MaxSessions int

	// MaxFileSize is the upload limit for both temp uploads and /classify.
	MaxFileSize int64

	// TempExpiry is how long unclaimed temp uploads are kept.
	TempExpiry time.Duration

	// CleanupInterval is how often expired temp uploads are removed.
	CleanupInterval time.Duration

	// RateLimit is requests per second per client for uploads and
	// /classify. Zero disables limiting.
	RateLimit float64
	RateBurst int

	// StyleSheets are linked from the page head.
	StyleSheets []string

	// CheckOrigin validates the WebSocket Origin header.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	Session *SessionConfig
	Logger  *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           "localhost:5000",
		Title:             "Brain Tumor Classification",
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		MaxSessions:       1000,
		MaxFileSize:       upload.MaxFileSize,
		TempExpiry:        15 * time.Minute,
		CleanupInterval:   5 * time.Minute,
		RateLimit:         2,
		RateBurst:         5,
		StyleSheets: []string{
			"https://cdn.jsdelivr.net/npm/bootstrap@5.3.2/dist/css/bootstrap.min.css",
			"https://cdnjs.cloudflare.com/ajax/libs/font-awesome/6.5.1/css/all.min.css",
		},
		CheckOrigin: SameOriginCheck,
		Session:     DefaultSessionConfig(),
	}
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the Host header.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// ValidateConfig checks values that would break the server at runtime.
func (c *ServerConfig) ValidateConfig() error {
	if c.Address == "" {
		return fmt.Errorf("server: address is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("server: max file size must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("server: rate limit must not be negative")
	}
	if c.Session == nil {
		return fmt.Errorf("server: session config is required")
	}
	if c.Session.HeartbeatInterval <= 0 || c.Session.ReadTimeout <= c.Session.HeartbeatInterval {
		return fmt.Errorf("server: session read timeout must exceed the heartbeat interval")
	}
	if c.Session.MaxEventQueue <= 0 {
		return fmt.Errorf("server: session event queue must be positive")
	}
	return nil
}
