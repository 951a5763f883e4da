package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/tumorscope/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "tumorscope.json"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TUMORSCOPE_"

	// DefaultPort is the default listen port.
	DefaultPort = 5000

	// DefaultHost is the default listen host.
	DefaultHost = "localhost"

	// DefaultMaxFileSize is the upload limit, 16 MiB.
	DefaultMaxFileSize int64 = 16 << 20
)

// Storage backends.
const (
	BackendDisk = "disk"
	BackendS3   = "s3"
)

// Config represents the complete tumorscope.json configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Session    SessionConfig    `json:"session"`
	Upload     UploadConfig     `json:"upload"`
	Inference  InferenceConfig  `json:"inference"`
	Classifier ClassifierConfig `json:"classifier"`
	Cache      CacheConfig      `json:"cache"`
	RateLimit  RateLimitConfig  `json:"rateLimit"`
	Sentry     SentryConfig     `json:"sentry"`
	Log        LogConfig        `json:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string   `json:"host,omitempty"`
	Port            int      `json:"port,omitempty"`
	ReadTimeout     Duration `json:"readTimeout,omitempty"`
	WriteTimeout    Duration `json:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `json:"shutdownTimeout,omitempty"`

	// Title is the page title.
	Title string `json:"title,omitempty"`

	// DevMode pretty-prints HTML.
	DevMode bool `json:"devMode,omitempty"`
}

// SessionConfig contains live session settings.
type SessionConfig struct {
	MaxSessions       int      `json:"maxSessions,omitempty"`
	IdleTimeout       Duration `json:"idleTimeout,omitempty"`
	HeartbeatInterval Duration `json:"heartbeatInterval,omitempty"`
	EventQueueSize    int      `json:"eventQueueSize,omitempty"`
}

// UploadConfig contains storage settings for temp uploads and the archive.
type UploadConfig struct {
	// Backend is "disk" or "s3".
	Backend         string   `json:"backend,omitempty"`
	TempDir         string   `json:"tempDir,omitempty"`
	ArchiveDir      string   `json:"archiveDir,omitempty"`
	MaxFileSize     int64    `json:"maxFileSize,omitempty"`
	TempExpiry      Duration `json:"tempExpiry,omitempty"`
	CleanupInterval Duration `json:"cleanupInterval,omitempty"`
	S3              S3Config `json:"s3,omitempty"`
}

// S3Config contains S3 storage settings.
type S3Config struct {
	Bucket          string `json:"bucket,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	TempPrefix      string `json:"tempPrefix,omitempty"`
	ArchivePrefix   string `json:"archivePrefix,omitempty"`
	UsePathStyle    bool   `json:"usePathStyle,omitempty"`
	AccessKeyID     string `json:"-"`
	SecretAccessKey string `json:"-"`
}

// InferenceConfig contains model settings.
type InferenceConfig struct {
	ModelsDir   string `json:"modelsDir,omitempty"`
	LibraryPath string `json:"libraryPath,omitempty"`
	InputName   string `json:"inputName,omitempty"`
	OutputName  string `json:"outputName,omitempty"`
	ImageSize   int    `json:"imageSize,omitempty"`

	// Demo skips model loading entirely.
	Demo bool `json:"demo,omitempty"`
}

// ClassifierConfig tells the upload controller where to post files.
type ClassifierConfig struct {
	// BaseURL of an external classification service. Empty means sessions
	// call the local engine.
	BaseURL string   `json:"baseURL,omitempty"`
	Timeout Duration `json:"timeout,omitempty"`
}

// CacheConfig contains the optional Redis result cache.
type CacheConfig struct {
	RedisAddr     string   `json:"redisAddr,omitempty"`
	RedisPassword string   `json:"-"`
	RedisDB       int      `json:"redisDB,omitempty"`
	TTL           Duration `json:"ttl,omitempty"`
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool { return c.RedisAddr != "" }

// RateLimitConfig limits POST /classify and temp uploads per client IP.
// A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty"`
	Burst             int     `json:"burst,omitempty"`
}

// SentryConfig enables error reporting when DSN is set.
type SentryConfig struct {
	DSN         string `json:"dsn,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     Duration{30 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			ShutdownTimeout: Duration{15 * time.Second},
			Title:           "Brain Tumor Classification",
		},
		Session: SessionConfig{
			MaxSessions:       1000,
			IdleTimeout:       Duration{10 * time.Minute},
			HeartbeatInterval: Duration{30 * time.Second},
			EventQueueSize:    64,
		},
		Upload: UploadConfig{
			Backend:         BackendDisk,
			TempDir:         filepath.Join("data", "tmp"),
			ArchiveDir:      filepath.Join("static", "uploads"),
			MaxFileSize:     DefaultMaxFileSize,
			TempExpiry:      Duration{15 * time.Minute},
			CleanupInterval: Duration{5 * time.Minute},
			S3: S3Config{
				Region:        "us-east-1",
				TempPrefix:    "tmp/",
				ArchivePrefix: "uploads/",
			},
		},
		Inference: InferenceConfig{
			ModelsDir:  "models",
			InputName:  "input",
			OutputName: "output",
			ImageSize:  128,
		},
		Classifier: ClassifierConfig{
			Timeout: Duration{60 * time.Second},
		},
		Cache: CacheConfig{
			TTL: Duration{24 * time.Hour},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads tumorscope.json and .env from dir, then applies environment
// overrides. A missing config file is not an error.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	cfg, err := LoadFile(path)
	if err != nil {
		if !stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = New()
	}

	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. Defaults fill
// every field the file leaves out.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("C002").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				Wrap(err)
		}
		return nil, errors.New("C002").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("C002").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks values that would otherwise fail at startup.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) *errors.Error {
		return errors.New("C001").WithDetail(fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port %d out of range", c.Server.Port)
	}
	switch c.Upload.Backend {
	case BackendDisk:
		if c.Upload.TempDir == "" || c.Upload.ArchiveDir == "" {
			return invalid("upload.tempDir and upload.archiveDir are required for the disk backend")
		}
	case BackendS3:
		if c.Upload.S3.Bucket == "" {
			return invalid("upload.s3.bucket is required for the s3 backend").
				WithSuggestion("Set " + EnvPrefix + "S3_BUCKET")
		}
		if c.Upload.S3.TempPrefix == c.Upload.S3.ArchivePrefix {
			return invalid("upload.s3.tempPrefix and upload.s3.archivePrefix must differ")
		}
	default:
		return invalid("upload.backend %q must be %q or %q", c.Upload.Backend, BackendDisk, BackendS3)
	}
	if c.Upload.MaxFileSize <= 0 {
		return invalid("upload.maxFileSize must be positive")
	}
	if c.Inference.ImageSize <= 0 {
		return invalid("inference.imageSize must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return invalid("rateLimit values must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return invalid("rateLimit.burst must be at least 1 when a rate is set")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return invalid("%v", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return invalid("log.format %q must be text or json", c.Log.Format)
	}
	return nil
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// URL returns the local URL of the server.
func (c *Config) URL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("30s"). Plain JSON numbers are taken as seconds.
type Duration struct {
	time.Duration
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		v, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", str, err)
		}
		d.Duration = v
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", s)
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}
