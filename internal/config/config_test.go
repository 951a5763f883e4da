package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/tumorscope/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
	}
	if cfg.Upload.MaxFileSize != 16*1024*1024 {
		t.Errorf("Upload.MaxFileSize = %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.Backend != BackendDisk {
		t.Errorf("Upload.Backend = %q", cfg.Upload.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path = %q, want empty", cfg.Path())
	}
	if cfg.Inference.ImageSize != 128 {
		t.Errorf("ImageSize = %d", cfg.Inference.ImageSize)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	configJSON := `{
  "server": {"host": "0.0.0.0", "port": 8080, "shutdownTimeout": "5s"},
  "upload": {"backend": "s3", "s3": {"bucket": "scans", "endpoint": "http://minio:9000", "usePathStyle": true}},
  "cache": {"redisAddr": "redis:6379", "ttl": 3600},
  "log": {"level": "debug", "format": "json"}
}
`
	if err := os.WriteFile(path, []byte(configJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Address() != "0.0.0.0:8080" {
		t.Errorf("Address = %q", cfg.Address())
	}
	if cfg.URL() != "http://localhost:8080" {
		t.Errorf("URL = %q", cfg.URL())
	}
	if cfg.Server.ShutdownTimeout.Duration != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Upload.S3.Bucket != "scans" || !cfg.Upload.S3.UsePathStyle {
		t.Errorf("S3 = %+v", cfg.Upload.S3)
	}
	// Unset nested fields keep their defaults.
	if cfg.Upload.S3.TempPrefix != "tmp/" || cfg.Upload.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("defaults lost: %+v", cfg.Upload)
	}
	if !cfg.Cache.Enabled() || cfg.Cache.TTL.Duration != time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Path() != path {
		t.Errorf("Path = %q", cfg.Path())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{nope"), 0o644)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !errors.IsCategory(err, errors.CategoryConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                      "9000",
		"TUMORSCOPE_HOST":           "0.0.0.0",
		"TUMORSCOPE_UPLOAD_BACKEND": "s3",
		"TUMORSCOPE_S3_BUCKET":      "mri",
		"AWS_ACCESS_KEY_ID":         "AKIA",
		"AWS_SECRET_ACCESS_KEY":     "secret",
		"TUMORSCOPE_DEMO":           "true",
		"TUMORSCOPE_REDIS_ADDR":     "localhost:6379",
		"TUMORSCOPE_RATE_LIMIT":     "0.5",
		"TUMORSCOPE_TEMP_EXPIRY":    "2m",
		"SENTRY_DSN":                "https://key@sentry.example/1",
	}
	cfg := New()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Upload.Backend != BackendS3 || cfg.Upload.S3.Bucket != "mri" {
		t.Errorf("Upload = %+v", cfg.Upload)
	}
	if cfg.Upload.S3.AccessKeyID != "AKIA" || cfg.Upload.S3.SecretAccessKey != "secret" {
		t.Errorf("credentials not applied")
	}
	if !cfg.Inference.Demo || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Inference/Cache not applied")
	}
	if cfg.RateLimit.RequestsPerSecond != 0.5 || cfg.Upload.TempExpiry.Duration != 2*time.Minute {
		t.Errorf("RateLimit/TempExpiry not applied")
	}
	if cfg.Sentry.DSN == "" {
		t.Errorf("Sentry DSN not applied")
	}
}

func TestApplyEnvPrefixedPortWins(t *testing.T) {
	env := map[string]string{"PORT": "9000", "TUMORSCOPE_PORT": "9100"}
	cfg := New()
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
}

func TestApplyEnvInvalidValue(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "TUMORSCOPE_PORT" {
			return "eighty"
		}
		return ""
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "C001") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, ".env"), []byte("TUMORSCOPE_TEST_A=from-file\nTUMORSCOPE_TEST_B=from-file\n"), 0o644)
	t.Setenv("TUMORSCOPE_TEST_A", "from-env")
	t.Setenv("TUMORSCOPE_TEST_B", "")
	os.Unsetenv("TUMORSCOPE_TEST_B")

	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TUMORSCOPE_TEST_A"); got != "from-env" {
		t.Errorf("A = %q, want from-env", got)
	}
	if got := os.Getenv("TUMORSCOPE_TEST_B"); got != "from-file" {
		t.Errorf("B = %q, want from-file", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown backend", func(c *Config) { c.Upload.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Upload.Backend = BackendS3 }},
		{"same s3 prefixes", func(c *Config) {
			c.Upload.Backend = BackendS3
			c.Upload.S3.Bucket = "b"
			c.Upload.S3.ArchivePrefix = c.Upload.S3.TempPrefix
		}},
		{"zero max size", func(c *Config) { c.Upload.MaxFileSize = 0 }},
		{"rate without burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsCategory(err, errors.CategoryConfig) {
				t.Errorf("expected config error, got %v", err)
			}
		})
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m30s"`)); err != nil || d.Duration != 90*time.Second {
		t.Errorf("string: %v %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`2.5`)); err != nil || d.Duration != 2500*time.Millisecond {
		t.Errorf("number: %v %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Error("expected error for bad duration")
	}
	out, _ := d.MarshalJSON()
	if string(out) != `"2.5s"` {
		t.Errorf("MarshalJSON = %s", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output: %s", out)
	}
}
