package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-dev/tumorscope/internal/errors"
)

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.New("C002").WithDetail("Failed to read " + path).Wrap(err)
	}
	return nil
}

type envSetter func(c *Config, v string) error

func setString(dst func(c *Config) *string) envSetter {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func setInt(dst func(c *Config) *int) envSetter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func setBool(dst func(c *Config) *bool) envSetter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

func setDuration(dst func(c *Config) *Duration) envSetter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		dst(c).Duration = d
		return nil
	}
}

// envOverrides maps environment variables to config fields, applied in
// order so later entries win.
var envOverrides = []struct {
	key string
	set envSetter
}{
	{"PORT", setInt(func(c *Config) *int { return &c.Server.Port })},
	{EnvPrefix + "HOST", setString(func(c *Config) *string { return &c.Server.Host })},
	{EnvPrefix + "PORT", setInt(func(c *Config) *int { return &c.Server.Port })},
	{EnvPrefix + "DEV", setBool(func(c *Config) *bool { return &c.Server.DevMode })},
	{EnvPrefix + "SHUTDOWN_TIMEOUT", setDuration(func(c *Config) *Duration { return &c.Server.ShutdownTimeout })},

	{EnvPrefix + "MAX_SESSIONS", setInt(func(c *Config) *int { return &c.Session.MaxSessions })},
	{EnvPrefix + "SESSION_IDLE_TIMEOUT", setDuration(func(c *Config) *Duration { return &c.Session.IdleTimeout })},

	{EnvPrefix + "UPLOAD_BACKEND", setString(func(c *Config) *string { return &c.Upload.Backend })},
	{EnvPrefix + "TEMP_DIR", setString(func(c *Config) *string { return &c.Upload.TempDir })},
	{EnvPrefix + "ARCHIVE_DIR", setString(func(c *Config) *string { return &c.Upload.ArchiveDir })},
	{EnvPrefix + "TEMP_EXPIRY", setDuration(func(c *Config) *Duration { return &c.Upload.TempExpiry })},
	{EnvPrefix + "S3_BUCKET", setString(func(c *Config) *string { return &c.Upload.S3.Bucket })},
	{"AWS_REGION", setString(func(c *Config) *string { return &c.Upload.S3.Region })},
	{EnvPrefix + "S3_REGION", setString(func(c *Config) *string { return &c.Upload.S3.Region })},
	{EnvPrefix + "S3_ENDPOINT", setString(func(c *Config) *string { return &c.Upload.S3.Endpoint })},
	{EnvPrefix + "S3_PATH_STYLE", setBool(func(c *Config) *bool { return &c.Upload.S3.UsePathStyle })},
	{"AWS_ACCESS_KEY_ID", setString(func(c *Config) *string { return &c.Upload.S3.AccessKeyID })},
	{"AWS_SECRET_ACCESS_KEY", setString(func(c *Config) *string { return &c.Upload.S3.SecretAccessKey })},

	{EnvPrefix + "MODELS_DIR", setString(func(c *Config) *string { return &c.Inference.ModelsDir })},
	{"ONNXRUNTIME_LIB", setString(func(c *Config) *string { return &c.Inference.LibraryPath })},
	{EnvPrefix + "ONNXRUNTIME_LIB", setString(func(c *Config) *string { return &c.Inference.LibraryPath })},
	{EnvPrefix + "DEMO", setBool(func(c *Config) *bool { return &c.Inference.Demo })},

	{EnvPrefix + "CLASSIFIER_URL", setString(func(c *Config) *string { return &c.Classifier.BaseURL })},
	{EnvPrefix + "CLASSIFIER_TIMEOUT", setDuration(func(c *Config) *Duration { return &c.Classifier.Timeout })},

	{EnvPrefix + "REDIS_ADDR", setString(func(c *Config) *string { return &c.Cache.RedisAddr })},
	{EnvPrefix + "REDIS_PASSWORD", setString(func(c *Config) *string { return &c.Cache.RedisPassword })},
	{EnvPrefix + "REDIS_DB", setInt(func(c *Config) *int { return &c.Cache.RedisDB })},

	{EnvPrefix + "RATE_BURST", setInt(func(c *Config) *int { return &c.RateLimit.Burst })},

	{"SENTRY_DSN", setString(func(c *Config) *string { return &c.Sentry.DSN })},
	{EnvPrefix + "SENTRY_DSN", setString(func(c *Config) *string { return &c.Sentry.DSN })},
	{EnvPrefix + "ENV", setString(func(c *Config) *string { return &c.Sentry.Environment })},

	{EnvPrefix + "LOG_LEVEL", setString(func(c *Config) *string { return &c.Log.Level })},
	{EnvPrefix + "LOG_FORMAT", setString(func(c *Config) *string { return &c.Log.Format })},
}

// ApplyEnv overrides fields from the environment. getenv is usually
// os.Getenv; empty values are skipped.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	for _, o := range envOverrides {
		v := getenv(o.key)
		if v == "" {
			continue
		}
		if err := o.set(c, v); err != nil {
			return errors.New("C001").
				WithDetail(fmt.Sprintf("%s=%q: %v", o.key, v, err))
		}
	}

	if v := getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("C001").
				WithDetail(fmt.Sprintf("%sRATE_LIMIT=%q: %v", EnvPrefix, v, err))
		}
		c.RateLimit.RequestsPerSecond = rps
	}
	return nil
}
