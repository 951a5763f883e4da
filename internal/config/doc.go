// Package config provides configuration loading for tumorscope.
//
// Settings are layered, later layers winning:
//
//  1. Built-in defaults (New).
//  2. tumorscope.json in the working directory, if present.
//  3. A .env file next to it, loaded into the process environment with
//     godotenv. Variables already set are not overwritten.
//  4. Environment variables (TUMORSCOPE_*, plus PORT, SENTRY_DSN and the
//     AWS credential variables).
//
// # Configuration File Structure
//
//	{
//	  "server":     {"host": "0.0.0.0", "port": 5000, "shutdownTimeout": "15s"},
//	  "session":    {"maxSessions": 1000, "idleTimeout": "10m"},
//	  "upload":     {"backend": "disk", "tempDir": "data/tmp", "archiveDir": "static/uploads"},
//	  "inference":  {"modelsDir": "models", "libraryPath": "/usr/lib/libonnxruntime.so"},
//	  "classifier": {"baseURL": ""},
//	  "cache":      {"redisAddr": "localhost:6379", "ttl": "24h"},
//	  "rateLimit":  {"requestsPerSecond": 2, "burst": 5},
//	  "sentry":     {"dsn": ""},
//	  "log":        {"level": "info", "format": "text"}
//	}
//
// Durations are Go duration strings.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	logger := cfg.Log.NewLogger(os.Stderr)
package config
