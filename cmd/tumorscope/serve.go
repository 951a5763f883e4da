package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/vango-dev/tumorscope/internal/config"
	"github.com/vango-dev/tumorscope/internal/inference"
	"github.com/vango-dev/tumorscope/pkg/classify"
	"github.com/vango-dev/tumorscope/pkg/controller"
	"github.com/vango-dev/tumorscope/pkg/middleware"
	"github.com/vango-dev/tumorscope/pkg/server"
	"github.com/vango-dev/tumorscope/pkg/upload"
)

type serveOptions struct {
	dir  string
	port int
	host string
	demo bool
	dev  bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the upload page and the classification backend.

Settings are read from tumorscope.json and .env in --dir, then from
TUMORSCOPE_* environment variables. Flags override both.

If any model fails to load the server runs in demo mode and returns
simulated predictions.

Examples:
  tumorscope serve
  tumorscope serve --port=8080 --host=0.0.0.0
  tumorscope serve --demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "Directory containing tumorscope.json")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default from config)")
	cmd.Flags().StringVarP(&opts.host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Skip model loading and serve simulated predictions")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "Pretty-print HTML and disable client caching")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.dir)
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.demo {
		cfg.Inference.Demo = true
	}
	if opts.dev {
		cfg.Server.DevMode = true
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     "tumorscope@" + version,
		})
		if err != nil {
			return fmt.Errorf("sentry init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		success("Error reporting enabled")
	}

	temp, archive, err := openStores(cfg)
	if err != nil {
		return err
	}

	engine, closeEngine := newEngine(ctx, cfg, logger)
	defer closeEngine()

	if engine.DemoMode() {
		warn("Demo mode: predictions are simulated")
	} else {
		success("Loaded %d models", len(engine.Catalog()))
	}

	srv, err := server.New(serverConfig(cfg, logger), server.Deps{
		Engine:     engine,
		Temp:       temp,
		Archive:    archive,
		Classifier: newClassifier(cfg, logger),
		Metrics:    middleware.NewMetrics(),
	})
	if err != nil {
		return err
	}

	success("Listening on %s", cfg.URL())
	info("Press Ctrl+C to stop")
	return srv.Run(ctx)
}

// openStores builds the temp and archive stores for the configured backend.
func openStores(cfg *config.Config) (temp, archive upload.Store, err error) {
	maxSize := cfg.Upload.MaxFileSize

	switch cfg.Upload.Backend {
	case config.BackendS3:
		s3cfg := cfg.Upload.S3
		client := upload.NewS3Client(upload.S3Options{
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		temp = upload.NewS3Store(client, s3cfg.Bucket, s3cfg.TempPrefix, maxSize)
		archive = upload.NewS3Store(client, s3cfg.Bucket, s3cfg.ArchivePrefix, maxSize)
		return temp, archive, nil

	default:
		t, err := upload.NewDiskStore(cfg.Upload.TempDir, maxSize)
		if err != nil {
			return nil, nil, err
		}
		a, err := upload.NewDiskStore(cfg.Upload.ArchiveDir, maxSize)
		if err != nil {
			return nil, nil, err
		}
		return t, a, nil
	}
}

// newEngine loads the models, or the demo engine. A Redis cache that
// cannot be reached is logged and skipped.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*inference.Engine, func()) {
	ec := inference.EngineConfig{
		ImageSize: cfg.Inference.ImageSize,
		Logger:    logger,
	}
	if !cfg.Inference.Demo {
		ec.Loader = inference.ONNXLoader(cfg.Inference.ModelsDir, inference.ONNXOptions{
			LibraryPath: cfg.Inference.LibraryPath,
			InputName:   cfg.Inference.InputName,
			OutputName:  cfg.Inference.OutputName,
			ImageSize:   cfg.Inference.ImageSize,
			NumClasses:  len(inference.ClassLabels),
		})
	}

	var cache *inference.RedisCache
	if cfg.Cache.Enabled() && !cfg.Inference.Demo {
		c, err := inference.NewRedisCache(ctx, inference.RedisOptions{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
			TTL:      cfg.Cache.TTL.Duration,
		})
		if err != nil {
			logger.Warn("prediction cache disabled", "error", err)
		} else {
			cache = c
			ec.Cache = c
		}
	}

	engine := inference.NewEngine(ec)
	closeAll := func() {
		if err := engine.Close(); err != nil {
			logger.Warn("model close failed", "error", err)
		}
		if cache != nil {
			_ = cache.Close()
		}
	}
	return engine, closeAll
}

// newClassifier returns a client for an external classification service.
// Without one configured, sessions call the local engine directly.
func newClassifier(cfg *config.Config, logger *slog.Logger) controller.Classifier {
	if cfg.Classifier.BaseURL == "" {
		return nil
	}
	return classify.NewClient(cfg.Classifier.BaseURL,
		classify.WithTimeout(cfg.Classifier.Timeout.Duration),
		classify.WithLogger(logger),
	)
}

func serverConfig(cfg *config.Config, logger *slog.Logger) *server.ServerConfig {
	sc := server.DefaultServerConfig()
	sc.Address = cfg.Address()
	sc.Title = cfg.Server.Title
	sc.DevMode = cfg.Server.DevMode
	sc.ReadTimeout = cfg.Server.ReadTimeout.Duration
	sc.WriteTimeout = cfg.Server.WriteTimeout.Duration
	sc.ShutdownTimeout = cfg.Server.ShutdownTimeout.Duration
	sc.MaxSessions = cfg.Session.MaxSessions
	sc.MaxFileSize = cfg.Upload.MaxFileSize
	sc.TempExpiry = cfg.Upload.TempExpiry.Duration
	sc.CleanupInterval = cfg.Upload.CleanupInterval.Duration
	sc.RateLimit = cfg.RateLimit.RequestsPerSecond
	sc.RateBurst = cfg.RateLimit.Burst
	sc.Logger = logger

	if d := cfg.Session.IdleTimeout.Duration; d > 0 {
		sc.Session.IdleTimeout = d
	}
	if d := cfg.Session.HeartbeatInterval.Duration; d > 0 {
		sc.Session.HeartbeatInterval = d
		if sc.Session.ReadTimeout <= d {
			sc.Session.ReadTimeout = 2 * d
		}
	}
	if n := cfg.Session.EventQueueSize; n > 0 {
		sc.Session.MaxEventQueue = n
	}
	if d := cfg.Classifier.Timeout.Duration; d > 0 {
		sc.Session.SubmitTimeout = d
	}
	return sc
}
