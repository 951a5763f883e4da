// Package middleware provides the HTTP middleware stack used by the server.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics, which also observe the upload controller
//   - Request logging with log/slog
//   - Per-client rate limiting
//   - Panic recovery with Sentry reporting
//
// # OpenTelemetry Middleware
//
// OpenTelemetry starts a server span per request and names it after the
// chi route pattern once routing has finished:
//
//	r.Use(middleware.OpenTelemetry(
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/health"
//	    }),
//	))
//
// # Prometheus Metrics
//
// NewMetrics registers these collectors:
//   - tumorscope_http_requests_total, tumorscope_http_request_duration_seconds
//   - tumorscope_classifications_total{mode,outcome}
//   - tumorscope_submissions_total{outcome,mode}
//   - tumorscope_validation_rejections_total{code}
//   - tumorscope_active_sessions, tumorscope_patches_sent_total
//   - tumorscope_websocket_errors_total{type}
//
//	metrics := middleware.NewMetrics(middleware.WithRegistry(reg))
//	r.Use(metrics.Handler)
//
// # Rate Limiting
//
//	limiter := middleware.NewRateLimiter(2, 5)
//	r.With(limiter.Handler).Post("/classify", h)
package middleware
