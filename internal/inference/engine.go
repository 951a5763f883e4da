package inference

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/classify"
)

// Result is the outcome of one classification.
type Result struct {
	Predictions []classify.Prediction
	DemoMode    bool
	Cached      bool
}

// EngineConfig configures NewEngine.
type EngineConfig struct {
	// Catalog defaults to the package Catalog.
	Catalog []ModelSpec

	// Loader opens each model. Nil means demo mode.
	Loader Loader

	// ImageSize defaults to 128.
	ImageSize int

	// Cache is optional.
	Cache Cache

	Logger *slog.Logger

	// Intn draws demo processing times. Defaults to a seeded math/rand.
	Intn func(n int) int
}

// Engine classifies images with every catalog model.
type Engine struct {
	catalog   []ModelSpec
	models    []Model
	demo      bool
	imageSize int
	cache     Cache
	intn      func(n int) int
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewEngine loads every model. If any model fails to load, already loaded
// models are closed and the engine runs in demo mode; that is not an error.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{
		catalog:   cfg.Catalog,
		imageSize: cfg.ImageSize,
		cache:     cfg.Cache,
		intn:      cfg.Intn,
		logger:    cfg.Logger,
		tracer:    otel.Tracer("tumorscope/inference"),
	}
	if e.catalog == nil {
		e.catalog = Catalog
	}
	if e.imageSize <= 0 {
		e.imageSize = ImageSize
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "inference")
	if e.intn == nil {
		var mu sync.Mutex
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		e.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return rng.Intn(n)
		}
	}

	if cfg.Loader == nil {
		e.demo = true
		e.logger.Warn("no model loader configured, using demo mode")
		return e
	}

	for _, spec := range e.catalog {
		m, err := cfg.Loader(spec)
		if err != nil {
			loadErr := errors.New("I001").Wrap(fmt.Errorf("%s: %w", spec.Name, err))
			e.logger.Warn("model loading failed, using demo mode", "model", spec.Name, "error", loadErr)
			e.closeModels()
			e.demo = true
			return e
		}
		e.models = append(e.models, m)
	}

	e.logger.Info("models loaded", "count", len(e.models))
	return e
}

// DemoMode reports whether predictions are simulated.
func (e *Engine) DemoMode() bool { return e.demo }

// Catalog returns the model catalog in prediction order.
func (e *Engine) Catalog() []ModelSpec { return e.catalog }

// Classify runs every model on the image bytes. Decode and inference
// failures are returned as inference errors (I002, I003).
func (e *Engine) Classify(ctx context.Context, data []byte) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "inference.classify",
		trace.WithAttributes(
			attribute.Int("image.size", len(data)),
			attribute.Bool("inference.demo_mode", e.demo),
		),
	)
	defer span.End()

	if e.demo {
		return &Result{Predictions: DemoPredictions(e.catalog, e.intn), DemoMode: true}, nil
	}

	var key string
	if e.cache != nil {
		key = CacheKey(data)
		preds, ok, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.Warn("cache lookup failed", "error", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("inference.cached", true))
			return &Result{Predictions: preds, Cached: true}, nil
		}
	}

	img, err := DecodeImage(data)
	if err != nil {
		appErr := errors.New("I002").Wrap(err)
		span.RecordError(appErr)
		span.SetStatus(codes.Error, appErr.Error())
		return nil, appErr
	}
	input := Preprocess(img, e.imageSize)

	preds := make([]classify.Prediction, 0, len(e.models))
	for i, m := range e.models {
		pred, err := e.predict(ctx, e.catalog[i], m, input)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		preds = append(preds, pred)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, preds); err != nil {
			e.logger.Warn("cache store failed", "error", err)
		}
	}

	return &Result{Predictions: preds}, nil
}

func (e *Engine) predict(ctx context.Context, spec ModelSpec, m Model, input []float32) (classify.Prediction, error) {
	ctx, span := e.tracer.Start(ctx, "inference.model",
		trace.WithAttributes(attribute.String("model.name", spec.Name)),
	)
	defer span.End()

	start := time.Now()
	scores, err := m.Predict(ctx, input)
	elapsed := time.Since(start)
	if err != nil {
		return classify.Prediction{}, errors.New("I003").Wrap(fmt.Errorf("%s: %w", spec.Name, err))
	}
	if len(scores) == 0 {
		return classify.Prediction{}, errors.New("I003").Wrap(fmt.Errorf("%s: empty output", spec.Name))
	}

	idx, score := argmax(scores)
	label := fmt.Sprintf("Class %d", idx)
	if idx < len(ClassLabels) {
		label = ClassLabels[idx]
	}

	span.SetAttributes(
		attribute.String("model.prediction", label),
		attribute.Float64("model.confidence", float64(score)*100),
	)
	return prediction(spec, label, float64(score)*100, int(elapsed.Milliseconds())), nil
}

// Close releases every loaded model.
func (e *Engine) Close() error {
	return e.closeModels()
}

func (e *Engine) closeModels() error {
	var first error
	for _, m := range e.models {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	e.models = nil
	return first
}
