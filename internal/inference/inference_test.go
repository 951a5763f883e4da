package inference

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/vango-dev/tumorscope/internal/errors"
	"github.com/vango-dev/tumorscope/pkg/classify"
)

type fakeModel struct {
	scores []float32
	err    error
	calls  int
	closed bool
}

func (m *fakeModel) Predict(ctx context.Context, input []float32) ([]float32, error) {
	m.calls++
	if len(input) != ImageSize*ImageSize*3 {
		return nil, stderrors.New("bad input length")
	}
	return m.scores, m.err
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type memCache struct {
	data   map[string][]classify.Prediction
	sets   int
	getErr error
	setErr error
}

func (c *memCache) Get(ctx context.Context, key string) ([]classify.Prediction, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.data[key]
	return p, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, preds []classify.Prediction) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = preds
	return nil
}

func fourModels() map[string]*fakeModel {
	return map[string]*fakeModel{
		"IDTNet":      {scores: []float32{0.9, 0.05, 0.03, 0.02}},
		"VGG16":       {scores: []float32{0.1, 0.2, 0.6, 0.1}},
		"DenseNet121": {scores: []float32{0.1, 0.1, 0.1, 0.7}},
		"InceptionV1": {scores: []float32{0.2, 0.45, 0.3, 0.05}},
	}
}

func totalCalls(models map[string]*fakeModel) int {
	n := 0
	for _, m := range models {
		n += m.calls
	}
	return n
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPreprocessShapeAndRange(t *testing.T) {
	img, err := DecodeImage(pngBytes(t, 300, 200))
	if err != nil {
		t.Fatal(err)
	}
	out := Preprocess(img, ImageSize)
	if len(out) != ImageSize*ImageSize*3 {
		t.Fatalf("len = %d", len(out))
	}
	// Solid red: every pixel is (1, 0, 0) in NHWC order.
	if out[0] != 1 || out[1] != 0 || out[2] != 0 {
		t.Errorf("first pixel = %v %v %v", out[0], out[1], out[2])
	}
	for i, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
}

func grayImage(w, h int, fill func(x, y int) uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := fill(x, y)
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestBilateralFilter(t *testing.T) {
	t.Run("flat image unchanged", func(t *testing.T) {
		img := grayImage(12, 10, func(x, y int) uint8 { return 90 })
		out := BilateralFilter(img, FilterDiameter, FilterSigmaColor, FilterSigmaSpace)
		for i := 0; i < len(out.Pix); i += 4 {
			if out.Pix[i] != 90 || out.Pix[i+3] != 255 {
				t.Fatalf("pixel %d = %v", i/4, out.Pix[i:i+4])
			}
		}
	})

	t.Run("keeps hard edges", func(t *testing.T) {
		img := grayImage(16, 8, func(x, y int) uint8 {
			if x < 8 {
				return 0
			}
			return 255
		})
		out := BilateralFilter(img, FilterDiameter, FilterSigmaColor, FilterSigmaSpace)
		for y := 0; y < 8; y++ {
			if got := out.NRGBAAt(7, y).R; got != 0 {
				t.Errorf("dark side at edge = %d, want 0", got)
			}
			if got := out.NRGBAAt(8, y).R; got != 255 {
				t.Errorf("bright side at edge = %d, want 255", got)
			}
		}
	})

	t.Run("smooths small noise", func(t *testing.T) {
		img := grayImage(15, 15, func(x, y int) uint8 {
			if x == 7 && y == 7 {
				return 130
			}
			return 100
		})
		out := BilateralFilter(img, FilterDiameter, FilterSigmaColor, FilterSigmaSpace)
		if got := out.NRGBAAt(7, 7).R; got > 105 {
			t.Errorf("noisy pixel = %d, want pulled toward 100", got)
		}
	})
}

func TestReflect101(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{0, 5, 0},
		{4, 5, 4},
		{-1, 5, 1},
		{-4, 5, 4},
		{5, 5, 3},
		{8, 5, 0},
	}
	for _, tt := range tests {
		if got := reflect101(tt.i, tt.n); got != tt.want {
			t.Errorf("reflect101(%d, %d) = %d, want %d", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("DICM not really")); err == nil {
		t.Error("expected decode error")
	}
}

func TestDemoPredictions(t *testing.T) {
	preds := DemoPredictions(Catalog, func(n int) int {
		if n != 441-154+1 {
			t.Errorf("intn(%d), want range size 288", n)
		}
		return n - 1
	})

	want := []struct {
		model, label, confidence, icon string
	}{
		{"IDTNet", "Glioma", "96.78", "fa-brain"},
		{"VGG16", "Glioma", "85.22", "fa-layer-group"},
		{"DenseNet121", "No Tumor", "82.29", "fa-project-diagram"},
		{"InceptionV1", "Glioma", "92.94", "fa-sitemap"},
	}
	if len(preds) != len(want) {
		t.Fatalf("got %d predictions", len(preds))
	}
	for i, w := range want {
		p := preds[i]
		if p.Model != w.model || p.Label != w.label || p.Confidence.String() != w.confidence || p.Icon != w.icon {
			t.Errorf("prediction %d = %+v", i, p)
		}
		if p.ProcessingTime != "441ms" {
			t.Errorf("processing time = %q", p.ProcessingTime)
		}
	}
}

func TestEngineFallsBackToDemoWhenAModelFails(t *testing.T) {
	first := &fakeModel{scores: []float32{1, 0, 0, 0}}
	calls := 0
	e := NewEngine(EngineConfig{
		Loader: func(spec ModelSpec) (Model, error) {
			calls++
			if calls == 2 {
				return nil, stderrors.New("missing file")
			}
			return first, nil
		},
		Intn: func(int) int { return 0 },
	})

	if !e.DemoMode() {
		t.Fatal("expected demo mode")
	}
	if !first.closed {
		t.Error("loaded model should be closed on fallback")
	}

	res, err := e.Classify(context.Background(), []byte("anything"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.DemoMode || len(res.Predictions) != 4 || res.Predictions[0].ProcessingTime != "154ms" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestEngineClassifiesWithModels(t *testing.T) {
	models := map[string]*fakeModel{
		"IDTNet":      {scores: []float32{0.9, 0.05, 0.03, 0.02}},
		"VGG16":       {scores: []float32{0.1, 0.2, 0.6, 0.1}},
		"DenseNet121": {scores: []float32{0.1, 0.1, 0.1, 0.7}},
		"InceptionV1": {scores: []float32{0.2, 0.45, 0.3, 0.05}},
	}
	cache := &memCache{data: map[string][]classify.Prediction{}}
	e := NewEngine(EngineConfig{
		Loader: func(spec ModelSpec) (Model, error) { return models[spec.Name], nil },
		Cache:  cache,
	})
	if e.DemoMode() {
		t.Fatal("unexpected demo mode")
	}

	data := pngBytes(t, 64, 64)
	res, err := e.Classify(context.Background(), data)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	wantLabels := []string{"Glioma", "No Tumor", "Pituitary", "Meningioma"}
	wantConf := []string{"90.00", "60.00", "70.00", "45.00"}
	for i, p := range res.Predictions {
		if p.Label != wantLabels[i] || p.Confidence.String() != wantConf[i] {
			t.Errorf("prediction %d = %s %s", i, p.Label, p.Confidence)
		}
	}
	if res.Predictions[1].Accuracy.Value != 92.80 {
		t.Errorf("accuracy = %v", res.Predictions[1].Accuracy.Value)
	}

	// Second call is served from cache.
	res2, err := e.Classify(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if !res2.Cached || models["IDTNet"].calls != 1 || cache.sets != 1 {
		t.Errorf("expected cached result, calls=%d sets=%d", models["IDTNet"].calls, cache.sets)
	}

	e.Close()
	for name, m := range models {
		if !m.closed {
			t.Errorf("%s not closed", name)
		}
	}
}

func TestEngineInvalidImageIsPreprocessingError(t *testing.T) {
	e := NewEngine(EngineConfig{
		Loader: func(spec ModelSpec) (Model, error) { return &fakeModel{scores: []float32{1}}, nil },
	})
	_, err := e.Classify(context.Background(), []byte("not an image"))
	if !stderrors.Is(err, errors.New("I002")) {
		t.Fatalf("err = %v, want I002", err)
	}
	if !errors.IsCategory(err, errors.CategoryInference) {
		t.Errorf("category mismatch")
	}
}

func TestEngineModelFailure(t *testing.T) {
	e := NewEngine(EngineConfig{
		Loader: func(spec ModelSpec) (Model, error) {
			return &fakeModel{err: stderrors.New("boom")}, nil
		},
	})
	_, err := e.Classify(context.Background(), pngBytes(t, 8, 8))
	if !stderrors.Is(err, errors.New("I003")) {
		t.Fatalf("err = %v, want I003", err)
	}
}

func TestCacheCodec(t *testing.T) {
	in := []classify.Prediction{{Model: "IDTNet", Confidence: classify.Percent(96.78), Accuracy: classify.Float(98.13)}}
	data, err := encodePredictions(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := decodePredictions(data)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Confidence.String() != "96.78" || out[0].Accuracy.Value != 98.13 {
		t.Errorf("round trip = %+v", out[0])
	}
	if CacheKey([]byte("a")) == CacheKey([]byte("b")) {
		t.Error("cache keys collide")
	}
}

func TestEngineCache(t *testing.T) {
	data := pngBytes(t, 16, 16)
	key := CacheKey(data)
	cached := []classify.Prediction{{Model: "IDTNet", Label: "Pituitary", Confidence: classify.Percent(77)}}

	tests := []struct {
		name       string
		cache      *memCache
		wantCached bool
		wantCalls  int
		wantSets   int
	}{
		{
			name:       "hit skips the models",
			cache:      &memCache{data: map[string][]classify.Prediction{key: cached}},
			wantCached: true,
		},
		{
			name:      "miss runs the models and stores",
			cache:     &memCache{data: map[string][]classify.Prediction{}},
			wantCalls: 4,
			wantSets:  1,
		},
		{
			name:      "lookup error falls through to inference",
			cache:     &memCache{data: map[string][]classify.Prediction{}, getErr: stderrors.New("redis down")},
			wantCalls: 4,
			wantSets:  1,
		},
		{
			name:      "store error still returns predictions",
			cache:     &memCache{data: map[string][]classify.Prediction{}, setErr: stderrors.New("read only")},
			wantCalls: 4,
			wantSets:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := fourModels()
			e := NewEngine(EngineConfig{
				Loader: func(spec ModelSpec) (Model, error) { return models[spec.Name], nil },
				Cache:  tt.cache,
			})

			res, err := e.Classify(context.Background(), data)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if res.Cached != tt.wantCached {
				t.Errorf("Cached = %v, want %v", res.Cached, tt.wantCached)
			}
			if got := totalCalls(models); got != tt.wantCalls {
				t.Errorf("model calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.cache.sets != tt.wantSets {
				t.Errorf("cache sets = %d, want %d", tt.cache.sets, tt.wantSets)
			}
			if tt.wantCached {
				if len(res.Predictions) != 1 || res.Predictions[0].Label != "Pituitary" {
					t.Errorf("predictions = %+v, want the cached ones", res.Predictions)
				}
			} else if len(res.Predictions) != 4 {
				t.Errorf("got %d predictions, want 4", len(res.Predictions))
			}
		})
	}
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cache, err := NewRedisCache(ctx, RedisOptions{Addr: mr.Addr(), TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer cache.Close()

	if preds, ok, err := cache.Get(ctx, "missing"); err != nil || ok || preds != nil {
		t.Fatalf("Get(missing) = %v, %v, %v; want a clean miss", preds, ok, err)
	}

	in := []classify.Prediction{{Model: "VGG16", Label: "Glioma", Confidence: classify.Percent(85.22), Accuracy: classify.Float(92.8)}}
	if err := cache.Set(ctx, "abc", in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if ttl := mr.TTL("tumorscope:predictions:abc"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	out, ok, err := cache.Get(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Get(abc) = %v, %v", ok, err)
	}
	if out[0].Model != "VGG16" || out[0].Confidence.String() != "85.22" {
		t.Errorf("Get(abc) = %+v", out[0])
	}

	if err := mr.Set("tumorscope:predictions:bad", "not json"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get(ctx, "bad"); err == nil || ok {
		t.Errorf("Get(bad) = %v, %v; want a decode error", ok, err)
	}
}

func TestRedisCacheEngineRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(context.Background(), RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	models := fourModels()
	e := NewEngine(EngineConfig{
		Loader: func(spec ModelSpec) (Model, error) { return models[spec.Name], nil },
		Cache:  cache,
	})
	data := pngBytes(t, 16, 16)

	first, err := e.Classify(context.Background(), data)
	if err != nil || first.Cached {
		t.Fatalf("first Classify() = %+v, %v", first, err)
	}
	second, err := e.Classify(context.Background(), data)
	if err != nil || !second.Cached {
		t.Fatalf("second Classify() = %+v, %v; want cached", second, err)
	}
	if totalCalls(models) != 4 {
		t.Errorf("model calls = %d, want 4", totalCalls(models))
	}
	for i := range first.Predictions {
		if first.Predictions[i].Confidence.String() != second.Predictions[i].Confidence.String() {
			t.Errorf("prediction %d differs after cache: %v vs %v", i, first.Predictions[i].Confidence, second.Predictions[i].Confidence)
		}
	}
}

func TestNewRedisCacheUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisCache(ctx, RedisOptions{Addr: addr}); err == nil {
		t.Error("expected a connection error")
	}
}
