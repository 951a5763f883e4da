package inference

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Model scores a preprocessed image.
type Model interface {
	// Predict returns one score per class label.
	Predict(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// Loader opens the model for a catalog entry.
type Loader func(spec ModelSpec) (Model, error)

var (
	runtimeMu   sync.Mutex
	runtimeRefs int
)

// acquireRuntime initializes the ONNX environment on first use.
func acquireRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	runtimeRefs++
	return nil
}

func releaseRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	runtimeRefs--
	if runtimeRefs == 0 {
		ort.DestroyEnvironment()
	}
}

// ONNXOptions configures ONNX models.
type ONNXOptions struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default.
	LibraryPath string
	InputName   string
	OutputName  string
	ImageSize   int
	NumClasses  int
}

func (o *ONNXOptions) setDefaults() {
	if o.InputName == "" {
		o.InputName = "input"
	}
	if o.OutputName == "" {
		o.OutputName = "output"
	}
	if o.ImageSize <= 0 {
		o.ImageSize = ImageSize
	}
	if o.NumClasses <= 0 {
		o.NumClasses = len(ClassLabels)
	}
}

// ONNXModel runs one ONNX graph. The session reuses fixed input and output
// tensors, so Predict calls are serialized.
type ONNXModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXModel loads the graph at path.
func NewONNXModel(path string, opts ONNXOptions) (*ONNXModel, error) {
	opts.setDefaults()

	if err := acquireRuntime(opts.LibraryPath); err != nil {
		return nil, err
	}

	size := int64(opts.ImageSize)
	inputShape := ort.NewShape(1, size, size, 3)
	outputShape := ort.NewShape(1, int64(opts.NumClasses))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		releaseRuntime()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		releaseRuntime()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", path, err)
	}

	return &ONNXModel{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// ONNXLoader returns a Loader reading spec.Filename from dir.
func ONNXLoader(dir string, opts ONNXOptions) Loader {
	return func(spec ModelSpec) (Model, error) {
		return NewONNXModel(filepath.Join(dir, spec.Filename), opts)
	}
}

// Predict copies input into the session tensor and runs the graph.
func (m *ONNXModel) Predict(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.inputTensor.GetData()
	if len(input) != len(data) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(data), len(input))
	}
	copy(data, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := m.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// Close destroys the session and its tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	m.inputTensor.Destroy()
	m.outputTensor.Destroy()
	err := m.session.Destroy()
	m.session = nil
	releaseRuntime()
	return err
}

// argmax returns the index and value of the highest score.
func argmax(scores []float32) (int, float32) {
	maxIdx := 0
	maxVal := scores[0]
	for i, v := range scores {
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}
	return maxIdx, maxVal
}
