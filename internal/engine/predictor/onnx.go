package predictor

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hejijunhao/vitals/internal/model"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Safe to call multiple
// times; only the first call has any effect.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNX runs an exported classifier (e.g. a scikit-learn pipeline converted
// with skl2onnx) that takes a float32 [batch, 5] input and returns one label
// per row as its first output.
type ONNX struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// NewONNX loads the model at modelPath. libPath is the ONNX Runtime shared
// library; when empty, libonnxruntime.so next to the model is used.
func NewONNX(modelPath, libPath string) (*ONNX, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	inputName, err := validateInput(inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	outputName := outputs[0].Name

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputName},
		[]string{outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &ONNX{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
	}, nil
}

// validateInput checks that the model takes a single [batch, 5] tensor.
func validateInput(inputs []ort.InputOutputInfo) (string, error) {
	if len(inputs) != 1 {
		return "", fmt.Errorf("onnx: expected 1 model input, got %d", len(inputs))
	}
	dims := inputs[0].Dimensions
	if len(dims) != 2 {
		return "", fmt.Errorf("onnx: expected 2D input tensor, got %v", dims)
	}
	if dims[1] != model.FeatureWidth && dims[1] > 0 {
		return "", fmt.Errorf("onnx: expected input width %d, got %d", model.FeatureWidth, dims[1])
	}
	return inputs[0].Name, nil
}

// Predict runs one inference call over the whole matrix.
func (o *ONNX) Predict(_ context.Context, features [][]float64) ([]string, error) {
	if len(features) == 0 {
		return []string{}, nil
	}

	flat := make([]float32, 0, len(features)*model.FeatureWidth)
	for i, row := range features {
		if len(row) != model.FeatureWidth {
			return nil, fmt.Errorf("onnx: row %d has %d features, want %d", i, len(row), model.FeatureWidth)
		}
		for _, v := range row {
			flat = append(flat, float32(v))
		}
	}

	tIn, err := ort.NewTensor(ort.NewShape(int64(len(features)), model.FeatureWidth), flat)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	o.mu.Lock()
	defer o.mu.Unlock()

	// A nil output is allocated by the runtime to match the model's dtype.
	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{tIn}, outputs); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	return labelsFrom(outputs[0])
}

// labelsFrom renders an output tensor as one label per element.
func labelsFrom(v ort.Value) ([]string, error) {
	switch t := v.(type) {
	case *ort.Tensor[int64]:
		return formatAll(t.GetData(), func(x int64) string { return strconv.FormatInt(x, 10) }), nil
	case *ort.Tensor[int32]:
		return formatAll(t.GetData(), func(x int32) string { return strconv.FormatInt(int64(x), 10) }), nil
	case *ort.Tensor[float32]:
		return formatAll(t.GetData(), func(x float32) string { return strconv.FormatFloat(float64(x), 'g', -1, 32) }), nil
	case *ort.Tensor[float64]:
		return formatAll(t.GetData(), func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }), nil
	default:
		return nil, fmt.Errorf("onnx: unsupported output value %T", v)
	}
}

func formatAll[T any](data []T, f func(T) string) []string {
	out := make([]string, len(data))
	for i, x := range data {
		out[i] = f(x)
	}
	return out
}

// Close releases the ONNX session resources.
func (o *ONNX) Close() error {
	return o.session.Destroy()
}
