// Package onnx runs a binary classifier exported to ONNX (sklearn-onnx
// convention, zipmap disabled) through ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/lucid-vigil/flowguard/pkg/classifier"
	"github.com/lucid-vigil/flowguard/pkg/features"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	labelOutput       = "label"
	probabilityOutput = "probabilities"
)

// ortEnv guards process-wide ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// Model implements classifier.Classifier and classifier.Scorer.
type Model struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	input     string
	outputs   []string
	nFeatures int

	// last inference, reused when Confidence follows Predict on the same vector
	lastInput features.Vector
	lastLabel int
	lastProbs []float32
}

var (
	_ classifier.Classifier = (*Model)(nil)
	_ classifier.Scorer     = (*Model)(nil)
)

// Load opens the model at modelPath. libPath is the ONNX Runtime shared
// library; empty means libonnxruntime.so next to the model.
func Load(modelPath, libPath string, nFeatures int) (*Model, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("onnx: model: %w", err)
	}
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
	if len(inputs) != 1 {
		return nil, fmt.Errorf("onnx: expected one input tensor, got %d", len(inputs))
	}
	if dims := inputs[0].Dimensions; len(dims) == 2 && dims[1] > 0 && int(dims[1]) != nFeatures {
		return nil, fmt.Errorf("onnx: model expects %d features, feature schema has %d", dims[1], nFeatures)
	}

	outNames := []string{labelOutput}
	for _, o := range outputs {
		if o.Name == probabilityOutput {
			outNames = append(outNames, probabilityOutput)
		}
	}
	if !hasOutput(outputs, labelOutput) {
		return nil, fmt.Errorf("onnx: model has no %q output", labelOutput)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(1)
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{inputs[0].Name}, outNames, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &Model{
		session:   session,
		input:     inputs[0].Name,
		outputs:   outNames,
		nFeatures: nFeatures,
	}, nil
}

func hasOutput(outputs []ort.InputOutputInfo, name string) bool {
	for _, o := range outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}

// Predict returns the model's label for v.
func (m *Model) Predict(_ context.Context, v features.Vector) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.infer(v); err != nil {
		return 0, err
	}
	return m.lastLabel, nil
}

// Confidence returns the highest class probability for v.
func (m *Model) Confidence(_ context.Context, v features.Vector) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.outputs) < 2 {
		return 0, fmt.Errorf("onnx: model has no %q output: %w", probabilityOutput, classifier.ErrUnavailable)
	}
	if err := m.infer(v); err != nil {
		return 0, err
	}
	if len(m.lastProbs) == 0 {
		return 0, classifier.ErrUnavailable
	}
	return float64(slices.Max(m.lastProbs)), nil
}

// infer runs the session unless v is the vector of the previous call.
func (m *Model) infer(v features.Vector) error {
	if m.lastInput != nil && slices.Equal(m.lastInput, v) {
		return nil
	}
	m.lastInput = nil
	if len(v) != m.nFeatures {
		return fmt.Errorf("onnx: got %d features, want %d", len(v), m.nFeatures)
	}

	data := make([]float32, len(v))
	for i, x := range v {
		data[i] = float32(x)
	}
	in, err := ort.NewTensor(ort.NewShape(1, int64(len(v))), data)
	if err != nil {
		return fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	// nil outputs are allocated by the runtime
	outs := make([]ort.Value, len(m.outputs))
	if err := m.session.Run([]ort.Value{in}, outs); err != nil {
		return fmt.Errorf("onnx: inference failed: %w", err)
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	labels, ok := outs[0].(*ort.Tensor[int64])
	if !ok || len(labels.GetData()) == 0 {
		return fmt.Errorf("onnx: unexpected %q output type %T", labelOutput, outs[0])
	}
	m.lastLabel = int(labels.GetData()[0])
	m.lastProbs = nil

	if len(outs) > 1 {
		probs, ok := outs[1].(*ort.Tensor[float32])
		if !ok {
			return fmt.Errorf("onnx: unexpected %q output type %T (export with zipmap disabled)", probabilityOutput, outs[1])
		}
		m.lastProbs = append([]float32(nil), probs.GetData()...)
	}

	m.lastInput = slices.Clone(v)
	return nil
}

// Close releases the session.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Destroy()
}
