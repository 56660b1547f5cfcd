package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Brownie44l1/animal-api/internal/preprocess"
	ort "github.com/yalue/onnxruntime_go"
)

// Session runs one forward pass over a preprocessed 1x3x224x224 tensor
// and returns the logit vector.
type Session interface {
	Run(input []float32) ([]float32, error)
	NumClasses() int
	Close()
}

// ONNXSession keeps its input and output tensors allocated between runs,
// so Run holds a lock for the duration of inference.
type ONNXSession struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	numClasses   int
}

func NewONNXSession(modelPath, libraryPath string) (*ONNXSession, error) {
	if !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected one input and one output, got %d and %d", len(inputs), len(outputs))
	}

	if err := checkInputShape(inputs[0].Dimensions); err != nil {
		return nil, fmt.Errorf("input %q: %w", inputs[0].Name, err)
	}

	outDims := outputs[0].Dimensions
	if len(outDims) == 0 || outDims[len(outDims)-1] <= 0 {
		return nil, errors.New("model output has no fixed class dimension")
	}
	numClasses := outDims[len(outDims)-1]

	inputShape := ort.NewShape(1, preprocess.Channels, preprocess.Size, preprocess.Size)
	outputShape := ort.NewShape(1, numClasses)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXSession{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		numClasses:   int(numClasses),
	}, nil
}

// checkInputShape accepts NCHW inputs of 1x3x224x224. Dynamic (non-positive)
// dimensions are allowed since the session binds a fixed tensor.
func checkInputShape(dims []int64) error {
	want := []int64{1, preprocess.Channels, preprocess.Size, preprocess.Size}
	if len(dims) != len(want) {
		return fmt.Errorf("expected %d dimensions %v, model has %v", len(want), want, dims)
	}
	for i, d := range dims {
		if d > 0 && d != want[i] {
			return fmt.Errorf("expected shape %v, model has %v", want, dims)
		}
	}
	return nil
}

func (s *ONNXSession) NumClasses() int {
	return s.numClasses
}

func (s *ONNXSession) Run(input []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := make([]float32, s.numClasses)
	copy(logits, s.outputTensor.GetData())
	return logits, nil
}

func (s *ONNXSession) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
