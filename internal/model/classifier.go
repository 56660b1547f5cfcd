package model

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/Brownie44l1/animal-api/internal/preprocess"
	"github.com/rs/zerolog"
)

const DefaultModelName = "resnet34"

type LoadConfig struct {
	ModelName   string
	ModelDir    string
	LibraryPath string
	Logger      zerolog.Logger
}

// Classifier maps ImageNet predictions onto animal Buckets. The session and
// labels are fixed at load time; Predict keeps no state between calls.
type Classifier struct {
	name    string
	session Session
	labels  []string
}

// Load opens <ModelDir>/<ModelName>.onnx and reads class names from the
// matching .json file. Missing or mismatched labels fall back to placeholders.
func Load(cfg LoadConfig) (*Classifier, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}

	modelPath := filepath.Join(cfg.ModelDir, cfg.ModelName+".onnx")
	metadataPath := filepath.Join(cfg.ModelDir, cfg.ModelName+".json")

	cfg.Logger.Info().Str("model", cfg.ModelName).Str("path", modelPath).Msg("Loading model")

	session, err := NewONNXSession(modelPath, cfg.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.ModelName, err)
	}

	labels, fellBack, err := ResolveLabels(metadataPath, session.NumClasses())
	if fellBack {
		cfg.Logger.Warn().Err(err).Str("metadata", metadataPath).Msg("Using placeholder class labels")
	}

	cfg.Logger.Info().Int("classes", session.NumClasses()).Msg("Model loaded")

	return New(cfg.ModelName, session, labels), nil
}

func New(name string, session Session, labels []string) *Classifier {
	return &Classifier{
		name:    name,
		session: session,
		labels:  labels,
	}
}

func (c *Classifier) Name() string {
	return c.name
}

func (c *Classifier) Labels() []string {
	return c.labels
}

func (c *Classifier) Predict(img image.Image, opts Options) ([]Prediction, error) {
	input, err := preprocess.Tensor(img)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return c.PredictTensor(input, opts)
}

// PredictTensor skips preprocessing; input must already be a normalized CHW tensor.
func (c *Classifier) PredictTensor(input []float32, opts Options) ([]Prediction, error) {
	if len(input) != preprocess.TensorLen {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrInputSize, preprocess.TensorLen, len(input))
	}

	logits, err := c.session.Run(input)
	if err != nil {
		return nil, err
	}
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: class %d is %v", ErrNonFiniteLogit, i, v)
		}
	}

	return Classify(c.labels, logits), nil
}

// Configure accepts and ignores options.
func (c *Classifier) Configure(opts Options) {}

func (c *Classifier) Close() {
	if c.session != nil {
		c.session.Close()
	}
}
