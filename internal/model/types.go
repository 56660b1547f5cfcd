package model

import "errors"

var (
	ErrInputSize      = errors.New("input tensor has wrong size")
	ErrNonFiniteLogit = errors.New("model produced a non-finite logit")
)

// Metadata is the JSON file shipped next to the ONNX model.
type Metadata struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`
}

// Options is accepted by Predict and Configure. No option is recognised yet.
type Options map[string]any

type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}
