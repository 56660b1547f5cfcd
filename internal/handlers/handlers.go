package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Brownie44l1/animal-api/internal/cache"
	"github.com/Brownie44l1/animal-api/internal/metrics"
	"github.com/Brownie44l1/animal-api/internal/model"
	"github.com/Brownie44l1/animal-api/internal/preprocess"
)

// Predictor is the part of *model.Classifier the handlers need.
type Predictor interface {
	Name() string
	Labels() []string
	Predict(img image.Image, opts model.Options) ([]model.Prediction, error)
	PredictTensor(input []float32, opts model.Options) ([]model.Prediction, error)
}

// Limits bound what a single request may make the server decode.
type Limits struct {
	MaxUploadBytes int64
	MaxImagePixels int64
}

type Handler struct {
	predictor Predictor
	cache     *cache.Results
	metrics   *metrics.Metrics
	limits    Limits
}

// NewHandler wires the predictor with an optional cache and metrics; both may be nil.
func NewHandler(predictor Predictor, results *cache.Results, m *metrics.Metrics, limits Limits) *Handler {
	return &Handler{
		predictor: predictor,
		cache:     results,
		metrics:   m,
		limits:    limits,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"model":   h.predictor.Name(),
		"classes": len(h.predictor.Labels()),
	})
}

// Predict takes an already-normalized 3x224x224 tensor as JSON.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result, err := h.predictor.PredictTensor(req.Image, nil)
	if errors.Is(err, model.ErrInputSize) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.metrics.ObservePrediction(result, err, time.Since(start))
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Prediction error")
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := zerolog.Ctx(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.limits.MaxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	logger.Debug().Str("file", header.Filename).Int64("size", header.Size).Msg("Received file")

	key := cache.KeyOf(data)
	if result, ok := h.cache.Get(key); ok {
		h.metrics.ObserveCache(true)
		writeJSON(w, r, http.StatusOK, result)
		return
	}
	if h.cache != nil {
		h.metrics.ObserveCache(false)
	}

	imgConfig, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, GIF", http.StatusBadRequest)
		return
	}
	if pixels := int64(imgConfig.Width) * int64(imgConfig.Height); pixels > h.limits.MaxImagePixels {
		http.Error(w, fmt.Sprintf("Image too large: %dx%d exceeds %d pixels",
			imgConfig.Width, imgConfig.Height, h.limits.MaxImagePixels), http.StatusBadRequest)
		return
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, GIF", http.StatusBadRequest)
		return
	}

	logger.Debug().Str("format", format).
		Str("dimensions", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy())).
		Msg("Decoded image")

	start := time.Now()
	result, err := h.predictor.Predict(img, nil)
	if errors.Is(err, preprocess.ErrEmptyImage) {
		http.Error(w, "Image is empty", http.StatusBadRequest)
		return
	}
	h.metrics.ObservePrediction(result, err, time.Since(start))
	if err != nil {
		logger.Error().Err(err).Msg("Prediction error")
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}

	h.cache.Add(key, result)
	writeJSON(w, r, http.StatusOK, result)
}

// writeJSON encodes before writing the header so an encoding failure
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response")
	}
}
