package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/animal-api/internal/cache"
	"github.com/Brownie44l1/animal-api/internal/metrics"
	"github.com/Brownie44l1/animal-api/internal/model"
	"github.com/Brownie44l1/animal-api/internal/preprocess"
)

type fakePredictor struct {
	result []model.Prediction
	err    error
	calls  int
}

func (f *fakePredictor) Name() string { return "resnet34" }

func (f *fakePredictor) Labels() []string { return model.PlaceholderLabels(1000) }

func (f *fakePredictor) Predict(img image.Image, opts model.Options) ([]model.Prediction, error) {
	f.calls++
	if _, err := preprocess.Tensor(img); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func (f *fakePredictor) PredictTensor(input []float32, opts model.Options) ([]model.Prediction, error) {
	f.calls++
	if len(input) != preprocess.TensorLen {
		return nil, fmt.Errorf("%w: got %d", model.ErrInputSize, len(input))
	}
	return f.result, f.err
}

var testLimits = Limits{MaxUploadBytes: 10 << 20, MaxImagePixels: 1 << 20}

func newTestServer(t *testing.T, predictor *fakePredictor) http.Handler {
	t.Helper()
	results, err := cache.New(8)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	h := NewHandler(predictor, results, metrics.New(registry), testLimits)
	return h.Routes(zerolog.Nop(), registry)
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	return pngSized(t, 64, 48, c)
}

func pngSized(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "animal.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "resnet34", payload["model"])
	assert.Equal(t, 1000.0, payload["classes"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestPredictFromImage(t *testing.T) {
	predictor := &fakePredictor{result: []model.Prediction{{Label: "Dog", Score: 0.9}, {Label: "Canine", Score: 0.05}}}
	srv := newTestServer(t, predictor)
	data := pngBytes(t, color.RGBA{200, 150, 100, 255})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, uploadRequest(t, "image", data))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var got []model.Prediction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, predictor.result, got)
	}

	assert.Equal(t, 1, predictor.calls, "second upload should be served from cache")
}

func TestPredictFromImage_EmptyResult(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{result: []model.Prediction{}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "image", pngBytes(t, color.White)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestPredictFromImage_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name:   "not an image",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "image", []byte("definitely not a png")) },
			status: http.StatusBadRequest,
		},
		{
			name:   "wrong field",
			req:    func(t *testing.T) *http.Request { return uploadRequest(t, "file", pngBytes(t, color.Black)) },
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/predict/image", strings.NewReader("x"))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too many pixels",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "image", pngSized(t, 1, int(testLimits.MaxImagePixels)+1, color.Black))
			},
			status: http.StatusBadRequest,
		},
		{
			name: "wrong method",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/predict/image", nil)
			},
			status: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			predictor := &fakePredictor{}
			srv := newTestServer(t, predictor)

			w := httptest.NewRecorder()
			srv.ServeHTTP(w, tt.req(t))

			assert.Equal(t, tt.status, w.Code)
			assert.Zero(t, predictor.calls)
		})
	}
}

func TestPredictFromImage_InferenceError(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{err: fmt.Errorf("inference failed")})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "image", pngBytes(t, color.Black)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPredictTensor(t *testing.T) {
	predictor := &fakePredictor{result: []model.Prediction{{Label: "Cat", Score: 0.6}}}
	srv := newTestServer(t, predictor)

	body, err := json.Marshal(model.PredictionRequest{Image: make([]float32, preprocess.TensorLen)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"label":"Cat","score":0.6}]`, w.Body.String())
}

func TestPredictTensor_BadRequests(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":[1,2,3]}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "wrong size")

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/predict/image", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{result: []model.Prediction{{Label: "Bird", Score: 0.3}}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "image", pngBytes(t, color.White)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `animal_predictions_total{outcome="matched"} 1`)
	assert.Contains(t, w.Body.String(), `animal_bucket_matches_total{bucket="Bird"} 1`)
	assert.Contains(t, w.Body.String(), `animal_cache_lookups_total{result="miss"} 1`)
}

func TestPredictFromImage_UnencodableResult(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{result: []model.Prediction{{Label: "Dog", Score: math.NaN()}}})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, uploadRequest(t, "image", pngBytes(t, color.White)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientErrorsNotCountedAsPredictions(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{"image":[1,2,3]}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.NotContains(t, w.Body.String(), "animal_predictions_total{")
	assert.Contains(t, w.Body.String(), "animal_inference_duration_seconds_count 0")
}

func TestInferenceErrorCounted(t *testing.T) {
	srv := newTestServer(t, &fakePredictor{err: fmt.Errorf("inference failed")})

	body, err := json.Marshal(model.PredictionRequest{Image: make([]float32, preprocess.TensorLen)})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `animal_predictions_total{outcome="error"} 1`)
}
