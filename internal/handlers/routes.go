package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Routes builds the server mux. gatherer backs /metrics; pass nil to omit it.
func (h *Handler) Routes(logger zerolog.Logger, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/predict", h.Predict)
	mux.HandleFunc("/predict/image", h.PredictFromImage)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return AccessLog(logger)(EnableCORS(mux))
}
