package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/go-chi/render"
)

// ReadinessHandler проверяет доступность хранилища истории
type ReadinessHandler struct {
	storage interfaces.StoragePort // nil - история не ведется, проверять нечего
	logger  interfaces.LoggerPort
}

func NewReadinessHandler(storage interfaces.StoragePort, logger interfaces.LoggerPort) *ReadinessHandler {
	return &ReadinessHandler{storage: storage, logger: logger}
}

func (h *ReadinessHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		render.JSON(w, r, response{Success: true, Data: map[string]string{"storage": "disabled"}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.WarnWithContext(r.Context(), "Хранилище недоступно",
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, http.StatusServiceUnavailable, "Storage unavailable", err.Error())
		return
	}

	render.JSON(w, r, response{Success: true, Data: map[string]string{"storage": "ok"}})
}
