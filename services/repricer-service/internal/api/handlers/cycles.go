package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/pkg/utils"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/services"
	serviceutils "github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// HistoryReader - чтение истории циклов
type HistoryReader interface {
	ListCycles(ctx context.Context, p *utils.Pagination) ([]models.CycleRun, error)
	GetCycle(ctx context.Context, id uuid.UUID) (*models.CycleRun, error)
}

// CycleHandler обработчик запросов истории переоценки
type CycleHandler struct {
	history HistoryReader        // может быть nil, если история не ведется
	cache   interfaces.CachePort // может быть nil
	logger  interfaces.LoggerPort
}

func NewCycleHandler(history HistoryReader, cache interfaces.CachePort, logger interfaces.LoggerPort) *CycleHandler {
	return &CycleHandler{
		history: history,
		cache:   cache,
		logger:  logger,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func renderError(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: kind, Code: code, Message: message})
}

// ListCycles возвращает страницу истории циклов
func (h *CycleHandler) ListCycles(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		renderError(w, r, http.StatusServiceUnavailable, "unavailable", "История циклов не ведется")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	sortBy := r.URL.Query().Get("sort_by")
	sortDesc := r.URL.Query().Get("sort_desc") != "false"
	pagination := utils.NewPagination(page, pageSize, sortBy, sortDesc)

	cycles, err := h.history.ListCycles(r.Context(), pagination)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения истории циклов",
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, http.StatusInternalServerError, "internal_error", "Ошибка получения истории циклов")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    cycles,
		Meta:    pagination,
	})
}

// GetCycle возвращает цикл с прогонами диапазонов
func (h *CycleHandler) GetCycle(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		renderError(w, r, http.StatusServiceUnavailable, "unavailable", "История циклов не ведется")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "bad_request", "Некорректный ID цикла")
		return
	}

	cycle, err := h.history.GetCycle(r.Context(), id)
	if errors.Is(err, serviceutils.ErrNotFound) {
		renderError(w, r, http.StatusNotFound, "not_found", "Цикл не найден")
		return
	}
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка получения цикла",
			interfaces.LogField{Key: "cycle_id", Value: id.String()},
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, http.StatusInternalServerError, "internal_error", "Ошибка получения цикла")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: cycle})
}

// LastRangeRun возвращает сводку последнего прогона диапазона из кэша
func (h *CycleHandler) LastRangeRun(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		renderError(w, r, http.StatusServiceUnavailable, "unavailable", "Кэш сводок не настроен")
		return
	}

	name := chi.URLParam(r, "name")
	raw, err := h.cache.Get(r.Context(), services.RangeSummaryKey(name))
	if errors.Is(err, interfaces.ErrCacheMiss) {
		renderError(w, r, http.StatusNotFound, "not_found", "Диапазон еще не обрабатывался")
		return
	}
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка чтения сводки диапазона",
			interfaces.LogField{Key: "range", Value: name},
			interfaces.LogField{Key: "error", Value: err.Error()})
		renderError(w, r, http.StatusInternalServerError, "internal_error", "Ошибка чтения сводки диапазона")
		return
	}

	var run models.RangeRun
	if err := json.Unmarshal(raw, &run); err != nil {
		renderError(w, r, http.StatusInternalServerError, "internal_error", "Поврежденная сводка диапазона")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{Success: true, Data: run})
}
