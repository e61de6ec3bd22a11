package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики для Prometheus
var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_cycles_total",
		Help: "Количество циклов переоценки по итоговому статусу",
	}, []string{"status"})

	RangesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_ranges_processed_total",
		Help: "Количество обработанных диапазонов",
	}, []string{"range", "status"})

	RangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repricer_range_duration_seconds",
		Help:    "Длительность обработки диапазона",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
	}, []string{"range"})

	ReportWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "repricer_report_wait_seconds",
		Help:    "Время ожидания генерации отчета",
		Buckets: []float64{10, 20, 30, 60, 120, 300, 600, 1800},
	}, []string{"range"})

	AcquisitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_report_acquisition_errors_total",
		Help: "Ошибки получения отчета по видам",
	}, []string{"kind"})

	PriceDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_price_decisions_total",
		Help: "Решения политики переоценки по строкам",
	}, []string{"range", "decision"})

	PriceUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_price_updates_total",
		Help: "Отправленные обновления цен по исходу",
	}, []string{"range", "outcome"})

	DataValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repricer_data_validation_errors_total",
		Help: "Нечисловые значения в числовых колонках прайс-листа",
	}, []string{"column"})

	PoolBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "repricer_pool_busy_workers",
		Help: "Занятые слоты пула обработки",
	})
)
