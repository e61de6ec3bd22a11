package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/metrics"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
)

// AcquirerConfig - параметры ожидания отчета
type AcquirerConfig struct {
	PollInterval  time.Duration
	MaxWait       time.Duration
	MaxPollErrors int
	DateFrom      time.Time
}

// DefaultAcquirerConfig возвращает значения, с которыми работает продакшн
func DefaultAcquirerConfig() AcquirerConfig {
	return AcquirerConfig{
		PollInterval:  10 * time.Second,
		MaxWait:       30 * time.Minute,
		MaxPollErrors: 3,
		DateFrom:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ReportAcquirer получает отчет о конкурентных ценах: запрос генерации,
// опрос статуса, скачивание и разбор
type ReportAcquirer struct {
	rt  *Runtime
	api MarketAPI
	cfg AcquirerConfig
}

// NewReportAcquirer создает получателя отчета. Неположительные интервалы
// заменяются значениями по умолчанию.
func NewReportAcquirer(rt *Runtime, api MarketAPI, cfg AcquirerConfig) *ReportAcquirer {
	def := DefaultAcquirerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = def.MaxWait
	}
	if cfg.MaxPollErrors < 0 {
		cfg.MaxPollErrors = 0
	}
	return &ReportAcquirer{rt: rt, api: api, cfg: cfg}
}

// Acquire возвращает строки отчета для диапазона. Пустой отчет не является ошибкой.
// Ошибки имеют тип *utils.AcquisitionError, кроме отмены контекста.
func (a *ReportAcquirer) Acquire(ctx context.Context, rng models.Range) ([]models.ReportRow, error) {
	log := a.rt.Logger.WithRange(rng.Name)

	job, err := a.api.GenerateReport(ctx, rng.APIKey, rng.BusinessID, a.cfg.DateFrom, a.rt.Now())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(utils.NewAcquisitionError(utils.ErrGenerationRequestFailed, "", err))
	}
	log.Info("Запрошена генерация отчета",
		interfaces.LogField{Key: "report_id", Value: job.ID},
		interfaces.LogField{Key: "estimated", Value: job.EstimatedGeneration.String()},
	)

	started := a.rt.Now()
	fileURL, err := a.waitForReport(ctx, log, rng.APIKey, job.ID)
	if err != nil {
		return nil, err
	}
	metrics.ReportWait.WithLabelValues(rng.Name).Observe(a.rt.Now().Sub(started).Seconds())

	data, err := a.api.DownloadReport(ctx, rng.APIKey, fileURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(utils.NewAcquisitionError(utils.ErrDownloadFailed, job.ID, err))
	}

	rows, err := Submit(ctx, a.rt.Pool, func() ([]models.ReportRow, error) {
		return ParseReportArchive(data)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, a.fail(utils.NewAcquisitionError(utils.ErrMalformedResponse, job.ID, err))
	}

	log.Info("Отчет получен",
		interfaces.LogField{Key: "report_id", Value: job.ID},
		interfaces.LogField{Key: "rows", Value: len(rows)},
	)
	return rows, nil
}

// waitForReport опрашивает статус с фиксированным интервалом, пока задание
// не завершится или не истечет MaxWait. Первый опрос - через один интервал.
func (a *ReportAcquirer) waitForReport(ctx context.Context, log interfaces.LoggerPort, apiKey, reportID string) (string, error) {
	deadline := time.NewTimer(a.cfg.MaxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", a.fail(utils.NewAcquisitionError(utils.ErrReportTimeout, reportID,
				fmt.Errorf("отчет не готов за %s", a.cfg.MaxWait)))
		case <-ticker.C:
		}

		job, err := a.api.ReportStatus(ctx, apiKey, reportID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, utils.ErrMalformedResponse) {
				return "", a.fail(utils.NewAcquisitionError(utils.ErrMalformedResponse, reportID, err))
			}

			consecutiveErrors++
			log.Warn("Ошибка запроса статуса отчета",
				interfaces.LogField{Key: "report_id", Value: reportID},
				interfaces.LogField{Key: "attempt", Value: consecutiveErrors},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			if consecutiveErrors > a.cfg.MaxPollErrors {
				return "", a.fail(utils.NewAcquisitionError(utils.ErrReportFailed, reportID, err))
			}
			continue
		}
		consecutiveErrors = 0

		switch job.Status {
		case models.ReportDone:
			if job.FileURL == "" {
				return "", a.fail(utils.NewAcquisitionError(utils.ErrMalformedResponse, reportID,
					errors.New("статус DONE без ссылки на файл")))
			}
			return job.FileURL, nil
		case models.ReportFailed, models.ReportNoData:
			acqErr := utils.NewAcquisitionError(utils.ErrReportFailed, reportID, nil)
			acqErr.SubStatus = string(job.Status)
			if job.SubStatus != "" {
				acqErr.SubStatus += "/" + job.SubStatus
			}
			return "", a.fail(acqErr)
		default:
			log.Debug("Отчет еще генерируется",
				interfaces.LogField{Key: "report_id", Value: reportID},
				interfaces.LogField{Key: "status", Value: string(job.Status)},
			)
		}
	}
}

func (a *ReportAcquirer) fail(err *utils.AcquisitionError) error {
	metrics.AcquisitionErrors.WithLabelValues(kindLabel(err.Kind)).Inc()
	return err
}

func kindLabel(kind error) string {
	switch {
	case errors.Is(kind, utils.ErrGenerationRequestFailed):
		return "generation_request_failed"
	case errors.Is(kind, utils.ErrReportFailed):
		return "report_failed"
	case errors.Is(kind, utils.ErrReportTimeout):
		return "timeout"
	case errors.Is(kind, utils.ErrDownloadFailed):
		return "download_failed"
	default:
		return "malformed_response"
	}
}
