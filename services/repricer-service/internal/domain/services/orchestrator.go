package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/messaging"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/metrics"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/google/uuid"
)

const cycleLockKey = "cycle"

// RangeSummaryKey - ключ кэша со сводкой последнего прогона диапазона
func RangeSummaryKey(rangeName string) string {
	return "range:" + rangeName + ":last"
}

// OrchestratorConfig - параметры цикла переоценки
type OrchestratorConfig struct {
	CycleInterval time.Duration
	RangePause    time.Duration
	Debug         bool
	LockTTL       time.Duration
	SummaryTTL    time.Duration
	EventsTopic   string
	Acquirer      AcquirerConfig
	Dispatcher    DispatcherConfig
}

// OrchestratorDeps - внешние зависимости. History, Cache, Events и Snapshots могут быть nil
type OrchestratorDeps struct {
	Listings  ListingRepository
	Market    MarketFactory
	Policy    *RepricingPolicy
	History   HistoryRecorder
	Cache     interfaces.CachePort
	Events    interfaces.MessagingPort
	Snapshots Snapshotter
}

// Orchestrator последовательно обрабатывает диапазоны и повторяет цикл по расписанию
type Orchestrator struct {
	rt         *Runtime
	ranges     []models.Range
	deps       OrchestratorDeps
	cfg        OrchestratorConfig
	reconciler *Reconciler
	dispatcher *UpdateDispatcher
}

func NewOrchestrator(rt *Runtime, ranges []models.Range, deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	cfg.Dispatcher.Debug = cfg.Debug
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 25 * time.Minute
	}
	return &Orchestrator{
		rt:         rt,
		ranges:     ranges,
		deps:       deps,
		cfg:        cfg,
		reconciler: NewReconciler(rt),
		dispatcher: NewUpdateDispatcher(rt, cfg.Dispatcher),
	}
}

// Run выполняет цикл сразу и затем через CycleInterval после окончания предыдущего,
// пока не отменен контекст. Ошибки цикла логируются и не останавливают работу.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.rt.Logger.Info("Запущен цикл переоценки",
		interfaces.LogField{Key: "ranges", Value: len(o.ranges)},
		interfaces.LogField{Key: "interval", Value: o.cfg.CycleInterval.String()},
		interfaces.LogField{Key: "debug", Value: o.cfg.Debug},
	)

	for {
		if _, err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
			o.rt.Logger.Error("Цикл переоценки завершился с ошибкой",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		if err := sleep(ctx, o.cfg.CycleInterval); err != nil {
			o.rt.Logger.Info("Цикл переоценки остановлен")
			return err
		}
	}
}

// RunCycle обрабатывает все диапазоны по порядку с паузой между ними.
// Ошибка диапазона логируется и не прерывает цикл.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.CycleRun, error) {
	cycle := &models.CycleRun{ID: uuid.New(), StartedAt: o.rt.Now(), Status: models.RunRunning}
	log := o.rt.Logger.WithCycleID(cycle.ID.String())

	if o.deps.Cache != nil {
		acquired, err := o.deps.Cache.Lock(ctx, cycleLockKey, o.cfg.LockTTL)
		if err != nil {
			err = fmt.Errorf("%w: блокировка цикла: %w", utils.ErrCycleFailure, err)
			o.finishCycle(ctx, log, cycle, err)
			return cycle, err
		}
		if !acquired {
			log.Info("Цикл уже выполняется другим экземпляром, пропускаем")
			now := o.rt.Now()
			cycle.FinishedAt = &now
			cycle.Status = models.RunSkipped
			metrics.CyclesTotal.WithLabelValues(string(cycle.Status)).Inc()
			return cycle, nil
		}
		defer func() {
			if err := o.deps.Cache.Unlock(context.WithoutCancel(ctx), cycleLockKey); err != nil {
				log.Warn("Не удалось снять блокировку цикла",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	log.Info("Начат цикл переоценки")
	o.saveCycle(ctx, log, cycle)

	failed := 0
	for i, rng := range o.ranges {
		if i > 0 {
			if err := sleep(ctx, o.cfg.RangePause); err != nil {
				err = fmt.Errorf("%w: %w", utils.ErrCycleFailure, err)
				o.finishCycle(ctx, log, cycle, err)
				return cycle, err
			}
		}

		run, err := o.ProcessRange(ctx, cycle.ID, rng)
		cycle.Ranges = append(cycle.Ranges, *run)
		if err != nil {
			failed++
			log.Error("Диапазон пропущен из-за ошибки",
				interfaces.LogField{Key: "range", Value: rng.Name},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", utils.ErrCycleFailure, ctx.Err())
				o.finishCycle(ctx, log, cycle, err)
				return cycle, err
			}
		}
	}

	o.finishCycle(ctx, log, cycle, nil)
	log.Info("Цикл переоценки завершен",
		interfaces.LogField{Key: "ranges", Value: len(o.ranges)},
		interfaces.LogField{Key: "failed", Value: failed},
	)
	return cycle, nil
}

func (o *Orchestrator) finishCycle(ctx context.Context, log interfaces.LoggerPort, cycle *models.CycleRun, err error) {
	now := o.rt.Now()
	cycle.FinishedAt = &now
	cycle.Status = models.RunSucceeded
	if err != nil {
		cycle.Status = models.RunFailed
		cycle.Error = err.Error()
	}
	metrics.CyclesTotal.WithLabelValues(string(cycle.Status)).Inc()
	o.saveCycle(ctx, log, cycle)
}

func (o *Orchestrator) saveCycle(ctx context.Context, log interfaces.LoggerPort, cycle *models.CycleRun) {
	if o.deps.History == nil {
		return
	}
	if err := o.deps.History.SaveCycle(context.WithoutCancel(ctx), cycle); err != nil {
		log.Warn("Не удалось сохранить историю цикла",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

// ProcessRange выполняет полный проход по одному диапазону. Любая ошибка этапа
// возвращается как ErrRangeFailure; запись о прогоне возвращается всегда.
func (o *Orchestrator) ProcessRange(ctx context.Context, cycleID uuid.UUID, rng models.Range) (*models.RangeRun, error) {
	log := o.rt.Logger.WithCycleID(cycleID.String()).WithRange(rng.Name)
	run := models.NewRangeRun(cycleID, rng.Name, o.rt.Now())
	log.Info("Начата обработка диапазона")

	err := o.processRange(ctx, log, rng, run)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", utils.ErrRangeFailure, rng.Name, err)
	}
	run.Finish(o.rt.Now(), err)

	metrics.RangesProcessed.WithLabelValues(rng.Name, string(run.Status)).Inc()
	metrics.RangeDuration.WithLabelValues(rng.Name).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())

	o.recordRange(ctx, log, rng, run)

	if err == nil {
		log.Info("Диапазон обработан",
			interfaces.LogField{Key: "rows", Value: run.RowsTotal},
			interfaces.LogField{Key: "report_rows", Value: run.ReportRows},
			interfaces.LogField{Key: "changed", Value: run.RowsChanged},
			interfaces.LogField{Key: "accepted", Value: run.Accepted},
			interfaces.LogField{Key: "rejected", Value: run.Rejected},
			interfaces.LogField{Key: "network_failed", Value: run.NetworkFails},
		)
	}
	return run, err
}

func (o *Orchestrator) processRange(ctx context.Context, log interfaces.LoggerPort, rng models.Range, run *models.RangeRun) error {
	sheet, err := o.deps.Listings.Load(ctx, rng)
	if err != nil {
		return fmt.Errorf("чтение прайс-листа: %w", err)
	}
	run.RowsTotal = len(sheet.Rows)

	// клиент API создается заново на каждый проход по диапазону
	api := o.deps.Market()

	report, err := NewReportAcquirer(o.rt, api, o.cfg.Acquirer).Acquire(ctx, rng)
	if err != nil {
		return fmt.Errorf("получение отчета: %w", err)
	}
	run.ReportRows = len(report)
	if len(report) == 0 {
		log.Warn("Отчет не содержит строк с рыночной ценой")
	}

	merged, err := Submit(ctx, o.rt.Pool, func() ([]models.ListingRow, error) {
		return o.reconciler.Merge(sheet.Rows, report), nil
	})
	if err != nil {
		return err
	}
	o.snapshot(ctx, log, rng.Name+"_merged", sheet.Header, merged)

	type repriced struct{ all, changed []models.ListingRow }
	res, err := Submit(ctx, o.rt.Pool, func() (repriced, error) {
		all, changed := o.deps.Policy.Reprice(merged)
		return repriced{all: all, changed: changed}, nil
	})
	if err != nil {
		return err
	}
	o.countDecisions(rng, res.all)
	o.snapshot(ctx, log, rng.Name+"_changed", sheet.Header, res.changed)

	for _, row := range res.all {
		if row.Decision == models.DecisionMarketBelowFloor {
			run.BelowFloor++
		}
	}
	run.RowsChanged = len(res.changed)

	if err := o.deps.Listings.Save(ctx, rng, &models.ListingSheet{Header: sheet.Header, Rows: res.all}); err != nil {
		return fmt.Errorf("запись прайс-листа: %w", err)
	}

	if len(res.changed) == 0 {
		log.Info("Нет товаров для обновления цены")
		return nil
	}

	dispatch := o.dispatcher.Dispatch(ctx, api, rng, res.changed)
	oldPrices := make(map[string]*float64, len(merged))
	for _, row := range merged {
		oldPrices[row.Key] = row.OwnPrice
	}
	for i := range dispatch.Items {
		dispatch.Items[i].OldPrice = oldPrices[dispatch.Items[i].OfferID]
	}
	run.ApplyDispatch(dispatch)

	return nil
}

func (o *Orchestrator) countDecisions(rng models.Range, rows []models.ListingRow) {
	for _, row := range rows {
		decision := string(row.Decision)
		if decision == "" {
			decision = "none"
		}
		metrics.PriceDecisions.WithLabelValues(rng.Name, decision).Inc()
	}
}

func (o *Orchestrator) snapshot(ctx context.Context, log interfaces.LoggerPort, name string, header []string, rows []models.ListingRow) {
	if !o.cfg.Debug || o.deps.Snapshots == nil {
		return
	}
	if err := o.deps.Snapshots.Snapshot(ctx, name, header, rows); err != nil {
		log.Warn("Не удалось сохранить снимок таблицы",
			interfaces.LogField{Key: "snapshot", Value: name},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// recordRange сохраняет историю, сводку и события. Ошибки только логируются
func (o *Orchestrator) recordRange(ctx context.Context, log interfaces.LoggerPort, rng models.Range, run *models.RangeRun) {
	ctx = context.WithoutCancel(ctx)

	if o.deps.History != nil {
		if err := o.deps.History.SaveRangeRun(ctx, run); err != nil {
			log.Warn("Не удалось сохранить историю диапазона",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	if o.deps.Cache != nil {
		summary := *run
		summary.Updates = nil
		data, _ := json.Marshal(summary)
		if err := o.deps.Cache.Set(ctx, RangeSummaryKey(rng.Name), data, o.cfg.SummaryTTL); err != nil {
			log.Warn("Не удалось сохранить сводку диапазона в кэш",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	if o.deps.Events == nil || o.cfg.EventsTopic == "" {
		return
	}
	now := o.rt.Now()
	cycleID := run.CycleID.String()
	for _, item := range run.Updates {
		o.publish(ctx, log, item.OfferID, messaging.NewPriceChanged(cycleID, rng.Name, item, now))
	}
	o.publish(ctx, log, rng.Name, messaging.NewRangeProcessed(run, now))
}

func (o *Orchestrator) publish(ctx context.Context, log interfaces.LoggerPort, key string, event any) {
	data, err := json.Marshal(event)
	if err == nil {
		err = o.deps.Events.Publish(ctx, o.cfg.EventsTopic, key, data)
	}
	if err != nil {
		log.Warn("Не удалось опубликовать событие",
			interfaces.LogField{Key: "key", Value: key},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
}

// sleep ждет d или отмены контекста
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
