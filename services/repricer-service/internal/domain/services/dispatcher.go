package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/metrics"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DispatcherConfig - параметры отправки обновлений цен
type DispatcherConfig struct {
	Debug    bool   // только логировать запросы
	Currency string // currencyId в запросе
	// RequestsPerSecond ограничивает темп запросов, 0 - без ограничения
	RequestsPerSecond float64
}

// UpdateDispatcher отправляет обновления цен параллельно, по одному запросу на товар.
// Ошибка одного обновления не влияет на остальные.
type UpdateDispatcher struct {
	rt      *Runtime
	cfg     DispatcherConfig
	limiter *rate.Limiter
}

func NewUpdateDispatcher(rt *Runtime, cfg DispatcherConfig) *UpdateDispatcher {
	if cfg.Currency == "" {
		cfg.Currency = "RUR"
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &UpdateDispatcher{rt: rt, cfg: cfg, limiter: limiter}
}

// Dispatch отправляет изменения и дожидается всех ответов. Ошибок не возвращает:
// исход каждого товара записан в отчете.
func (d *UpdateDispatcher) Dispatch(ctx context.Context, api MarketAPI, rng models.Range, rows []models.ListingRow) models.DispatchReport {
	log := d.rt.Logger.WithRange(rng.Name)
	items := make([]models.UpdateItem, len(rows))
	requests := make([]models.PriceUpdateRequest, len(rows))

	for i, row := range rows {
		items[i], requests[i] = d.buildRequest(log, row)
	}

	if d.cfg.Debug {
		for i := range requests {
			payload, _ := json.MarshalIndent(requests[i], "", "  ")
			log.Info("DEBUG: обновление цены не отправлено",
				interfaces.LogField{Key: "offer_id", Value: items[i].OfferID},
				interfaces.LogField{Key: "payload", Value: string(payload)},
			)
			items[i].Outcome = models.OutcomeDryRun
		}
		d.count(rng, items)
		return models.DispatchReport{Items: items}
	}

	// errgroup без общего контекста: отказ одного запроса не отменяет остальные
	var g errgroup.Group
	for i := range requests {
		items[i].Outcome = models.OutcomeSent
		g.Go(func() error {
			if err := d.limiter.Wait(ctx); err != nil {
				items[i].Outcome = models.OutcomeNetworkFailed
				items[i].Message = err.Error()
				return nil
			}
			err := api.UpdatePrices(ctx, rng.APIKey, rng.BusinessID, requests[i])
			d.classify(log, &items[i], err)
			return nil
		})
	}
	_ = g.Wait()

	d.count(rng, items)
	return models.DispatchReport{Items: items}
}

func (d *UpdateDispatcher) buildRequest(log interfaces.LoggerPort, row models.ListingRow) (models.UpdateItem, models.PriceUpdateRequest) {
	var price int64
	if row.OwnPrice != nil {
		price = int64(math.Round(*row.OwnPrice))
	}

	var discountBase int64
	if row.DiscountBase != nil {
		discountBase = *row.DiscountBase
	} else {
		log.Warn("Нет discount_base для измененной цены, отправляется 0",
			interfaces.LogField{Key: "offer_id", Value: row.Key})
	}

	offerID := row.Key
	item := models.UpdateItem{
		OfferID:      offerID,
		NewPrice:     price,
		DiscountBase: discountBase,
	}
	req := models.PriceUpdateRequest{Offers: []models.OfferPrice{{
		OfferID: offerID,
		Price: models.PriceValue{
			Value:        price,
			CurrencyID:   d.cfg.Currency,
			DiscountBase: discountBase,
		},
	}}}
	return item, req
}

func (d *UpdateDispatcher) classify(log interfaces.LoggerPort, item *models.UpdateItem, err error) {
	fields := []interface{}{
		interfaces.LogField{Key: "offer_id", Value: item.OfferID},
		interfaces.LogField{Key: "price", Value: item.NewPrice},
	}

	switch {
	case err == nil:
		item.Outcome = models.OutcomeAccepted
		log.Info("Цена обновлена", fields...)
	case errors.Is(err, utils.ErrAPIRejection):
		item.Outcome = models.OutcomeRejected
		item.Message = err.Error()
		var rej *utils.RejectionError
		if errors.As(err, &rej) {
			item.Message = rej.Message
		}
		log.Error("Маркетплейс отклонил обновление цены",
			append(fields, interfaces.LogField{Key: "error", Value: err.Error()})...)
	case errors.Is(err, utils.ErrMalformedResponse):
		item.Outcome = models.OutcomeRejected
		item.Message = err.Error()
		log.Error("Некорректный ответ на обновление цены",
			append(fields, interfaces.LogField{Key: "error", Value: err.Error()})...)
	default:
		item.Outcome = models.OutcomeNetworkFailed
		item.Message = err.Error()
		log.Error("Сетевая ошибка при обновлении цены",
			append(fields, interfaces.LogField{Key: "error", Value: err.Error()})...)
	}
}

func (d *UpdateDispatcher) count(rng models.Range, items []models.UpdateItem) {
	for _, it := range items {
		metrics.PriceUpdates.WithLabelValues(rng.Name, string(it.Outcome)).Inc()
	}
}
