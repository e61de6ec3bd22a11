package messaging

import (
	"time"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
)

type KafkaEvent = string

const (
	PriceChangedEvent   KafkaEvent = "price_changed"
	RangeProcessedEvent KafkaEvent = "range_processed"
)

// PriceChanged публикуется на каждое отправленное (или dry-run) обновление цены
type PriceChanged struct {
	EventType    KafkaEvent           `json:"event_type"`
	CycleID      string               `json:"cycle_id"`
	Range        string               `json:"range"`
	OfferID      string               `json:"offer_id"`
	OldPrice     *float64             `json:"old_price,omitempty"`
	NewPrice     int64                `json:"new_price"`
	DiscountBase int64                `json:"discount_base"`
	Outcome      models.UpdateOutcome `json:"outcome"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

// RangeProcessed публикуется по завершении обработки диапазона
type RangeProcessed struct {
	EventType  KafkaEvent       `json:"event_type"`
	Run        *models.RangeRun `json:"run"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewPriceChanged собирает событие из исхода обновления
func NewPriceChanged(cycleID, rangeName string, item models.UpdateItem, at time.Time) PriceChanged {
	return PriceChanged{
		EventType:    PriceChangedEvent,
		CycleID:      cycleID,
		Range:        rangeName,
		OfferID:      item.OfferID,
		OldPrice:     item.OldPrice,
		NewPrice:     item.NewPrice,
		DiscountBase: item.DiscountBase,
		Outcome:      item.Outcome,
		OccurredAt:   at,
	}
}

// NewRangeProcessed собирает событие завершения диапазона
func NewRangeProcessed(run *models.RangeRun, at time.Time) RangeProcessed {
	return RangeProcessed{EventType: RangeProcessedEvent, Run: run, OccurredAt: at}
}
