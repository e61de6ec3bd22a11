package models

// UpdateOutcome - результат отправки одного обновления цены
type UpdateOutcome string

const (
	OutcomeSent          UpdateOutcome = "sent"
	OutcomeAccepted      UpdateOutcome = "accepted"
	OutcomeRejected      UpdateOutcome = "rejected"
	OutcomeNetworkFailed UpdateOutcome = "network_failed"
	OutcomeDryRun        UpdateOutcome = "dry_run"
)

// UpdateItem - одно обновление цены и его исход
type UpdateItem struct {
	OfferID      string        `json:"offer_id"`
	OldPrice     *float64      `json:"old_price,omitempty"`
	NewPrice     int64         `json:"new_price"`
	DiscountBase int64         `json:"discount_base"`
	Outcome      UpdateOutcome `json:"outcome"`
	Message      string        `json:"message,omitempty"`
}

// PriceUpdateRequest - тело запроса обновления цен
type PriceUpdateRequest struct {
	Offers []OfferPrice `json:"offers"`
}

type OfferPrice struct {
	OfferID string     `json:"offerId"`
	Price   PriceValue `json:"price"`
}

type PriceValue struct {
	Value        int64  `json:"value"`
	CurrencyID   string `json:"currencyId"`
	DiscountBase int64  `json:"discountBase"`
}

// DispatchReport - сводка по отправке обновлений одного диапазона
type DispatchReport struct {
	Items []UpdateItem `json:"items"`
}

// Count возвращает число обновлений с указанным исходом
func (r DispatchReport) Count(outcome UpdateOutcome) int {
	n := 0
	for _, it := range r.Items {
		if it.Outcome == outcome {
			n++
		}
	}
	return n
}
