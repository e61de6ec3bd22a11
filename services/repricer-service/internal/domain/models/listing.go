package models

import "slices"

// ListingRow - строка собственного прайс-листа продавца
type ListingRow struct {
	Key    string `json:"key"`     // канонический артикул (SHOP_SKU)
	RawKey any    `json:"raw_key"` // исходное значение ячейки, восстанавливается при записи

	Name string `json:"name"`
	Link string `json:"link,omitempty"`

	OwnPrice    *float64 `json:"own_price"`    // MERCH_PRICE_WITH_PROMOS
	MarketPrice *float64 `json:"market_price"` // PRICE.1 - лучшая цена на рынке
	Floor       *float64 `json:"floor"`        // STOP - минимально допустимая цена

	GreenThreshold any `json:"green_threshold,omitempty"`
	RedThreshold   any `json:"red_threshold,omitempty"`

	BestHolder string `json:"best_holder"` // SHOP_WITH_BEST_PRICE_ON_MARKET
	Remark     string `json:"remark"`      // PRIM

	// DiscountBase заполняется только для строк с измененной ценой и не пишется в таблицу
	DiscountBase *int64 `json:"discount_base,omitempty"`

	Decision Decision `json:"decision"`

	// Invalid - числовые колонки, значение которых не удалось привести к числу
	Invalid []string `json:"invalid,omitempty"`

	// Extra - колонки, которые сервис не интерпретирует, переносятся как есть
	Extra map[string]any `json:"-"`
}

// Clone возвращает независимую копию строки
func (r ListingRow) Clone() ListingRow {
	c := r
	c.OwnPrice = cloneFloat(r.OwnPrice)
	c.MarketPrice = cloneFloat(r.MarketPrice)
	c.Floor = cloneFloat(r.Floor)
	if r.DiscountBase != nil {
		d := *r.DiscountBase
		c.DiscountBase = &d
	}
	c.Invalid = slices.Clone(r.Invalid)
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float возвращает указатель на значение. Удобно для литералов в тестах и адаптерах
func Float(v float64) *float64 {
	return &v
}

// Decision - машиночитаемый итог переоценки строки
type Decision string

const (
	DecisionNone             Decision = ""
	DecisionEmptyFloor       Decision = "empty_floor"
	DecisionNotEligible      Decision = "not_eligible"
	DecisionOwnHolder        Decision = "own_holder"
	DecisionBandEmpty        Decision = "band_empty"
	DecisionRepriced         Decision = "repriced"
	DecisionMarketBelowFloor Decision = "market_below_floor"
)

// Range - диапазон таблицы, соответствующий одному магазину (бизнесу) в маркетплейсе
type Range struct {
	Name        string
	SheetRange  string // откуда читать прайс-лист, "Лист!A1:L"
	OutputRange string // куда записывать результат
	APIKey      string `json:"-"`
	BusinessID  string
}

// Table - сырое табличное представление на границе ввода-вывода
type Table struct {
	Header []string
	Rows   [][]any
}
