package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
)

const (
	// полоса новой цены: [рынок-200, рынок-50], но не ниже STOP
	bandLowOffset  = 200
	bandHighOffset = 50
)

// Тексты примечаний, которые видит менеджер в колонке PRIM
const (
	remarkEmptyFloor  = "Пустое значение в колонке 'stop'"
	remarkOwnHolder   = "Цена не изменена. У одного из ваших магазинов (%s) уже минимальная цена на рынке."
	remarkBandEmpty   = "Цена не изменена. Текущая цена: %.2f, mp_on_market: %.2f, stop: %.2f"
	remarkRepriced    = "Цена изменена с %.2f на %.2f. Новая discount_base: %d (mp_on_market: %.2f)"
	remarkMarketBelow = "Оптимальная цена mp_on_market (%.2f) ниже или равна минимальной stop (%.2f) для товара с артикулом %s"
	remarkInvalid     = "Цена не изменена. Нечисловое значение в колонке: %s"
)

// RepricingPolicy рассчитывает новые цены для сведенного прайс-листа
type RepricingPolicy struct {
	rt       *Runtime
	own      map[string]struct{}
	selector PriceSelector
}

// NewRepricingPolicy создает политику. ownStorefronts - витрины продавца,
// чью минимальную цену не нужно перебивать
func NewRepricingPolicy(rt *Runtime, ownStorefronts []string, selector PriceSelector) *RepricingPolicy {
	own := make(map[string]struct{}, len(ownStorefronts))
	for _, s := range ownStorefronts {
		own[strings.TrimSpace(s)] = struct{}{}
	}
	if selector == nil {
		selector = RandomSelector{}
	}
	return &RepricingPolicy{rt: rt, own: own, selector: selector}
}

// Reprice возвращает все строки с примечаниями и отдельно строки с измененной ценой.
// Новая цена никогда не ниже STOP, а измененные строки всегда имеют DiscountBase.
func (p *RepricingPolicy) Reprice(rows []models.ListingRow) (all []models.ListingRow, changed []models.ListingRow) {
	all = make([]models.ListingRow, len(rows))

	for i, src := range rows {
		row := src.Clone()
		row.Remark = ""
		row.Decision = models.DecisionNone
		row.DiscountBase = nil

		switch {
		case row.Floor == nil:
			row.Remark = remarkEmptyFloor
			row.Decision = models.DecisionEmptyFloor
		case eligible(row):
			p.priceRow(&row)
		default:
			row.Decision = models.DecisionNotEligible
		}

		if row.MarketPrice != nil && row.Floor != nil && *row.MarketPrice <= *row.Floor {
			row.Remark = fmt.Sprintf(remarkMarketBelow, *row.MarketPrice, *row.Floor, row.Key)
			row.Decision = models.DecisionMarketBelowFloor
			p.rt.Logger.Warn("Рыночная цена не выше минимальной",
				interfaces.LogField{Key: "sku", Value: row.Key},
				interfaces.LogField{Key: "market_price", Value: *row.MarketPrice},
				interfaces.LogField{Key: "floor", Value: *row.Floor},
			)
		}

		if len(row.Invalid) > 0 && row.Decision != models.DecisionRepriced && row.Decision != models.DecisionMarketBelowFloor {
			row.Remark = fmt.Sprintf(remarkInvalid, strings.Join(row.Invalid, ", "))
		}

		all[i] = row
		if src.OwnPrice != nil && row.OwnPrice != nil && *src.OwnPrice != *row.OwnPrice {
			changed = append(changed, row)
		}
	}

	return all, changed
}

// eligible: своя цена выше рынка, а рынок выше минимальной
func eligible(row models.ListingRow) bool {
	if row.OwnPrice == nil || row.MarketPrice == nil || row.Floor == nil {
		return false
	}
	return *row.OwnPrice > *row.MarketPrice && *row.MarketPrice > *row.Floor
}

func (p *RepricingPolicy) priceRow(row *models.ListingRow) {
	own, market, floor := *row.OwnPrice, *row.MarketPrice, *row.Floor

	if _, ok := p.own[strings.TrimSpace(row.BestHolder)]; ok && row.BestHolder != "" {
		row.Remark = fmt.Sprintf(remarkOwnHolder, row.BestHolder)
		row.Decision = models.DecisionOwnHolder
		return
	}

	floorCandidate := math.Max(market-bandLowOffset, floor)
	ceilingCandidate := market - bandHighOffset
	lo := int64(math.Ceil(floorCandidate))
	hi := int64(math.Floor(ceilingCandidate))
	if floorCandidate > ceilingCandidate || lo > hi {
		row.Remark = fmt.Sprintf(remarkBandEmpty, own, market, floor)
		row.Decision = models.DecisionBandEmpty
		return
	}

	price := p.selector.SelectPrice(lo, hi)
	if minPrice := int64(math.Ceil(floor)); price < minPrice {
		price = minPrice
	}
	discountBase := p.selector.SelectDiscountBase(price)

	newPrice := float64(price)
	row.OwnPrice = &newPrice
	row.DiscountBase = &discountBase
	row.Decision = models.DecisionRepriced
	row.Remark = fmt.Sprintf(remarkRepriced, own, newPrice, discountBase, market)
}
