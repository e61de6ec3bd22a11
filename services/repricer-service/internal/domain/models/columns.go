package models

// Имена колонок прайс-листа и отчета маркетплейса.
// Это единственное место, где сервис знает о названиях колонок.
const (
	ColKey             = "SHOP_SKU"
	ColOffer           = "OFFER"
	ColLink            = "LINK"
	ColMainPrice       = "MAIN_PRICE"
	ColOwnPrice        = "MERCH_PRICE_WITH_PROMOS"
	ColGreenThreshold  = "PRICE_GREEN_THRESHOLD"
	ColRedThreshold    = "PRICE_RED_THRESHOLD"
	ColPriceWithPromos = "PRICE_WITH_PROMOS"
	ColBestHolder      = "SHOP_WITH_BEST_PRICE_ON_MARKET"
	ColMarketPrice     = "PRICE.1"
	ColFloor           = "STOP"
	ColRemark          = "PRIM"
)

// ReportColumns - колонки отчета, которые остаются после проекции
var ReportColumns = []string{
	ColKey,
	ColOffer,
	ColMainPrice,
	ColOwnPrice,
	ColGreenThreshold,
	ColRedThreshold,
	ColPriceWithPromos,
	ColBestHolder,
	ColMarketPrice,
}

// ListingSheet - прайс-лист диапазона вместе с порядком колонок исходной таблицы
type ListingSheet struct {
	Header []string
	Rows   []ListingRow
}
