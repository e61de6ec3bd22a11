package services

import (
	"slices"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
)

// Reconciler сводит прайс-лист с отчетом маркетплейса
type Reconciler struct {
	rt *Runtime
}

func NewReconciler(rt *Runtime) *Reconciler {
	return &Reconciler{rt: rt}
}

// Merge выполняет левое соединение по артикулу. Рыночная цена берется из отчета,
// держатель лучшей цены - из отчета, если он там указан. Строки без пары
// возвращаются без изменений, порядок строк сохраняется. Входной срез не меняется.
func (r *Reconciler) Merge(listing []models.ListingRow, report []models.ReportRow) []models.ListingRow {
	byKey := make(map[string]models.ReportRow, len(report))
	for _, rr := range report {
		// при дублях побеждает последняя строка отчета
		byKey[rr.Key] = rr
	}

	out := make([]models.ListingRow, len(listing))
	matched := 0
	for i, row := range listing {
		merged := row.Clone()
		if rr, ok := byKey[row.Key]; ok && row.Key != "" {
			matched++
			mp := rr.MarketPrice
			merged.MarketPrice = &mp
			merged.Invalid = slices.DeleteFunc(merged.Invalid, func(col string) bool {
				return col == models.ColMarketPrice
			})
			if len(merged.Invalid) == 0 {
				merged.Invalid = nil
			}
			if rr.BestHolder != "" {
				merged.BestHolder = rr.BestHolder
			}
		}
		out[i] = merged
	}

	r.rt.Logger.Debug("Прайс-лист сведен с отчетом",
		interfaces.LogField{Key: "listing_rows", Value: len(listing)},
		interfaces.LogField{Key: "report_rows", Value: len(report)},
		interfaces.LogField{Key: "matched", Value: matched},
	)

	return out
}
