package sheets

import (
	"fmt"
	"math"
	"strings"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
)

// ValidationIssue - нечисловое значение в числовой колонке
type ValidationIssue struct {
	Row    int // номер строки данных, с нуля
	Key    string
	Column string
	Value  any
}

// numericColumns - колонки, которые приводятся к числу при чтении
var numericColumns = map[string]func(*models.ListingRow, *float64){
	models.ColOwnPrice:    func(r *models.ListingRow, v *float64) { r.OwnPrice = v },
	models.ColMarketPrice: func(r *models.ListingRow, v *float64) { r.MarketPrice = v },
	models.ColFloor:       func(r *models.ListingRow, v *float64) { r.Floor = v },
}

// DecodeListing превращает таблицу прайс-листа в типизированные строки.
// Нечисловые значения в числовых колонках становятся незаданными и возвращаются как issues.
func DecodeListing(t *models.Table) (*models.ListingSheet, []ValidationIssue, error) {
	header := make([]string, len(t.Header))
	hasKey := false
	for i, h := range t.Header {
		header[i] = strings.TrimSpace(h)
		if header[i] == models.ColKey {
			hasKey = true
		}
	}
	if len(header) > 0 && !hasKey {
		return nil, nil, fmt.Errorf("%w: нет колонки %s", utils.ErrDataValidation, models.ColKey)
	}

	sheet := &models.ListingSheet{Header: header, Rows: make([]models.ListingRow, 0, len(t.Rows))}
	var issues []ValidationIssue

	for n, cells := range t.Rows {
		if isEmptyRow(cells) {
			continue
		}

		row := models.ListingRow{}
		firstIssue := len(issues)
		for i, col := range header {
			var v any
			if i < len(cells) {
				v = cells[i]
			}

			if set, ok := numericColumns[col]; ok {
				num := models.NumberPtr(v)
				if num == nil && !isBlank(v) {
					issues = append(issues, ValidationIssue{Row: n, Column: col, Value: v})
					row.Invalid = append(row.Invalid, col)
				}
				set(&row, num)
				continue
			}

			switch col {
			case models.ColKey:
				row.RawKey = v
				row.Key = models.CanonicalKey(v)
			case models.ColOffer:
				row.Name = text(v)
			case models.ColLink:
				row.Link = text(v)
			case models.ColGreenThreshold:
				row.GreenThreshold = v
			case models.ColRedThreshold:
				row.RedThreshold = v
			case models.ColBestHolder:
				row.BestHolder = strings.TrimSpace(text(v))
			case models.ColRemark:
				row.Remark = text(v)
			case "":
			default:
				if row.Extra == nil {
					row.Extra = make(map[string]any)
				}
				row.Extra[col] = v
			}
		}

		for i := firstIssue; i < len(issues); i++ {
			issues[i].Key = row.Key
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	return sheet, issues, nil
}

// EncodeListing превращает строки обратно в таблицу в исходном порядке колонок.
// Колонка PRIM добавляется в конец, если ее не было. DiscountBase не пишется.
func EncodeListing(sheet *models.ListingSheet) *models.Table {
	header := append([]string(nil), sheet.Header...)
	if !contains(header, models.ColRemark) {
		header = append(header, models.ColRemark)
	}

	t := &models.Table{Header: header, Rows: make([][]any, 0, len(sheet.Rows))}
	for _, row := range sheet.Rows {
		cells := make([]any, len(header))
		for i, col := range header {
			cells[i] = cellValue(row, col)
		}
		t.Rows = append(t.Rows, cells)
	}

	return t
}

func cellValue(row models.ListingRow, col string) any {
	switch col {
	case models.ColKey:
		if row.RawKey != nil {
			return row.RawKey
		}
		return row.Key
	case models.ColOffer:
		return row.Name
	case models.ColLink:
		return row.Link
	case models.ColOwnPrice:
		return number(row.OwnPrice)
	case models.ColMarketPrice:
		return number(row.MarketPrice)
	case models.ColFloor:
		return number(row.Floor)
	case models.ColGreenThreshold:
		return orEmpty(row.GreenThreshold)
	case models.ColRedThreshold:
		return orEmpty(row.RedThreshold)
	case models.ColBestHolder:
		return row.BestHolder
	case models.ColRemark:
		return row.Remark
	default:
		return orEmpty(row.Extra[col])
	}
}

// number пишет целые значения без дробной части, незаданные - пустой ячейкой
func number(v *float64) any {
	if v == nil {
		return ""
	}
	if *v == math.Trunc(*v) && math.Abs(*v) < 1e15 {
		return int64(*v)
	}
	return *v
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

func text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func isBlank(v any) bool {
	return v == nil || strings.TrimSpace(text(v)) == ""
}

func isEmptyRow(cells []any) bool {
	for _, c := range cells {
		if !isBlank(c) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
