package sheets

import (
	"context"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
)

// TableSource читает и пишет диапазоны табличного документа.
// Первая строка прочитанного диапазона - заголовок.
type TableSource interface {
	Get(ctx context.Context, rangeSpec string) (*models.Table, error)
	Put(ctx context.Context, rangeSpec string, table *models.Table) error
}

// tableValues - заголовок и строки одним массивом, как их пишут таблицы
func tableValues(t *models.Table) [][]interface{} {
	values := make([][]interface{}, 0, len(t.Rows)+1)
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, row := range t.Rows {
		values = append(values, row)
	}
	return values
}

// tableFromValues - обратное преобразование; строки дополняются до ширины заголовка
func tableFromValues(values [][]interface{}) *models.Table {
	if len(values) == 0 {
		return &models.Table{}
	}

	t := &models.Table{Header: make([]string, len(values[0]))}
	for i, h := range values[0] {
		t.Header[i] = text(h)
	}

	for _, v := range values[1:] {
		row := make([]any, len(t.Header))
		copy(row, v)
		t.Rows = append(t.Rows, row)
	}
	return t
}
