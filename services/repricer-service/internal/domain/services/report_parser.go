package services

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
)

// ParseReportArchive распаковывает архив отчета и разбирает первый файл как CSV
func ParseReportArchive(data []byte) ([]models.ReportRow, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: архив отчета: %w", utils.ErrMalformedResponse, err)
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("%w: архив отчета пуст", utils.ErrMalformedResponse)
	}

	f, err := zr.File[0].Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", utils.ErrMalformedResponse, zr.File[0].Name, err)
	}
	defer f.Close()

	table, err := ReadDelimited(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrMalformedResponse, err)
	}

	// пустой файл - законный пустой отчет, но заголовок без ключа или рыночной цены - нет
	if len(table.Header) > 0 {
		for _, col := range []string{models.ColKey, models.ColMarketPrice} {
			if !slices.Contains(table.Header, col) {
				return nil, fmt.Errorf("%w: нет колонки %s", utils.ErrMalformedResponse, col)
			}
		}
	}

	return ProjectReport(table), nil
}

// ReadDelimited читает CSV (UTF-8, с BOM или без) в таблицу.
// Разделитель определяется по строке заголовка: ';' или ','.
// Повторяющиеся имена колонок получают суффиксы .1, .2, ...
func ReadDelimited(r io.Reader) (*models.Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	sample, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	if len(sample) == 0 {
		return &models.Table{}, nil
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(sample)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &models.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("заголовок CSV: %w", err)
	}

	table := &models.Table{Header: DedupeHeader(header)}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("строка CSV: %w", err)
		}

		row := make([]any, len(record))
		for i, v := range record {
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func detectDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// DedupeHeader переименовывает повторяющиеся колонки: второй PRICE становится PRICE.1
func DedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]struct{}, len(header))
	for _, h := range header {
		taken[strings.TrimSpace(h)] = struct{}{}
	}

	for i, h := range header {
		name := strings.TrimSpace(h)
		n, dup := seen[name]
		seen[name] = n + 1
		if !dup {
			out[i] = name
			continue
		}

		candidate := name + "." + strconv.Itoa(n)
		for {
			if _, exists := taken[candidate]; !exists {
				break
			}
			n++
			seen[name] = n + 1
			candidate = name + "." + strconv.Itoa(n)
		}
		taken[candidate] = struct{}{}
		out[i] = candidate
	}

	return out
}

// ProjectReport оставляет нужные колонки отчета и отбрасывает строки без рыночной цены
func ProjectReport(table *models.Table) []models.ReportRow {
	idx := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		idx[h] = i
	}

	cell := func(row []any, col string) any {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return nil
		}
		return row[i]
	}

	rows := make([]models.ReportRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		marketPrice, ok := models.ParseNumber(cell(row, models.ColMarketPrice))
		if !ok {
			continue
		}
		key := models.CanonicalKey(cell(row, models.ColKey))
		if key == "" {
			continue
		}

		holder, _ := cell(row, models.ColBestHolder).(string)
		offer, _ := cell(row, models.ColOffer).(string)

		rows = append(rows, models.ReportRow{
			Key:             key,
			Offer:           offer,
			MainPrice:       models.NumberPtr(cell(row, models.ColMainPrice)),
			MerchPrice:      models.NumberPtr(cell(row, models.ColOwnPrice)),
			PriceWithPromos: models.NumberPtr(cell(row, models.ColPriceWithPromos)),
			GreenThreshold:  models.NumberPtr(cell(row, models.ColGreenThreshold)),
			RedThreshold:    models.NumberPtr(cell(row, models.ColRedThreshold)),
			MarketPrice:     marketPrice,
			BestHolder:      strings.TrimSpace(holder),
		})
	}

	return rows
}
