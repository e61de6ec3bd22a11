package sheets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/xuri/excelize/v2"
)

// WorkbookSource - TableSource поверх локального .xlsx файла.
// Диапазоны задаются так же, как в Google Sheets: "Лист!A1:L".
type WorkbookSource struct {
	path string
	mu   sync.Mutex
}

func NewWorkbookSource(path string) *WorkbookSource {
	return &WorkbookSource{path: path}
}

// cellRange - разобранный диапазон. endCol == 0 - до последней колонки
type cellRange struct {
	sheet    string
	startCol int
	startRow int
	endCol   int
}

func parseRange(spec string) (cellRange, error) {
	sheet, cells, ok := strings.Cut(spec, "!")
	if !ok || sheet == "" {
		return cellRange{}, fmt.Errorf("некорректный диапазон %q", spec)
	}
	sheet = strings.Trim(sheet, "'")

	start, end, _ := strings.Cut(cells, ":")
	startCol, startRow, err := excelize.CellNameToCoordinates(start)
	if err != nil {
		return cellRange{}, fmt.Errorf("некорректный диапазон %q: %w", spec, err)
	}

	r := cellRange{sheet: sheet, startCol: startCol, startRow: startRow}
	if end != "" {
		letters := strings.TrimRightFunc(end, unicode.IsDigit)
		if r.endCol, err = excelize.ColumnNameToNumber(letters); err != nil {
			return cellRange{}, fmt.Errorf("некорректный диапазон %q: %w", spec, err)
		}
	}
	return r, nil
}

func (w *WorkbookSource) Get(ctx context.Context, rangeSpec string) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng, err := parseRange(rangeSpec)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия %s: %w", w.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(rng.sheet)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %s: %w", rng.sheet, err)
	}

	var values [][]interface{}
	for i := rng.startRow - 1; i < len(rows); i++ {
		row := rows[i]
		from, to := rng.startCol-1, len(row)
		if rng.endCol > 0 && rng.endCol < to {
			to = rng.endCol
		}
		cells := make([]interface{}, 0, max(to-from, 0))
		for c := from; c < to; c++ {
			cells = append(cells, row[c])
		}
		values = append(values, cells)
	}

	return tableFromValues(values), nil
}

// Put записывает заголовок и строки, начиная с левой верхней ячейки диапазона.
// Старые значения ниже записанных строк очищаются.
func (w *WorkbookSource) Put(ctx context.Context, rangeSpec string, table *models.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rng, err := parseRange(rangeSpec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		f = excelize.NewFile()
		err = nil
	}
	if err != nil {
		return fmt.Errorf("ошибка открытия %s: %w", w.path, err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(rng.sheet); idx < 0 {
		if _, err := f.NewSheet(rng.sheet); err != nil {
			return err
		}
	}

	existing, err := f.GetRows(rng.sheet)
	if err != nil {
		return err
	}
	width := len(table.Header)
	if rng.endCol > 0 {
		width = max(width, rng.endCol-rng.startCol+1)
	}
	for r := rng.startRow; r <= len(existing); r++ {
		for c := rng.startCol; c < rng.startCol+width; c++ {
			cell, _ := excelize.CoordinatesToCellName(c, r)
			if err := f.SetCellStr(rng.sheet, cell, ""); err != nil {
				return err
			}
		}
	}

	for i, values := range tableValues(table) {
		cell, err := excelize.CoordinatesToCellName(rng.startCol, rng.startRow+i)
		if err != nil {
			return err
		}
		row := values
		if err := f.SetSheetRow(rng.sheet, cell, &row); err != nil {
			return fmt.Errorf("ошибка записи строки %d: %w", rng.startRow+i, err)
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("ошибка сохранения %s: %w", w.path, err)
	}
	return nil
}

// ExportWorkbook пишет таблицу в новый файл: жирный заголовок,
// ширина колонок по самому длинному значению
func ExportWorkbook(table *models.Table, path, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	for i, values := range tableValues(table) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := values
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(table.Header) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(table.Header), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return err
		}
	}

	for i, w := range columnWidths(table) {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// columnWidths: (длина самого длинного значения + 2) * 1.2
func columnWidths(table *models.Table) []float64 {
	widths := make([]float64, len(table.Header))
	for i, h := range table.Header {
		longest := len([]rune(h))
		for _, row := range table.Rows {
			if i < len(row) {
				longest = max(longest, len([]rune(text(row[i]))))
			}
		}
		widths[i] = float64(longest+2) * 1.2
	}
	return widths
}

// FilterReportTable оставляет колонки отчета и строки с числовой рыночной ценой
func FilterReportTable(table *models.Table) *models.Table {
	idx := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		idx[h] = i
	}

	var keep []int
	out := &models.Table{}
	for _, col := range models.ReportColumns {
		if i, ok := idx[col]; ok {
			keep = append(keep, i)
			out.Header = append(out.Header, col)
		}
	}

	priceIdx, hasPrice := idx[models.ColMarketPrice]
	for _, row := range table.Rows {
		if !hasPrice || priceIdx >= len(row) {
			continue
		}
		if _, ok := models.ParseNumber(row[priceIdx]); !ok {
			continue
		}
		cells := make([]any, len(keep))
		for j, i := range keep {
			if i < len(row) {
				cells[j] = row[i]
			}
		}
		out.Rows = append(out.Rows, cells)
	}

	return out
}
