package sheets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/metrics"
)

// Repository - прайс-листы диапазонов поверх TableSource
type Repository struct {
	src    TableSource
	logger interfaces.LoggerPort
}

func NewRepository(src TableSource, logger interfaces.LoggerPort) *Repository {
	return &Repository{src: src, logger: logger}
}

// Load читает прайс-лист. Нечисловые значения в числовых колонках логируются и пропускаются
func (r *Repository) Load(ctx context.Context, rng models.Range) (*models.ListingSheet, error) {
	table, err := r.src.Get(ctx, rng.SheetRange)
	if err != nil {
		return nil, err
	}

	sheet, issues, err := DecodeListing(table)
	if err != nil {
		return nil, fmt.Errorf("диапазон %s: %w", rng.SheetRange, err)
	}

	for _, issue := range issues {
		metrics.DataValidationErrors.WithLabelValues(issue.Column).Inc()
		r.logger.Warn("Нечисловое значение в числовой колонке",
			interfaces.LogField{Key: "range", Value: rng.Name},
			interfaces.LogField{Key: "sku", Value: issue.Key},
			interfaces.LogField{Key: "column", Value: issue.Column},
			interfaces.LogField{Key: "value", Value: issue.Value},
		)
	}

	return sheet, nil
}

// Save записывает строки в OutputRange диапазона
func (r *Repository) Save(ctx context.Context, rng models.Range, sheet *models.ListingSheet) error {
	target := rng.OutputRange
	if target == "" {
		target = rng.SheetRange
	}
	return r.src.Put(ctx, target, EncodeListing(sheet))
}

// WorkbookSnapshotter сохраняет промежуточные таблицы в .xlsx для отладки
type WorkbookSnapshotter struct {
	dir string
	now func() time.Time
}

func NewWorkbookSnapshotter(dir string) *WorkbookSnapshotter {
	return &WorkbookSnapshotter{dir: dir, now: time.Now}
}

const discountBaseColumn = "discount_base"

func (s *WorkbookSnapshotter) Snapshot(ctx context.Context, name string, header []string, rows []models.ListingRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	table := EncodeListing(&models.ListingSheet{Header: header, Rows: rows})
	table.Header = append(table.Header, discountBaseColumn)
	for i, row := range rows {
		var db any = ""
		if row.DiscountBase != nil {
			db = *row.DiscountBase
		}
		table.Rows[i] = append(table.Rows[i], db)
	}

	file := fmt.Sprintf("%s_%s.xlsx", sanitize(name), s.now().Format("20060102_150405"))
	return ExportWorkbook(table, filepath.Join(s.dir, file), "snapshot")
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '!':
			return '_'
		}
		return r
	}, name)
}
