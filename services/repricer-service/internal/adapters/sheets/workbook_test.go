package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/logger"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseRange(t *testing.T) {
	r, err := parseRange("YM_Tech_PC!A1:L")
	require.NoError(t, err)
	assert.Equal(t, cellRange{sheet: "YM_Tech_PC", startCol: 1, startRow: 1, endCol: 12}, r)

	r, err = parseRange("'Лист 1'!B3")
	require.NoError(t, err)
	assert.Equal(t, cellRange{sheet: "Лист 1", startCol: 2, startRow: 3}, r)

	_, err = parseRange("A1:L")
	assert.Error(t, err)
}

func TestWorkbookSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	src := NewWorkbookSource(path)
	ctx := context.Background()

	in := &models.Table{
		Header: []string{"SHOP_SKU", "MERCH_PRICE_WITH_PROMOS", "PRIM"},
		Rows: [][]any{
			{"A", int64(1500), ""},
			{"B", int64(900), "x"},
		},
	}
	require.NoError(t, src.Put(ctx, "YM!A1:C", in))

	out, err := src.Get(ctx, "YM!A1:C")
	require.NoError(t, err)
	assert.Equal(t, in.Header, out.Header)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "A", out.Rows[0][0])
	assert.Equal(t, "1500", out.Rows[0][1])

	// более короткая запись очищает хвост
	require.NoError(t, src.Put(ctx, "YM!A1:C", &models.Table{Header: in.Header, Rows: in.Rows[:1]}))
	out, err = src.Get(ctx, "YM!A1:C")
	require.NoError(t, err)
	assert.Len(t, out.Rows, 1)
}

func TestRepositoryWritesToOutputRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.xlsx")
	src := NewWorkbookSource(path)
	ctx := context.Background()

	require.NoError(t, src.Put(ctx, "YM!A1:L", &models.Table{
		Header: []string{"SHOP_SKU", "MERCH_PRICE_WITH_PROMOS", "STOP"},
		Rows:   [][]any{{"A", int64(1500), "oops"}},
	}))

	repo := NewRepository(src, logger.NewNopLogger())
	rng := models.Range{Name: "YM", SheetRange: "YM!A1:L", OutputRange: "Out!A1:L"}

	sheet, err := repo.Load(ctx, rng)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Nil(t, sheet.Rows[0].Floor)

	sheet.Rows[0].Remark = "ok"
	require.NoError(t, repo.Save(ctx, rng, sheet))

	out, err := src.Get(ctx, "Out!A1:L")
	require.NoError(t, err)
	assert.Equal(t, []string{"SHOP_SKU", "MERCH_PRICE_WITH_PROMOS", "STOP", "PRIM"}, out.Header)
	assert.Equal(t, "ok", out.Rows[0][3])
}

func TestExportWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.xlsx")
	table := &models.Table{
		Header: []string{"SHOP_SKU", "OFFER"},
		Rows:   [][]any{{"A", "Очень длинное название товара"}},
	}
	require.NoError(t, ExportWorkbook(table, path, "Report"))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Report", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Очень длинное название товара", v)

	width, err := f.GetColWidth("Report", "B")
	require.NoError(t, err)
	assert.InDelta(t, float64(len([]rune("Очень длинное название товара"))+2)*1.2, width, 0.01)

	styleID, err := f.GetCellStyle("Report", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestFilterReportTable(t *testing.T) {
	table := &models.Table{
		Header: []string{"SHOP_SKU", "JUNK", "PRICE", "PRICE.1"},
		Rows: [][]any{
			{"A", "x", "1", "1200"},
			{"B", "y", "2", ""},
		},
	}
	out := FilterReportTable(table)
	assert.Equal(t, []string{"SHOP_SKU", "PRICE.1"}, out.Header)
	assert.Equal(t, [][]any{{"A", "1200"}}, out.Rows)
}

func TestWorkbookSnapshotter(t *testing.T) {
	dir := t.TempDir()
	s := NewWorkbookSnapshotter(dir)
	db := int64(1400)

	err := s.Snapshot(context.Background(), "ByMarket changed", []string{"SHOP_SKU"},
		[]models.ListingRow{{Key: "A", DiscountBase: &db}})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "ByMarket_changed_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
