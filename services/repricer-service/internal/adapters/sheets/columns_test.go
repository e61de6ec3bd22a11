package sheets

import (
	"testing"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingTable() *models.Table {
	return &models.Table{
		Header: []string{"SHOP_SKU", "OFFER", "MERCH_PRICE_WITH_PROMOS", "PRICE.1", "STOP", "SHOP_WITH_BEST_PRICE_ON_MARKET", "COMMENT"},
		Rows: [][]any{
			{12345.0, "Видеокарта", 1500.0, 1200.0, "1000", "Other", "keep me"},
			{"SKU-2", "Кулер", "abc", nil, "", "", nil},
			{nil, "", "", "", "", "", ""},
		},
	}
}

func TestDecodeListing(t *testing.T) {
	sheet, issues, err := DecodeListing(listingTable())
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2, "empty rows are skipped")

	first := sheet.Rows[0]
	assert.Equal(t, "12345", first.Key)
	assert.Equal(t, 12345.0, first.RawKey)
	assert.Equal(t, "Видеокарта", first.Name)
	assert.Equal(t, 1500.0, *first.OwnPrice)
	assert.Equal(t, 1200.0, *first.MarketPrice)
	assert.Equal(t, 1000.0, *first.Floor)
	assert.Equal(t, "Other", first.BestHolder)
	assert.Equal(t, "keep me", first.Extra["COMMENT"])

	second := sheet.Rows[1]
	assert.Nil(t, second.OwnPrice)
	assert.Nil(t, second.Floor)
	assert.Equal(t, []string{models.ColOwnPrice}, second.Invalid)
	assert.Empty(t, first.Invalid)

	require.Len(t, issues, 1)
	assert.Equal(t, "SKU-2", issues[0].Key)
	assert.Equal(t, models.ColOwnPrice, issues[0].Column)
}

func TestDecodeListingRequiresKeyColumn(t *testing.T) {
	_, _, err := DecodeListing(&models.Table{Header: []string{"OFFER"}})
	assert.ErrorIs(t, err, utils.ErrDataValidation)
}

func TestEncodeListingPreservesLayout(t *testing.T) {
	sheet, _, err := DecodeListing(listingTable())
	require.NoError(t, err)

	db := int64(1400)
	sheet.Rows[0].OwnPrice = models.Float(1100)
	sheet.Rows[0].DiscountBase = &db
	sheet.Rows[0].Remark = "Цена изменена"

	table := EncodeListing(sheet)
	assert.Equal(t, append(listingTable().Header, "PRIM"), table.Header)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, []any{12345.0, "Видеокарта", int64(1100), int64(1200), int64(1000), "Other", "keep me", "Цена изменена"}, table.Rows[0])
	assert.Equal(t, []any{"SKU-2", "Кулер", "", "", "", "", "", ""}, table.Rows[1])
	assert.NotContains(t, table.Header, "discount_base")
}

func TestEncodeListingFractionalPrice(t *testing.T) {
	sheet := &models.ListingSheet{
		Header: []string{"SHOP_SKU", "STOP", "PRIM"},
		Rows:   []models.ListingRow{{Key: "A", Floor: models.Float(999.5)}},
	}
	table := EncodeListing(sheet)
	assert.Equal(t, []any{"A", 999.5, ""}, table.Rows[0])
}
