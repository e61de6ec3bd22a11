package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repricer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "appName: repricer-service\n"))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Repricer.CycleInterval)
	assert.Equal(t, 60*time.Second, cfg.Repricer.RangePause)
	assert.Equal(t, 10*time.Second, cfg.Report.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.Report.MaxWait)
	assert.Equal(t, 3, cfg.Report.MaxPollErrors)
	assert.Equal(t, "RUR", cfg.Repricer.Currency)
	assert.Equal(t, []string{"SSmart shop", "Tech PC Components", "ByMarket"}, cfg.Repricer.OwnStorefronts)
	assert.Equal(t, "https://api.partner.market.yandex.ru", cfg.Market.BaseURL)
	assert.Equal(t, "development", cfg.ENV)
	assert.False(t, cfg.Postgres.Enabled)
}

func TestLoadRangesResolvesKeysFromEnv(t *testing.T) {
	t.Setenv("ByMarket_YM", "secret-key")

	cfg, err := Load(writeConfig(t, `
listing:
  backend: xlsx
  workbookPath: prices.xlsx
ranges:
  - name: ByMarket
    sheetRange: YM_ByMarket!A1:L
    businessID: "95137059"
    apiKeyEnv: ByMarket_YM
`))
	require.NoError(t, err)
	require.Len(t, cfg.Ranges, 1)

	r := cfg.Ranges[0]
	assert.Equal(t, "secret-key", r.APIKey)
	assert.Equal(t, "YM_ByMarket!A3:L", r.OutputRange)
	assert.Equal(t, "95137059", r.BusinessID)
	assert.NoError(t, cfg.ValidateRanges())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("REPRICER_RANGE_PAUSE", "5s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(writeConfig(t, "repricer:\n  rangePause: 60s\n"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Repricer.RangePause)
	assert.True(t, cfg.Repricer.Debug)
}

func TestValidateRanges(t *testing.T) {
	cfg := &Config{}
	cfg.Listing.Backend = "xlsx"
	cfg.Listing.WorkbookPath = "prices.xlsx"
	assert.Error(t, cfg.ValidateRanges())

	cfg.Ranges = []RangeConfig{{Name: "A", SheetRange: "A!A1:L", BusinessID: "1"}}
	assert.Error(t, cfg.ValidateRanges(), "missing api key")

	cfg.Ranges[0].APIKey = "k"
	assert.NoError(t, cfg.ValidateRanges())

	cfg.Ranges = append(cfg.Ranges, cfg.Ranges[0])
	assert.Error(t, cfg.ValidateRanges(), "duplicate name")

	cfg.Ranges = cfg.Ranges[:1]
	cfg.Ranges[0].BusinessID = "abc"
	assert.Error(t, cfg.ValidateRanges())
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("ByMarket_YM", "secret-key")
	body := `
listing:
  backend: xlsx
  workbookPath: prices.xlsx
ranges:
  - name: ByMarket
    sheetRange: YM_ByMarket!A1:L
    businessID: "95137059"
    apiKeyEnv: ByMarket_YM
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	t.Setenv("REPORT_POLL_INTERVAL", "0s")
	cfg, err = Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.Zero(t, cfg.Report.PollInterval)
	assert.ErrorContains(t, cfg.Validate(), "PollInterval")

	cfg.Report.PollInterval = 10 * time.Second
	cfg.Report.MaxWait = 0
	assert.ErrorContains(t, cfg.Validate(), "MaxWait")

	cfg.Report.MaxWait = time.Minute
	cfg.Repricer.CycleInterval = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "CycleInterval")

	cfg.Repricer.CycleInterval = 30 * time.Minute
	cfg.Repricer.RangePause = 0
	assert.NoError(t, cfg.Validate(), "без паузы между диапазонами можно")
}

func TestDefaultOutputRange(t *testing.T) {
	assert.Equal(t, "YM_Tech_PC!A3:L", DefaultOutputRange("YM_Tech_PC!A1:L"))
	assert.Equal(t, "Sheet1", DefaultOutputRange("Sheet1"))
}
