package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/athebyme/market-repricer/services/repricer-service/internal/adapters/messaging"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/domain/models"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rangeA = models.Range{Name: "A", SheetRange: "A!A1:L", OutputRange: "A!A3:L", APIKey: "ka", BusinessID: "1"}
	rangeB = models.Range{Name: "B", SheetRange: "B!A1:L", OutputRange: "B!A3:L", APIKey: "kb", BusinessID: "2"}
)

const orchestratorReport = "SHOP_SKU;PRICE;SHOP_WITH_BEST_PRICE_ON_MARKET;PRICE\n" +
	"sku-1;1400;Other;1200\n" +
	"sku-2;900;ByMarket;800\n"

func sampleSheet() *models.ListingSheet {
	return &models.ListingSheet{
		Header: []string{"SHOP_SKU", "MERCH_PRICE_WITH_PROMOS", "PRICE.1", "STOP", "SHOP_WITH_BEST_PRICE_ON_MARKET", "PRIM"},
		Rows: []models.ListingRow{
			{Key: "sku-1", RawKey: "sku-1", OwnPrice: models.Float(1500), Floor: models.Float(1000)},
			{Key: "sku-2", RawKey: "sku-2", OwnPrice: models.Float(1000), Floor: models.Float(700)},
			{Key: "sku-3", RawKey: "sku-3", OwnPrice: models.Float(500)},
		},
	}
}

type orchestratorFixture struct {
	listings  *fakeListings
	market    *fakeMarket
	history   *fakeHistory
	cache     *fakeCache
	events    *fakeEvents
	snapshots *fakeSnapshots
	markets   int
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	f := &orchestratorFixture{
		listings:  newFakeListings(),
		history:   &fakeHistory{},
		cache:     newFakeCache(),
		events:    &fakeEvents{},
		snapshots: &fakeSnapshots{},
		market: &fakeMarket{
			statuses: []statusReply{done("https://files/report.zip")},
			archive:  reportArchive(t, orchestratorReport),
		},
	}
	f.listings.sheets[rangeA.Name] = sampleSheet()
	f.listings.sheets[rangeB.Name] = sampleSheet()
	return f
}

func (f *orchestratorFixture) build(debug bool, ranges ...models.Range) *Orchestrator {
	rt := newTestRuntime()
	return NewOrchestrator(rt, ranges, OrchestratorDeps{
		Listings: f.listings,
		Market: func() MarketAPI {
			f.markets++
			return f.market
		},
		Policy:    NewRepricingPolicy(rt, ownStorefronts, fixedSelector{}),
		History:   f.history,
		Cache:     f.cache,
		Events:    f.events,
		Snapshots: f.snapshots,
	}, OrchestratorConfig{
		CycleInterval: time.Hour,
		Debug:         debug,
		SummaryTTL:    time.Hour,
		EventsTopic:   "repricer-events",
		Acquirer:      testAcquirerConfig(),
	})
}

func TestProcessRangeHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	o := f.build(false, rangeA)

	run, err := o.ProcessRange(context.Background(), [16]byte{1}, rangeA)
	require.NoError(t, err)

	assert.Equal(t, models.RunSucceeded, run.Status)
	assert.Equal(t, 3, run.RowsTotal)
	assert.Equal(t, 2, run.ReportRows)
	assert.Equal(t, 1, run.RowsChanged)
	assert.Equal(t, 1, run.Accepted)

	saved := f.listings.saved[rangeA.Name]
	require.NotNil(t, saved)
	require.Len(t, saved.Rows, 3)
	assert.Equal(t, 1150.0, *saved.Rows[0].OwnPrice)
	assert.Equal(t, 1000.0, *saved.Rows[1].OwnPrice, "своя витрина не перебивается")
	assert.Equal(t, remarkEmptyFloor, saved.Rows[2].Remark)

	require.Len(t, f.market.updates, 1)
	assert.Equal(t, "sku-1", f.market.updates[0].Offers[0].OfferID)

	require.Len(t, run.Updates, 1)
	require.NotNil(t, run.Updates[0].OldPrice)
	assert.Equal(t, 1500.0, *run.Updates[0].OldPrice)

	require.Len(t, f.history.runs, 1)
	assert.Equal(t, run.ID, f.history.runs[0].ID)

	raw, err := f.cache.Get(context.Background(), RangeSummaryKey(rangeA.Name))
	require.NoError(t, err)
	var summary models.RangeRun
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, 1, summary.RowsChanged)
	assert.Empty(t, summary.Updates)

	require.Len(t, f.events.messages, 2)
	var changed messaging.PriceChanged
	require.NoError(t, json.Unmarshal(f.events.messages[0].payload, &changed))
	assert.Equal(t, messaging.PriceChangedEvent, changed.EventType)
	assert.Equal(t, int64(1150), changed.NewPrice)
	assert.Equal(t, "repricer-events", f.events.messages[1].topic)
	assert.Equal(t, rangeA.Name, f.events.messages[1].key)

	assert.Empty(t, f.snapshots.names, "снимки только в debug-режиме")
}

func TestProcessRangeDebug(t *testing.T) {
	f := newOrchestratorFixture(t)
	o := f.build(true, rangeA)

	run, err := o.ProcessRange(context.Background(), [16]byte{1}, rangeA)
	require.NoError(t, err)

	assert.Empty(t, f.market.updates)
	require.Len(t, run.Updates, 1)
	assert.Equal(t, models.OutcomeDryRun, run.Updates[0].Outcome)
	assert.Equal(t, []string{"A_merged", "A_changed"}, f.snapshots.names)
}

func TestProcessRangeAcquisitionFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.market.statuses = []statusReply{{job: &models.ReportJob{ID: "r1", Status: models.ReportFailed}}}
	o := f.build(false, rangeA)

	run, err := o.ProcessRange(context.Background(), [16]byte{1}, rangeA)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRangeFailure)
	assert.ErrorIs(t, err, utils.ErrReportFailed)

	assert.Equal(t, models.RunFailed, run.Status)
	assert.Nil(t, f.listings.saved[rangeA.Name], "при ошибке получения отчета таблица не перезаписывается")
	require.Len(t, f.history.runs, 1)
	assert.Equal(t, models.RunFailed, f.history.runs[0].Status)
}

func TestProcessRangeEmptyReportUsesStaleMarketPrice(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.market.archive = reportArchive(t, "SHOP_SKU;PRICE;PRICE\n")
	sheet := sampleSheet()
	sheet.Rows[0].MarketPrice = models.Float(1300)
	f.listings.sheets[rangeA.Name] = sheet
	o := f.build(false, rangeA)

	run, err := o.ProcessRange(context.Background(), [16]byte{1}, rangeA)
	require.NoError(t, err)
	assert.Equal(t, 0, run.ReportRows)
	assert.Equal(t, 1, run.RowsChanged)
	assert.Equal(t, 1250.0, *f.listings.saved[rangeA.Name].Rows[0].OwnPrice)
}

func TestRunCycleContainsRangeFailure(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.listings.loadErr[rangeA.Name] = errors.New("sheets unavailable")
	o := f.build(false, rangeA, rangeB)

	cycle, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunSucceeded, cycle.Status)
	require.Len(t, cycle.Ranges, 2)
	assert.Equal(t, models.RunFailed, cycle.Ranges[0].Status)
	assert.Contains(t, cycle.Ranges[0].Error, "sheets unavailable")
	assert.Equal(t, models.RunSucceeded, cycle.Ranges[1].Status)
	assert.NotNil(t, f.listings.saved[rangeB.Name])

	assert.Equal(t, 1, f.markets, "клиент API создается на каждый диапазон")
	assert.False(t, f.cache.locked)
	assert.Equal(t, 1, f.cache.unlocked)

	require.Len(t, f.history.cycles, 2)
	assert.Equal(t, models.RunRunning, f.history.cycles[0].Status)
	assert.Equal(t, models.RunSucceeded, f.history.cycles[1].Status)
}

func TestRunCycleSkippedWhenLocked(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.cache.locked = true
	o := f.build(false, rangeA)

	cycle, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.RunSkipped, cycle.Status)
	assert.Equal(t, 0, f.listings.loads)
	assert.Equal(t, 0, f.cache.unlocked)
}

func TestRunCycleLockError(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.cache.lockErr = errors.New("redis down")
	o := f.build(false, rangeA)

	cycle, err := o.RunCycle(context.Background())
	assert.ErrorIs(t, err, utils.ErrCycleFailure)
	assert.Equal(t, models.RunFailed, cycle.Status)
	assert.Equal(t, 0, f.listings.loads)
}

func TestRunCycleWithoutOptionalDeps(t *testing.T) {
	f := newOrchestratorFixture(t)
	rt := newTestRuntime()
	o := NewOrchestrator(rt, []models.Range{rangeA, rangeB}, OrchestratorDeps{
		Listings: f.listings,
		Market:   func() MarketAPI { return f.market },
		Policy:   NewRepricingPolicy(rt, ownStorefronts, fixedSelector{}),
	}, OrchestratorConfig{Acquirer: testAcquirerConfig(), RangePause: time.Millisecond})

	cycle, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, cycle.Ranges, 2)
	assert.Len(t, f.market.updates, 2)
}

func TestRunCycleCancelledDuringPause(t *testing.T) {
	f := newOrchestratorFixture(t)
	o := f.build(false, rangeA, rangeB)
	o.cfg.RangePause = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	cycle, err := o.RunCycle(ctx)
	assert.ErrorIs(t, err, utils.ErrCycleFailure)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, cycle.Ranges, 1)
	assert.Equal(t, models.RunFailed, cycle.Status)
	assert.Equal(t, 1, f.cache.unlocked)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newOrchestratorFixture(t)
	o := f.build(false, rangeA)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		f.history.mu.Lock()
		defer f.history.mu.Unlock()
		return len(f.history.cycles) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}
